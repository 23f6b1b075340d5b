package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// A ping slower than this degrades the report without failing it.
const slowPingThreshold = 500 * time.Millisecond

type HealthCheck struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LatencyMs int64        `json:"latency_ms"`
}

type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Service   string                 `json:"service"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// pingHandler → liveness, touches no dependencies
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

// healthCheckHandler → readiness, the database has to answer
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	pg := h.checkPostgres(ctx)

	resp := HealthResponse{
		Status:    pg.Status,
		Service:   "identity-service",
		Timestamp: time.Now().UTC(),
		Checks:    map[string]HealthCheck{"postgres": pg},
	}

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (h *HealthHandler) checkPostgres(ctx context.Context) HealthCheck {
	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)

	check := HealthCheck{
		Status:    HealthHealthy,
		LatencyMs: latency.Milliseconds(),
	}

	switch {
	case err != nil:
		check.Status = HealthUnhealthy
		check.Message = err.Error()
	case latency > slowPingThreshold:
		check.Status = HealthDegraded
		check.Message = "database ping is slow"
	}

	return check
}
