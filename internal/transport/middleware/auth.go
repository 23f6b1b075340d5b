package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/auth"
	"github.com/fajarnugraha/identity-service/pkg/logger"
)

// PrincipalContext enriches the request logger with the authenticated user
// so downstream log lines carry user_id without threading it by hand.
func PrincipalContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := auth.PrincipalFromContext(r.Context()); ok && principal != nil {
			ctx := logger.With(r.Context(), "user_id", principal.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActive rejects requests from deactivated accounts. It assumes the
// auth middleware already ran; a missing principal is treated as an
// authentication failure.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok || principal == nil {
			writeAppError(w, apperrors.ErrCouldNotValidate)
			return
		}

		if !principal.IsActive {
			writeAppError(w, apperrors.ErrInactivePrincipal)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireVerified rejects accounts that have not confirmed their email.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok || principal == nil {
			writeAppError(w, apperrors.ErrCouldNotValidate)
			return
		}

		if !principal.IsVerified {
			writeAppError(w, apperrors.ErrEmailNotVerified)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSuperuser restricts a route to superusers.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok || principal == nil {
			writeAppError(w, apperrors.ErrCouldNotValidate)
			return
		}

		if !principal.IsSuperuser {
			writeAppError(w, apperrors.NewForbiddenError("Superuser privileges required", apperrors.ErrCodeSuperuserRequired))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
