package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/auth"
	authpostgres "github.com/fajarnugraha/identity-service/internal/auth/postgres"
	"github.com/fajarnugraha/identity-service/internal/core/events"
	"github.com/fajarnugraha/identity-service/internal/mailer"
	"github.com/fajarnugraha/identity-service/internal/rbac"
	rbacpostgres "github.com/fajarnugraha/identity-service/internal/rbac/postgres"
	"github.com/fajarnugraha/identity-service/internal/transport/rest"
	"github.com/fajarnugraha/identity-service/internal/user"
	userpostgres "github.com/fajarnugraha/identity-service/internal/user/postgres"
	"github.com/fajarnugraha/identity-service/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	GormDB      *gorm.DB
	Router      *chi.Mux
	EventBus    *events.EventBus
	Mailer      *mailer.Client
	AuthHandler *auth.Handler
	UserHandler *user.Handler
	RBACHandler *rbac.Handler
	Logger      *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		deps.Mailer.Shutdown(10 * time.Second)
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.AuthHandler, deps.UserHandler, deps.RBACHandler, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.App.Environment)
	log := logger.LoggerWrapper()

	db, gormDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	eventBus := events.NewEventBus(log)

	mailerClient := mailer.NewClient(mailer.Config{
		Enabled:      config.Mailer.Enabled,
		APIURL:       config.Mailer.APIURL,
		APIKey:       config.Mailer.APIKey,
		SenderName:   config.Mailer.SenderName,
		SenderEmail:  config.Mailer.SenderEmail,
		SendTimeout:  config.Mailer.SendTimeout,
		MaxWorkers:   config.Mailer.MaxWorkers,
		JobQueueSize: config.Mailer.JobQueueSize,
	}, log)
	mailerHandler := mailer.NewEventHandler(mailerClient, config.Mailer.FrontendURL, log)
	mailerHandler.RegisterEventHandlers(eventBus)

	// Role assignment changes land in the log as an audit trail
	eventBus.Subscribe(events.EventTypeUserRolesChanged, func(ctx context.Context, event events.Event) error {
		log.Info("role assignments changed",
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})

	rbacRepo := rbacpostgres.NewRepository(gormDB, db)
	rbacService := rbac.NewService(rbacRepo, eventBus, log)
	rbacHandler := rbac.NewHandler(rbacService)

	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.SecretKey,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
		config.Security.VerifyTokenTTL(),
		config.Security.ResetTokenTTL(),
	)

	authRepo := authpostgres.NewRepository(gormDB)
	authService := auth.NewService(authRepo, rbacService, tokenGen, eventBus, config.Security.BCryptCost, log)
	authHandler := auth.NewHandler(authService)

	userRepo := userpostgres.NewRepository(gormDB, db)
	userService := user.NewService(userRepo, rbacService, config.Security.BCryptCost, log)
	userHandler := user.NewHandler(userService)

	router := chi.NewRouter()

	return &Dependencies{
		Config:      config,
		Logger:      log,
		DB:          db,
		GormDB:      gormDB,
		Router:      router,
		EventBus:    eventBus,
		Mailer:      mailerClient,
		AuthHandler: authHandler,
		UserHandler: userHandler,
		RBACHandler: rbacHandler,
	}, nil
}

// initDB opens one pgx connection pool and hands it to both sqlx (read
// queries) and gorm (writes), so the two layers share pool limits.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: dbConn.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm over db connection: %w", err)
	}

	return dbConn, gormDB, nil
}
