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

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/asset"
	assetpostgres "github.com/assetops/asset-management/internal/asset/postgres"
	"github.com/assetops/asset-management/internal/assignment"
	assignmentpostgres "github.com/assetops/asset-management/internal/assignment/postgres"
	"github.com/assetops/asset-management/internal/audit"
	auditpostgres "github.com/assetops/asset-management/internal/audit/postgres"
	"github.com/assetops/asset-management/internal/auth"
	authpostgres "github.com/assetops/asset-management/internal/auth/postgres"
	"github.com/assetops/asset-management/internal/core/events"
	"github.com/assetops/asset-management/internal/transport/rest"
	"github.com/assetops/asset-management/internal/transport/swagger"
	"github.com/assetops/asset-management/internal/user"
	userpostgres "github.com/assetops/asset-management/internal/user/postgres"
	"github.com/assetops/asset-management/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
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
	Config            *internal.Config
	DB                *sqlx.DB
	GormDB            *gorm.DB
	Router            *chi.Mux
	Logger            *slog.Logger
	AuthHandler       *auth.Handler
	AssetHandler      *asset.Handler
	AssignmentHandler *assignment.Handler
	UserHandler       *user.Handler
	AuditHandler      *audit.Handler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := swagger.ValidateSpec("./api/openapi.yml"); err != nil {
		deps.Logger.Warn("openapi spec validation failed", "error", err)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.AuthHandler, deps.AssetHandler,
		deps.AssignmentHandler, deps.UserHandler, deps.AuditHandler, deps.Logger)

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

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	registerEventHandlers(eventBus, lg)

	// Auth
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authpostgres.NewRepository(gormDB), tokenGen)
	authHandler := auth.NewHandler(authService)

	// Audit
	auditService := audit.NewService(auditpostgres.NewAuditRepository(gormDB), lg)
	auditHandler := audit.NewHandler(auditService)

	// Assets
	assetService := asset.NewService(assetpostgres.NewAssetRepository(gormDB), config.Assets.TagPrefix, lg)
	assetHandler := asset.NewHandler(assetService)

	// Assignments
	assignmentService := assignment.NewService(assignmentpostgres.NewAssignmentRepository(gormDB), eventBus, lg)
	assignmentHandler := assignment.NewHandler(assignmentService)

	// Users
	userService := user.NewService(userpostgres.NewUserRepository(gormDB), auditService, config.Assets.BulkBatchSize, lg)
	userHandler := user.NewHandler(userService)

	return &Dependencies{
		Config:            config,
		Logger:            lg,
		DB:                db,
		GormDB:            gormDB,
		Router:            chi.NewRouter(),
		AuthHandler:       authHandler,
		AssetHandler:      assetHandler,
		AssignmentHandler: assignmentHandler,
		UserHandler:       userHandler,
		AuditHandler:      auditHandler,
	}, nil
}

// registerEventHandlers attaches the in-process consumers that react to
// custody changes.
func registerEventHandlers(bus *events.EventBus, lg *slog.Logger) {
	bus.Subscribe(events.EventTypeAssetAssigned, func(ctx context.Context, event events.Event) error {
		lg.Info("asset assigned notification",
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})
	bus.Subscribe(events.EventTypeAssetReturned, func(ctx context.Context, event events.Event) error {
		lg.Info("asset returned notification",
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
