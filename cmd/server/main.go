// Package main is the entry point for the shopdesk server binary.
// It dispatches three subcommands (serve, migrate and version) via a switch on os.Args.
// The serve command runs migrations on startup so a fresh deployment needs no separate step.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/api"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/config"
	"github.com/shopdesk/shopdesk/internal/db"
	"github.com/shopdesk/shopdesk/internal/db/repositories"
	"github.com/shopdesk/shopdesk/internal/jobs"
	"github.com/shopdesk/shopdesk/internal/notify"
	"github.com/shopdesk/shopdesk/internal/safego"
	"github.com/shopdesk/shopdesk/internal/telemetry"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "version" {
		fmt.Printf("shopdesk v%s\n", version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	logger := telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := auth.ResolveSecret(cfg.Auth.JWTSecret, cfg.Auth.DevMode)
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	database, err := db.Connect(ctx, cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	logger.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		logger.Warn("failed to get migration version", "error", err)
	} else {
		logger.Info("database schema ready", "version", v, "dirty", dirty)
	}

	telemetry.StartDBStatsCollector(ctx, database)
	if cfg.Telemetry.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Telemetry.Metrics.PrometheusPort)
	}

	shippers, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return fmt.Errorf("failed to configure audit shippers: %w", err)
	}
	defer shippers.Close()

	sink, closeSink, err := notify.New(cfg.Notifications, logger)
	if err != nil {
		return fmt.Errorf("failed to configure notifications: %w", err)
	}
	defer closeSink()

	var rdb redis.UniversalClient
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		rdb = client
	}

	store := db.NewStore(database, cfg.Approvals.TxTimeout)
	var shipper audit.Shipper
	if shippers.Len() > 0 {
		shipper = shippers
	}
	engine := access.NewEngine(access.Deps{
		Store:  store,
		Trail:  audit.NewTrail(store.Reader(), shipper, logger),
		Events: notify.NewDispatcher(sink, logger, cfg.Notifications.Timeout),
		Logger: logger,
	})

	reminder := jobs.NewApprovalReminder(repositories.NewApprovalRepository(database), sink,
		cfg.Approvals.ReminderAfter, cfg.Approvals.ReminderInterval, logger)
	safego.Go("approval-reminder", func() { reminder.Start(ctx) })

	users := repositories.NewUserRepository(database)
	router, bgServices := api.NewRouter(api.Deps{
		Config:        cfg,
		Engine:        engine,
		Authenticator: auth.NewAuthenticator(tokens, users),
		Tokens:        tokens,
		Users:         users,
		DB:            database,
		Redis:         rdb,
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr, "tls", cfg.Security.TLS.Enabled,
			"rate_limit_backend", cfg.Security.RateLimiting.Backend)
		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	bgServices.Shutdown()

	logger.Info("server stopped gracefully")
	return nil
}

// serveMetrics exposes Prometheus metrics on a dedicated port, off the public API listener
func serveMetrics(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	slog.Info("starting Prometheus metrics server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server error", "error", err)
	}
}

func runMigrations(cfg *config.Config, direction string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	database, err := db.Connect(context.Background(), cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}
