// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/booking"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/config"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/database"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/events"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/handler"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/logger"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/metrics"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/repository/memory"
	"github.com/Shivanand-hulikatti/workshop-enrollment/internal/service"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "workshops",
		Short:         "Workshop enrollment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (yaml, json or toml)")

	var migrateFirst bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, migrateFirst)
		},
	}
	serve.Flags().BoolVar(&migrateFirst, "migrate", false, "apply the schema before serving (postgres only)")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg)
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	pool, err := database.NewPool(ctx, cfg.DB, cfg.LockTimeout, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("schema applied", "database", cfg.DB.Name)
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, migrateFirst bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	// ── 1. Open the store ─────────────────────────────────────────────────
	var store repository.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = memory.New(memory.WithLockTimeout(cfg.LockTimeout))
		log.Warn("using in-memory store, data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.DB, cfg.LockTimeout, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if migrateFirst {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
		}
		pg, err := repository.NewPostgresStore(pool)
		if err != nil {
			return err
		}
		store = pg
		log.Info("connected to PostgreSQL", "host", cfg.DB.Host, "database", cfg.DB.Name)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	rec := metrics.New()
	var pub events.Publisher = events.Nop()
	if cfg.Redis.Addr != "" {
		rp, err := events.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		defer rp.Close()
		pub = rp
		log.Info("publishing enrollment events", "redis", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	engine := booking.NewEngine(store, log, booking.WithRecorder(rec), booking.WithPublisher(pub))
	validate := handler.NewValidator()
	admin := service.NewAdminService(store, validate, log)
	h := handler.New(engine, admin, validate, log)

	router := handler.NewRouter(h, handler.RouterConfig{
		Log:       log,
		JWTSecret: []byte(cfg.JWTSecret),
		Metrics:   rec.Handler(),
	})

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
