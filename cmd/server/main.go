package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/fieldops/api"
	dbfs "github.com/garnizeh/fieldops/db"
	"github.com/garnizeh/fieldops/internal/auth"
	"github.com/garnizeh/fieldops/internal/config"
	"github.com/garnizeh/fieldops/internal/db"
	"github.com/garnizeh/fieldops/internal/jobs"
	"github.com/garnizeh/fieldops/internal/overdue"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting fieldops server", "version", version, "build_time", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath, logger.With("component", "db"))
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
		n, err := db.Seed(ctx, database, dbfs.SeedFiles)
		if err != nil {
			log.Fatalf("Failed to seed DB: %v", err)
		}
		logger.Info("migrations applied", "equipment_seeded", n)
	}

	repo := sqlite.New(database, logger.With("component", "repository"))

	if cfg.Bootstrap.Username != "" {
		authSvc := auth.New(repo, cfg.JWTSecret, cfg.TokenDuration, cfg.RefreshTokenDuration, logger.With("component", "auth"))
		if _, err := authSvc.EnsureAdmin(ctx, auth.NewUser{
			Username: cfg.Bootstrap.Username,
			Email:    cfg.Bootstrap.Email,
			Password: cfg.Bootstrap.Password,
		}); err != nil {
			log.Fatalf("Failed to bootstrap admin: %v", err)
		}
	}

	// Background workers
	flagger := overdue.NewFlagger(repo, logger.With("component", "overdue"))
	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{
		overdue.JobType: flagger.Handler(),
	}, logger.With("component", "jobs"), cfg.Workers)
	pool.Start(ctx)

	var scheduler *jobs.Scheduler
	if cfg.Overdue.Enabled {
		scheduler = jobs.NewScheduler(repo, overdue.JobType, cfg.Overdue.Interval, logger.With("component", "scheduler"))
		scheduler.Start(ctx)
	}

	handler := api.SetupRoutes(cfg, version, buildTime, database)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	pool.Stop()

	// Close database connection
	if err := database.Close(); err != nil {
		logger.Error("error closing DB", "err", err)
	}

	logger.Info("server exited")
}
