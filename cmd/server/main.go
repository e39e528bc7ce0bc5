package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
	"github.com/BR4Y4NEXE/Datrix/internal/logging"
	"github.com/BR4Y4NEXE/Datrix/internal/notify"
	"github.com/BR4Y4NEXE/Datrix/internal/pipeline"
	"github.com/BR4Y4NEXE/Datrix/internal/quarantine"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
	"github.com/BR4Y4NEXE/Datrix/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireDatabase(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"max_concurrent_runs", cfg.Pipeline.MaxConcurrent,
		"schedule", cfg.Pipeline.Schedule,
		"notifications", cfg.Notify.Enabled,
	)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if err := st.Migrate(); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Runs outlive the request that started them; they are cancelled on shutdown.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	hub := pipeline.NewLogHub(pipeline.DefaultSubscriberBuffer, pipeline.DefaultRetainedRuns)
	qdir := quarantine.New(cfg.Pipeline.QuarantineDir)
	notifier := notify.New(cfg.Notify)
	limiter := pipeline.NewRunLimiter(cfg.Pipeline.MaxConcurrent, cfg.Pipeline.MaxWaitTime)

	runner := pipeline.NewRunner(pipeline.Deps{
		Ledger:     st,
		Sink:       st,
		Quarantine: qdir,
		Notifier:   notifier,
		Hub:        hub,
		Engine:     pipeline.EngineSettings(cfg.Engine),
	})
	dispatcher := pipeline.NewDispatcher(jobCtx, runner, st, limiter, cfg.Pipeline.RunTimeout)

	var scheduler *pipeline.Scheduler
	if cfg.Pipeline.Schedule != "" {
		scheduler = pipeline.NewScheduler(dispatcher, cfg.Pipeline.InputDir, cfg.Pipeline.FilePrefix, nil)
		if err := scheduler.Start(cfg.Pipeline.Schedule); err != nil {
			slog.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	server := web.NewServer(web.Deps{
		Config:     cfg,
		Store:      st,
		Runs:       dispatcher,
		Limiter:    limiter,
		Hub:        hub,
		Quarantine: qdir,
		Notifier:   notifier,
	})

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		if scheduler != nil {
			scheduler.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for active runs to complete (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := dispatcher.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time, cancelling", "error", err)
				cancelJobs()
			} else {
				slog.Info("all runs completed")
			}
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
