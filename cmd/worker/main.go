package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/app"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/config"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/scheduler"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/tracing"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.WithComponent("worker")

	if err := run(cfg, logger); err != nil {
		logger.ErrorWithErr("worker exited", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so the deferred closers always execute
func run(cfg *config.Config, logger *logging.Logger) error {
	closer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer closer.Close()

	// Handle shutdown gracefully
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Open(ctx, cfg, logger)
	defer svc.Close()
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	// Usage event ledger
	if svc.Queue != nil {
		ledger := &ledger{logger: logger}
		if svc.Repository != nil {
			ledger.recorder = svc.Repository
		}
		if err := svc.Queue.ConsumeUsage(ctx, ledger.Handle); err != nil {
			return fmt.Errorf("failed to consume usage events: %w", err)
		}
		logger.Info("Consuming usage events")
	} else {
		logger.Warn("Queue disabled, usage events are not recorded")
	}

	// Periodic reconciliation
	sched := scheduler.NewScheduler(svc.Store, svc.Library, logger)
	if err := sched.Start(cfg.Worker.ReconcileSchedule); err != nil {
		return fmt.Errorf("failed to start reconcile scheduler: %w", err)
	}
	defer sched.Stop()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, svc.Health...)
		go func() {
			logger.Infof("Starting metrics server on port %d", cfg.Metrics.Port)
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("metrics server failed", err)
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	logger.Info("Worker started")

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("Shutting down worker gracefully...")
	return nil
}
