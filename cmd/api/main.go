package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/app"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/config"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/generator"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/metrics"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/middleware"
	"github.com/therealutkarshpriyadarshi/promptdesk/internal/prompts"
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

	if err := run(cfg, logger); err != nil {
		logger.ErrorWithErr("API server exited", err)
		os.Exit(1)
	}
}

// run owns every resource it opens, so its defers always execute before the
// process exits.
func run(cfg *config.Config, logger *logging.Logger) error {
	closer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Open(ctx, cfg, logger)
	defer svc.Close()
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if cfg.AllowList.Watch {
		go func() {
			if err := svc.AllowList.Watch(ctx); err != nil {
				logger.ErrorWithErr("allow-list watcher stopped", err)
			}
		}()
	}

	var health []healthCheck
	for _, h := range svc.Health {
		health = append(health, healthCheck{h.Name, h.Check})
	}

	catalog, err := prompts.LoadOrDefault(cfg.Prompts.CatalogFile)
	if err != nil {
		return fmt.Errorf("failed to load prompt catalog: %w", err)
	}

	var gen generator.Generator
	if g, err := generator.NewOpenAI(cfg.LLM); err == nil {
		gen = g
	} else if errors.Is(err, generator.ErrNotConfigured) {
		logger.Warn("LLM API key not set, generation is disabled")
	} else {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	api := &API{
		creds:     svc.Credentials,
		quota:     svc.Accountant,
		table:     svc.Table,
		library:   svc.Library,
		catalog:   catalog,
		generator: gen,
		tokens:    middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		health:    health,
		logger:    logger.WithComponent("api"),
	}

	rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go rl.Cleanup(ctx)

	router := setupRouter(api, rl, logger)

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

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}

	logger.Info("Server stopped")
	return nil
}
