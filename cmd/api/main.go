package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"catalog/internal/api"
	"catalog/internal/app"
	"catalog/internal/config"
	"catalog/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database, store client and backends
	a, err := app.New(ctx, cfg, logger, app.Options{Metrics: true})
	if err != nil {
		logger.Fatal("Failed to initialize importer: %v", err)
	}
	defer a.Close()

	server := api.New(cfg, logger, a.DB.DB, a.Importer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server stopped: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed: %v", err)
		}
	}
}
