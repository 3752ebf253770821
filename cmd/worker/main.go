package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"catalog/internal/app"
	"catalog/internal/config"
	"catalog/internal/logger"
	"catalog/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required to run the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{Metrics: true})
	if err != nil {
		logger.Fatal("Failed to initialize importer: %v", err)
	}
	defer a.Close()

	// Initialize worker
	w := worker.New(cfg, a.Importer, logger)
	defer func() {
		if err := w.Stop(); err != nil {
			logger.Warn("Failed to close Kafka reader: %v", err)
		}
	}()

	if err := w.Start(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}
	logger.Info("Worker shut down")
}
