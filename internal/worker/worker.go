package worker

import (
	"context"
	"errors"
	"io"
	"time"

	"catalog/internal/config"
	"catalog/internal/logger"
	"catalog/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

const readRetryDelay = 2 * time.Second

// MessageReader is the part of *kafka.Reader the worker uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Worker struct {
	logger     *logger.Logger
	reader     MessageReader
	processor  *processors.ImportProcessor
	retryDelay time.Duration
}

func New(cfg *config.Config, runner processors.Runner, logger *logger.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  "catalog-importer",
		Topic:    cfg.KafkaRequestTopic,
		MinBytes: 1,
		MaxBytes: 1e6, // 1MB
		// Commits are explicit so a request interrupted by shutdown is redelivered.
		CommitInterval: 0,
	})

	return NewWithReader(reader, runner, logger)
}

func NewWithReader(reader MessageReader, runner processors.Runner, logger *logger.Logger) *Worker {
	return &Worker{
		logger:     logger,
		reader:     reader,
		processor:  processors.NewImportProcessor(runner, logger),
		retryDelay: readRetryDelay,
	}
}

// Start consumes import requests until ctx is cancelled or the reader is
// closed. Every handled message is committed, failed ones included: the run
// history already records the failure.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started, listening for import requests...")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			w.logger.Error("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.retryDelay):
			}
			continue
		}

		log := w.logger.WithFields(logger.Fields{
			"partition": message.Partition,
			"offset":    message.Offset,
		})
		log.Debug("Received message: %s", string(message.Value))

		if err := w.processor.Process(ctx, message.Value); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, processors.ErrMalformedRequest) {
				log.Warn("Skipping message: %v", err)
			} else {
				log.Error("Failed to process import request: %v", err)
			}
		}

		if err := w.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Failed to commit message: %v", err)
		}
	}
}

func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker...")
	return w.reader.Close()
}
