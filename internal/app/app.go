package app

import (
	"context"
	"fmt"

	"catalog/internal/config"
	"catalog/internal/connectors/woocommerce"
	"catalog/internal/database"
	"catalog/internal/events"
	"catalog/internal/importer"
	"catalog/internal/logger"
	"catalog/internal/media"
	"catalog/internal/metrics"
	"catalog/internal/runlock"
)

// App is the importer together with the infrastructure it runs on. Every
// entry point builds one from the loaded config.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *database.Database
	Importer *importer.Importer

	closers []func() error
}

type Options struct {
	// Publishers receive progress events in addition to the configured ones.
	Publishers []events.Publisher
	// Metrics counts progress events in the Prometheus registry.
	Metrics bool
}

// New connects the database, the store client and the optional Kafka, Redis
// and media backends. Backends without configuration are left out.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	client, err := woocommerce.NewFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	imp := importer.New(db.DB, client, importer.SettingsFromConfig(cfg.WooCommerce), log)

	if cfg.WooCommerce.DownloadImages {
		if err := cfg.Media.Validate(); err != nil {
			a.Close()
			return nil, err
		}
		store, err := media.NewStore(ctx, cfg.Media)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize media storage: %w", err)
		}
		imp.WithDownloader(media.NewDownloader(store, log))
	}

	publishers := append([]events.Publisher{}, opts.Publishers...)
	if opts.Metrics {
		publishers = append(publishers, metrics.Publisher{})
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaProgressTopic, log)
		publishers = append(publishers, kp)
		a.closers = append(a.closers, kp.Close)
		log.Info("Publishing import progress to Kafka topic %s", cfg.KafkaProgressTopic)
	}
	imp.WithPublisher(events.Multi(publishers))

	if cfg.RedisURL != "" {
		locker, redisClient, err := runlock.NewRedisLockerFromURL(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		imp.WithLocker(locker)
		a.closers = append(a.closers, redisClient.Close)
	} else {
		log.Warn("REDIS_URL is not set, concurrent import runs are not prevented")
	}

	a.Importer = imp
	return a, nil
}

// Close releases the backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to close resource: %v", err)
		}
	}
	a.closers = nil
}
