package cli

import (
	"context"
	"fmt"

	"databoard/internal/amqp"
	"databoard/internal/backend"
	"databoard/internal/config"
	applog "databoard/internal/log"
	"databoard/internal/services"
)

// ConnectAMQP returns a client when AMQP_URL is set. A broker that cannot be
// reached is logged and reported as nil so callers run without events.
func ConnectAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - dataset.loaded events will not be sent")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// OpenDataset creates the configured record source and a dataset service
// over it. The returned close function releases the source.
func OpenDataset(ctx context.Context, logger *applog.Logger, cfg *config.Config, publisher *amqp.Client) (*services.DatasetService, func(), error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	opts := services.DatasetServiceOptions{
		Backend: bcfg.Type.String(),
		TTL:     cfg.DatasetCacheTTL,
		Logger:  logger,
	}
	// A nil *amqp.Client must not become a non-nil Publisher.
	if publisher != nil {
		opts.Publisher = publisher
	}
	svc := services.NewDatasetService(res.Backend, opts)

	closeFn := func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close dataset publisher", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Warn("Failed to close dataset backend", "error", err, applog.FieldBackend, bcfg.Type.String())
		}
	}
	return svc, closeFn, nil
}
