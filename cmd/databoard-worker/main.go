package main

import (
	"context"
	"errors"
	"os"
	"time"

	"databoard/internal/cli"
	"databoard/internal/export"
	apphttp "databoard/internal/http"
	"databoard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("databoard-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}
	consumer := cli.ConnectAMQP(logger, cfg)
	if consumer == nil {
		os.Exit(1)
	}
	defer consumer.Close()

	// The worker only reads; it must not announce the datasets it loads.
	svc, closeDataset, err := cli.OpenDataset(context.Background(), logger, cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize dataset source", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeDataset()

	site := apphttp.NewServer(apphttp.Options{
		Datasets:           svc,
		BaseURL:            cfg.ExportBaseURL,
		RateLimitPerMinute: 10000,
		Logger:             logger,
	})
	defer site.Shutdown(context.Background())

	exportWorker := worker.NewExportWorker(svc, export.New(site.Handler, cfg.ExportDir, logger), logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	logger.Info("Performing startup export", "dir", cfg.ExportDir)
	if err := exportWorker.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", "error", err)
	}

	logger.Info("Starting databoard-worker", "queue", cfg.AMQPQueue)
	if err := consumer.ConsumeDatasetLoaded(ctx, exportWorker.HandleDatasetLoaded); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
