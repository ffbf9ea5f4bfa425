package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"databoard/internal/cache"
	"databoard/internal/cli"
	apphttp "databoard/internal/http"
	"databoard/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("databoard")
	cfg := cli.LoadAndValidateConfig(logger)

	publisher := cli.ConnectAMQP(logger, cfg)

	svc, closeDataset, err := cli.OpenDataset(context.Background(), logger, cfg, publisher)
	if err != nil {
		logger.Error("Failed to initialize dataset source", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Load once before serving so a broken source fails fast and the
	// dataset shape is logged at startup.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = svc.Dataset(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Error("Failed to load dataset", "error", err, "backend", cfg.DataBackend)
		closeDataset()
		os.Exit(1)
	}

	caches := cache.NewManager(logger.Logger)
	svc.RegisterCaches(caches)
	caches.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(apphttp.Options{
		Datasets:           svc,
		Sessions:           session.NewManager(svc, logger),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ln, err := cli.Listen(cfg.Port, cfg.PortScan)
	if err != nil {
		logger.Error("Failed to bind port", "error", err, "port", cfg.Port, "port_scan", cfg.PortScan)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		closeDataset()
	})

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "addr", ln.Addr().String())
			os.Exit(1)
		}
	}()

	logger.Info("Starting databoard server", "addr", ln.Addr().String(), "backend", cfg.DataBackend)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
