// Command databoard-export renders the dashboard and its data endpoint into
// a directory of static files that any web server can host.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"databoard/internal/cli"
	"databoard/internal/export"
	apphttp "databoard/internal/http"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("databoard-export")
	cfg := cli.LoadAndValidateConfig(logger)

	dir := flag.String("out", cfg.ExportDir, "output directory")
	baseURL := flag.String("base-url", cfg.ExportBaseURL, "URL prefix the export will be served under")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	svc, closeDataset, err := cli.OpenDataset(ctx, logger, cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize dataset source", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeDataset()

	site := apphttp.NewServer(apphttp.Options{
		Datasets:           svc,
		BaseURL:            *baseURL,
		RateLimitPerMinute: 10000,
		Logger:             logger,
	})
	defer site.Shutdown(context.Background())

	res, err := export.New(site.Handler, *dir, logger).Export(ctx)
	if err != nil {
		logger.Error("Static export failed", "error", err, "dir", *dir)
		closeDataset()
		os.Exit(1)
	}
	logger.Info("Export finished", "dir", res.Dir, "files", res.Files, "bytes", res.Bytes, "base_url", *baseURL)
}
