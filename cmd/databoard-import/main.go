// Command databoard-import copies a housing CSV into the SQLite store used by
// DATA_BACKEND=sqlite and, when AMQP is configured, announces the new dataset.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"databoard/internal/cli"
	"databoard/internal/services"
	"databoard/internal/source/file"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("databoard-import")
	cfg := cli.LoadAndValidateConfig(logger)

	csvPath := flag.String("csv", cfg.DataFile, "CSV file to import")
	dbPath := flag.String("db", cfg.SQLiteDBPath, "SQLite database path")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	records, err := file.New(*csvPath).ReadRecords(ctx)
	if err != nil {
		logger.Error("Failed to read CSV", "error", err, "path", *csvPath)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, *dbPath)
	defer repo.Close()

	if prev, err := repo.LastImport(ctx); err != nil {
		logger.Warn("Failed to read previous import", "error", err)
	} else if prev != nil {
		logger.Info("Replacing previous import", "source", prev.Source, "records", prev.RowCount, "imported_at", prev.ImportedAt)
	}

	if err := repo.Import(ctx, filepath.Base(*csvPath), records); err != nil {
		logger.Error("Import failed", "error", err, "path", *csvPath, "db", *dbPath)
		repo.Close()
		os.Exit(1)
	}
	stored, err := repo.Count(ctx)
	if err != nil {
		logger.Warn("Failed to count stored records", "error", err)
	}
	logger.Info("Imported records", "records", len(records), "stored", stored, "source", *csvPath, "db", *dbPath)

	publisher := cli.ConnectAMQP(logger, cfg)
	if publisher == nil {
		return
	}
	defer publisher.Close()

	svc := services.NewDatasetService(repo, services.DatasetServiceOptions{
		Backend:   "sqlite",
		Publisher: publisher,
		Logger:    logger,
	})
	if _, err := svc.Reload(ctx); err != nil {
		logger.Error("Failed to announce imported dataset", "error", err)
		repo.Close()
		os.Exit(1)
	}
}
