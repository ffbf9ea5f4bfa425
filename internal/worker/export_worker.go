package worker

import (
	"context"
	"fmt"
	"sync"

	"databoard/internal/amqp"
	"databoard/internal/core"
	"databoard/internal/export"
	applog "databoard/internal/log"
)

// Reloader reads the dataset from its source, bypassing any cache.
type Reloader interface {
	Reload(ctx context.Context) (core.Dataset, error)
}

// Exporter writes the static site.
type Exporter interface {
	Export(ctx context.Context) (export.Result, error)
}

// ExportWorker refreshes the static export whenever a dataset.loaded
// message announces new content.
type ExportWorker struct {
	datasets Reloader
	exporter Exporter
	logger   *applog.Logger

	mu           sync.Mutex
	lastExported string
}

func NewExportWorker(datasets Reloader, exporter Exporter, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &ExportWorker{
		datasets: datasets,
		exporter: exporter,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleDatasetLoaded re-exports when the announced fingerprint differs from
// the last export. Returning an error asks the broker to redeliver.
func (w *ExportWorker) HandleDatasetLoaded(ctx context.Context, msg *amqp.DatasetLoadedMessage) error {
	w.logger.InfoContext(ctx, "Processing dataset.loaded message",
		applog.FieldBackend, msg.Backend,
		applog.FieldFingerprint, msg.Fingerprint,
		applog.FieldRecords, msg.Records)

	if w.exported(msg.Fingerprint) {
		w.logger.DebugContext(ctx, "Export already up to date", applog.FieldFingerprint, msg.Fingerprint)
		return nil
	}
	return w.refresh(ctx)
}

// StartupExport writes an export before the worker starts consuming, so a
// fresh deployment does not wait for the first message.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	return w.refresh(ctx)
}

func (w *ExportWorker) refresh(ctx context.Context) error {
	ds, err := w.datasets.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reload dataset: %w", err)
	}
	if w.exported(ds.Fingerprint) {
		return nil
	}

	res, err := w.exporter.Export(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Static export failed",
			applog.FieldError, err,
			applog.FieldFingerprint, ds.Fingerprint)
		return fmt.Errorf("export: %w", err)
	}

	w.mu.Lock()
	w.lastExported = ds.Fingerprint
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Static export refreshed",
		applog.FieldFingerprint, ds.Fingerprint,
		applog.FieldRecords, ds.Total,
		"files", len(res.Files))
	return nil
}

func (w *ExportWorker) exported(fingerprint string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fingerprint != "" && fingerprint == w.lastExported
}

// LastExported returns the fingerprint of the dataset last written.
func (w *ExportWorker) LastExported() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastExported
}
