package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"databoard/internal/aggregate"
	"databoard/internal/amqp"
	"databoard/internal/cache"
	"databoard/internal/core"
	"databoard/internal/filter"
	applog "databoard/internal/log"
	"databoard/internal/source"
	"databoard/internal/views"
)

const (
	datasetKey    = "dataset"
	viewCacheSize = 256
)

// Publisher announces freshly loaded datasets.
type Publisher interface {
	PublishDatasetLoaded(ctx context.Context, msg *amqp.DatasetLoadedMessage) error
}

// DatasetServiceOptions configures a DatasetService.
type DatasetServiceOptions struct {
	// Backend names the source in logs and events.
	Backend string
	// TTL bounds how long a loaded dataset is reused. Zero reads the source
	// on every call.
	TTL time.Duration
	// Publisher is optional; nil disables dataset.loaded events.
	Publisher Publisher
	Logger    *applog.Logger
}

// DatasetService loads the dataset from its source, aggregates it and keeps
// the read-only result for the configured TTL. Concurrent loads collapse
// into one source read.
type DatasetService struct {
	reader     source.RecordReader
	backend    string
	publisher  Publisher
	logger     *applog.Logger
	structured *applog.StructuredLogger

	datasets *cache.LRUCache[core.Dataset]
	views    *cache.LRUCache[views.View]
	group    singleflight.Group

	mu              sync.Mutex
	lastFingerprint string

	now func() time.Time
}

func NewDatasetService(reader source.RecordReader, opts DatasetServiceOptions) *DatasetService {
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentDataset)
	return &DatasetService{
		reader:     reader,
		backend:    opts.Backend,
		publisher:  opts.Publisher,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
		datasets:   cache.NewLRUCache[core.Dataset](1, opts.TTL),
		views:      cache.NewLRUCache[views.View](viewCacheSize, opts.TTL),
		now:        time.Now,
	}
}

// Dataset returns the cached dataset, loading it when absent or expired.
func (s *DatasetService) Dataset(ctx context.Context) (core.Dataset, error) {
	if ds, ok := s.datasets.Get(datasetKey); ok {
		return ds, nil
	}
	return s.load(ctx)
}

// Reload reads the source even when a cached dataset is still fresh.
func (s *DatasetService) Reload(ctx context.Context) (core.Dataset, error) {
	s.datasets.Delete(datasetKey)
	return s.load(ctx)
}

func (s *DatasetService) load(ctx context.Context) (core.Dataset, error) {
	// The shared load must not fail because the first caller went away.
	ch := s.group.DoChan(datasetKey, func() (any, error) {
		return s.loadFromSource(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return core.Dataset{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return core.Dataset{}, res.Err
		}
		return res.Val.(core.Dataset), nil
	}
}

func (s *DatasetService) loadFromSource(ctx context.Context) (core.Dataset, error) {
	records, err := s.reader.ReadRecords(ctx)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("load %s dataset: %w", s.backend, err)
	}

	ds := aggregate.Summarize(records)
	ds.LoadedAt = s.now()
	ds.Fingerprint, err = Fingerprint(records)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("fingerprint dataset: %w", err)
	}

	s.structured.LogDatasetLoaded(ctx, s.backend, ds.Total, len(ds.Groups), ds.InvalidDates,
		ds.DateRange.Min.String(), ds.DateRange.Max.String())

	s.datasets.Set(datasetKey, ds)
	s.announce(ctx, ds)
	return ds, nil
}

// announce publishes dataset.loaded when the content changed since the last
// announcement. Publish failures are logged and do not fail the load.
func (s *DatasetService) announce(ctx context.Context, ds core.Dataset) {
	if s.publisher == nil {
		return
	}
	s.mu.Lock()
	changed := ds.Fingerprint != s.lastFingerprint
	if changed {
		s.lastFingerprint = ds.Fingerprint
	}
	s.mu.Unlock()
	if !changed {
		return
	}

	msg := amqp.NewDatasetLoadedMessage(s.backend, ds.Fingerprint, ds.Total, len(ds.Groups), ds.InvalidDates,
		ds.DateRange.Min.String(), ds.DateRange.Max.String())
	if err := s.publisher.PublishDatasetLoaded(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish dataset loaded message",
			applog.FieldError, err,
			applog.FieldFingerprint, ds.Fingerprint)
		s.mu.Lock()
		s.lastFingerprint = ""
		s.mu.Unlock()
	}
}

// View builds the derived view for a filter state over the current dataset.
// Results are cached per dataset fingerprint and state.
func (s *DatasetService) View(ctx context.Context, st filter.State) (views.View, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return views.View{}, err
	}
	key := ds.Fingerprint + "|" + st.Key()
	if v, ok := s.views.Get(key); ok {
		return v, nil
	}
	v := views.Build(st.Apply(ds.Records))
	s.views.Set(key, v)
	return v, nil
}

// NewEngine returns a filter engine over the current dataset, positioned at
// its initial state.
func (s *DatasetService) NewEngine(ctx context.Context) (*filter.Engine, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return filter.NewEngine(ds), nil
}

// Backend returns the configured source name.
func (s *DatasetService) Backend() string { return s.backend }

// RegisterCaches adds the service caches to a cleanup manager.
func (s *DatasetService) RegisterCaches(m *cache.Manager) {
	m.Register("datasets", s.datasets)
	m.Register("views", s.views)
}

// CacheStats reports the dataset and view cache counters.
func (s *DatasetService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"datasets": s.datasets.Stats(),
		"views":    s.views.Stats(),
	}
}

// Close releases the publisher when it holds a connection.
func (s *DatasetService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}

// Fingerprint is a short content hash of the record set.
func Fingerprint(records []core.Record) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
