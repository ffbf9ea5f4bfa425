package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"databoard/internal/amqp"
	"databoard/internal/core"
	"databoard/internal/filter"
)

type countingReader struct {
	calls   atomic.Int32
	records []core.Record
	err     error
	block   chan struct{}
}

func (r *countingReader) ReadRecords(ctx context.Context) ([]core.Record, error) {
	r.calls.Add(1)
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return nil, r.err
	}
	return append([]core.Record(nil), r.records...), nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.DatasetLoadedMessage
	err  error
}

func (p *recordingPublisher) PublishDatasetLoaded(_ context.Context, m *amqp.DatasetLoadedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
	return p.err
}

func sampleRecords() []core.Record {
	return []core.Record{
		{ID: 1, Neighborhood: "A", Price: 100, Pool: true, SaleDate: core.NewDate(2023, 1, 15)},
		{ID: 2, Neighborhood: "A", Price: 200, SaleDate: core.NewDate(2023, 2, 1)},
		{ID: 3, Neighborhood: "B", Price: 300, RawSaleDate: "unknown"},
	}
}

func TestDatasetAggregatesAndCaches(t *testing.T) {
	reader := &countingReader{records: sampleRecords()}
	svc := NewDatasetService(reader, DatasetServiceOptions{Backend: "memory", TTL: time.Minute})

	ds, err := svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Total)
	assert.Equal(t, 1, ds.InvalidDates)
	require.Len(t, ds.Groups, 2)
	assert.Equal(t, 150.0, ds.Groups[0].Price)
	assert.NotEmpty(t, ds.Fingerprint)

	_, err = svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), reader.calls.Load())

	_, err = svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), reader.calls.Load())
}

func TestZeroTTLReadsEveryTime(t *testing.T) {
	reader := &countingReader{records: sampleRecords()}
	svc := NewDatasetService(reader, DatasetServiceOptions{Backend: "file"})

	for i := 0; i < 3; i++ {
		_, err := svc.Dataset(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), reader.calls.Load())
}

func TestConcurrentLoadsCollapse(t *testing.T) {
	reader := &countingReader{records: sampleRecords(), block: make(chan struct{})}
	svc := NewDatasetService(reader, DatasetServiceOptions{Backend: "file", TTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Dataset(context.Background())
			assert.NoError(t, err)
		}()
	}
	// Let the goroutines reach the shared load before releasing it.
	require.Eventually(t, func() bool { return reader.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(reader.block)
	wg.Wait()

	assert.Equal(t, int32(1), reader.calls.Load())
}

func TestLoadErrorsAreWrapped(t *testing.T) {
	reader := &countingReader{err: &core.IOError{Path: "x.csv", Err: errors.New("denied")}}
	svc := NewDatasetService(reader, DatasetServiceOptions{Backend: "file", TTL: time.Minute})

	_, err := svc.Dataset(context.Background())
	var ioErr *core.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Contains(t, err.Error(), "load file dataset")
}

func TestPublishesOnlyChangedDatasets(t *testing.T) {
	reader := &countingReader{records: sampleRecords()}
	pub := &recordingPublisher{}
	svc := NewDatasetService(reader, DatasetServiceOptions{Backend: "sqlite", Publisher: pub})

	_, err := svc.Dataset(context.Background())
	require.NoError(t, err)
	_, err = svc.Dataset(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, 3, pub.msgs[0].Records)
	assert.Equal(t, "2023-01-15", pub.msgs[0].DateMin)

	reader.records = reader.records[:2]
	_, err = svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.msgs, 2)
}

func TestPublishFailureDoesNotFailLoad(t *testing.T) {
	reader := &countingReader{records: sampleRecords()}
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewDatasetService(reader, DatasetServiceOptions{Backend: "file", Publisher: pub})

	_, err := svc.Dataset(context.Background())
	require.NoError(t, err)

	// The failed announcement is retried on the next load.
	_, err = svc.Dataset(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.msgs, 2)
}

func TestViewIsCachedPerState(t *testing.T) {
	reader := &countingReader{records: sampleRecords()}
	svc := NewDatasetService(reader, DatasetServiceOptions{Backend: "memory", TTL: time.Minute})

	st := filter.State{}.WithPool(filter.Some(true))
	v, err := svc.View(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Summary.Count)

	_, err = svc.View(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), svc.CacheStats()["views"].Hits)

	all, err := svc.View(context.Background(), filter.State{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Summary.Count)
}

func TestNewEngineStartsAtDatasetExtent(t *testing.T) {
	svc := NewDatasetService(&countingReader{records: sampleRecords()}, DatasetServiceOptions{Backend: "memory"})

	e, err := svc.NewEngine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, e.View().Summary.Count)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a, err := Fingerprint(sampleRecords())
	require.NoError(t, err)
	b, err := Fingerprint(sampleRecords()[:2])
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
