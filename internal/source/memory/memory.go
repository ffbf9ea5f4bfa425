package memory

import (
	"context"
	"fmt"
	"sync"

	"databoard/assets"
	"databoard/internal/core"
	"databoard/internal/source"
	"databoard/internal/source/file"
)

// Store keeps a record set in memory. It backs demos and tests and can be
// seeded from the sample dataset bundled with the binary.
type Store struct {
	mu    sync.RWMutex
	items []core.Record
}

var (
	_ source.RecordReader = (*Store)(nil)
	_ source.RecordWriter = (*Store)(nil)
)

func New(records []core.Record) *Store {
	return &Store{items: append([]core.Record(nil), records...)}
}

// NewSample returns a store holding the embedded sample dataset.
func NewSample() (*Store, error) {
	data, err := assets.DataFS.ReadFile(assets.SampleDataset)
	if err != nil {
		return nil, &core.IOError{Path: assets.SampleDataset, Err: err}
	}
	records, err := file.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse sample dataset: %w", err)
	}
	return New(records), nil
}

// ReadRecords returns a copy of the stored records.
func (s *Store) ReadRecords(_ context.Context) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return nil, core.ErrEmptyDataset
	}
	return append([]core.Record(nil), s.items...), nil
}

// ReplaceAll swaps the stored records.
func (s *Store) ReplaceAll(_ context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.Record(nil), records...)
	return nil
}
