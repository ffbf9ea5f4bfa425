// Package source defines the ports through which datasets are read, plus the
// row decoding shared by the tabular adapters.
package source

import (
	"context"

	"databoard/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordReader loads the full record set from its backing store.
	RecordReader interface {
		ReadRecords(ctx context.Context) ([]core.Record, error)
	}

	// RecordWriter replaces the full record set in a writable store.
	RecordWriter interface {
		ReplaceAll(ctx context.Context, records []core.Record) error
	}
)

// Row is one data row of a tabular source together with its 1-based
// physical line (or sheet row) number.
type Row struct {
	Line   int
	Fields []string
}

// DecodeRows parses rows into records, in order. The first malformed row
// aborts decoding with its *core.ParseError. No rows yields core.ErrEmptyDataset.
func DecodeRows(rows []Row) ([]core.Record, error) {
	if len(rows) == 0 {
		return nil, core.ErrEmptyDataset
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, _, err := core.ParseRecord(row.Fields, row.Line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
