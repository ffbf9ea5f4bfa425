// Package file reads the housing dataset from a comma-separated file.
//
// The format is a header line followed by one record per line. Fields are
// split on every comma; quoting is not supported.
package file

import (
	"context"
	"os"
	"strings"

	"databoard/internal/core"
	"databoard/internal/source"
)

type Source struct {
	path string
}

var _ source.RecordReader = (*Source)(nil)

func New(path string) *Source {
	return &Source{path: path}
}

// Path returns the file the source reads.
func (s *Source) Path() string { return s.path }

// ReadRecords reads and parses the whole file. Read failures are reported as
// *core.IOError; nothing is returned on a partial read.
func (s *Source) ReadRecords(ctx context.Context) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &core.IOError{Path: s.path, Err: err}
	}
	return Parse(data)
}

// Parse decodes CSV text into records in file order.
func Parse(data []byte) ([]core.Record, error) {
	return source.DecodeRows(Split(string(data)))
}

// Split breaks text into data rows. The first line is the header and is
// dropped. Trailing carriage returns are trimmed and blank lines skipped.
func Split(text string) []source.Row {
	lines := strings.Split(text, "\n")
	rows := make([]source.Row, 0, len(lines))
	for i, line := range lines {
		if i == 0 {
			continue
		}
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, source.Row{Line: i + 1, Fields: strings.Split(line, ",")})
	}
	return rows
}
