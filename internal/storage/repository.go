package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"databoard/internal/core"
	"databoard/internal/source"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the housing dataset in a single SQLite table,
// keeping the original row order.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ source.RecordReader = (*SQLiteRepository)(nil)
	_ source.RecordWriter = (*SQLiteRepository)(nil)
)

// ImportInfo describes the most recent ReplaceAll.
type ImportInfo struct {
	Source     string
	RowCount   int
	ImportedAt time.Time
}

const selectProperties = `SELECT id, price, num_rooms, num_bathrooms, square_footage, year_built,
	garage, pool, location, days_on_market, neighborhood, lot_size, condition, lat, long, sale_date
FROM properties ORDER BY seq`

const insertProperty = `INSERT INTO properties (seq, id, price, num_rooms, num_bathrooms, square_footage,
	year_built, garage, pool, location, days_on_market, neighborhood, lot_size, condition, lat, long, sale_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadRecords implements source.RecordReader
func (r *SQLiteRepository) ReadRecords(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectProperties)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var (
			rec          core.Record
			garage, pool int64
			saleDate     string
		)
		if err := rows.Scan(&rec.ID, &rec.Price, &rec.Rooms, &rec.Bathrooms, &rec.SquareFootage, &rec.YearBuilt,
			&garage, &pool, &rec.Location, &rec.DaysOnMarket, &rec.Neighborhood, &rec.LotSize,
			&rec.Condition, &rec.Lat, &rec.Long, &saleDate); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		rec.Garage = garage != 0
		rec.Pool = pool != 0
		if d, err := core.ParseDate(saleDate); err == nil {
			rec.SaleDate = d
		} else {
			rec.RawSaleDate = saleDate
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	if len(out) == 0 {
		return nil, core.ErrEmptyDataset
	}
	return out, nil
}

// ReplaceAll implements source.RecordWriter. The table is swapped in one
// transaction, so readers see either the old or the new dataset.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, records []core.Record) error {
	return r.Import(ctx, "api", records)
}

// Import replaces the stored dataset and records where it came from.
func (r *SQLiteRepository) Import(ctx context.Context, sourceName string, records []core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM properties`); err != nil {
		return fmt.Errorf("clear properties: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertProperty)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, i+1, rec.ID, rec.Price, rec.Rooms, rec.Bathrooms, rec.SquareFootage,
			rec.YearBuilt, boolToInt(rec.Garage), boolToInt(rec.Pool), rec.Location, rec.DaysOnMarket,
			rec.Neighborhood, rec.LotSize, rec.Condition, rec.Lat, rec.Long, rec.SaleDateText()); err != nil {
			return fmt.Errorf("insert property %d: %w", rec.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO imports (source, row_count) VALUES (?, ?)`, sourceName, len(records)); err != nil {
		return fmt.Errorf("record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Dataset imported to SQLite",
		"source", sourceName,
		"records", len(records))
	return nil
}

// LastImport returns the most recent import, or nil when the table was never filled.
func (r *SQLiteRepository) LastImport(ctx context.Context) (*ImportInfo, error) {
	var (
		info ImportInfo
		at   any
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT source, row_count, imported_at FROM imports ORDER BY id DESC LIMIT 1`).
		Scan(&info.Source, &info.RowCount, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last import: %w", err)
	}
	info.ImportedAt = scanTime(at)
	return &info, nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return n, nil
}

// scanTime accepts the driver's DATETIME representation, parsed or textual.
func scanTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, _ := time.Parse("2006-01-02 15:04:05", t)
		return parsed
	case []byte:
		parsed, _ := time.Parse("2006-01-02 15:04:05", string(t))
		return parsed
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
