package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"databoard/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestReadRecordsEmpty(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.ReadRecords(context.Background()); !errors.Is(err, core.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	info, err := repo.LastImport(context.Background())
	if err != nil || info != nil {
		t.Fatalf("expected no import, got %+v err=%v", info, err)
	}
}

func TestImportRoundTripPreservesOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	in := []core.Record{
		{ID: 9, Price: 120000, Rooms: 3, Bathrooms: 2, Garage: true, Neighborhood: "B", Location: "Uptown", Condition: "Good", SaleDate: core.NewDate(2023, 4, 2)},
		{ID: 2, Price: 99000, Rooms: 2, Bathrooms: 1, Pool: true, Neighborhood: "A", Location: "Downtown", RawSaleDate: "n/a"},
	}

	if err := repo.Import(ctx, "test.csv", in); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := repo.ReadRecords(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].ID != 9 || got[1].ID != 2 {
		t.Fatalf("order not preserved: %+v", got)
	}
	if !got[0].Garage || got[0].Pool || !got[1].Pool {
		t.Fatalf("booleans not preserved: %+v", got)
	}
	if !got[0].SaleDate.Equal(core.NewDate(2023, 4, 2)) || got[1].HasValidDate() || got[1].RawSaleDate != "n/a" {
		t.Fatalf("dates not preserved: %+v", got)
	}

	info, err := repo.LastImport(ctx)
	if err != nil || info == nil || info.Source != "test.csv" || info.RowCount != 2 {
		t.Fatalf("unexpected import info: %+v err=%v", info, err)
	}
}

func TestReplaceAllSwapsDataset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.ReplaceAll(ctx, []core.Record{{ID: 1, Neighborhood: "A"}, {ID: 2, Neighborhood: "A"}}); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if err := repo.ReplaceAll(ctx, []core.Record{{ID: 3, Neighborhood: "C"}}); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d err=%v", n, err)
	}
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
}
