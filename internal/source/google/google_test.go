package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"databoard/internal/core"

	goption "google.golang.org/api/option"
)

var headerRow = []interface{}{"id", "price", "num_rooms", "num_bathrooms", "square_footage", "year_built", "garage", "pool", "location", "days_on_market", "neighborhood", "lot_size", "condition", "lat", "long", "sale_date"}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Housing")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseValues(t *testing.T) {
	values := [][]interface{}{
		headerRow,
		{"1", "100", "2", "1", "900", "1990", "TRUE", "true", "Downtown", "5", "A", "4000", "Good", "40.1", "-73.9", "2023-01-15"},
		{},
		{"2", "250.5", "3", "2", "1200", "2001", "false", "false", "Uptown", "8", "B", "5000", "Fair", "40.2", "-73.8"},
	}

	records, err := parseValues(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Garage || !records[0].Pool {
		t.Errorf("booleans must match exact \"true\": %+v", records[0])
	}
	if records[1].HasValidDate() {
		t.Errorf("missing trailing date cell should leave the date invalid")
	}
}

func TestParseValuesReportsSheetRow(t *testing.T) {
	values := [][]interface{}{
		headerRow,
		{"1", "100", "2", "1", "900", "1990", "true", "true", "Downtown", "5", "A", "4000", "Good", "40.1", "-73.9", "2023-01-15"},
		{"x", "100", "2", "1", "900", "1990", "true", "true", "Downtown", "5", "A", "4000", "Good", "40.1", "-73.9", "2023-01-15"},
	}
	_, err := parseValues(values)
	var pe *core.ParseError
	if !errors.As(err, &pe) || pe.Line != 3 || pe.Column != "id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadRecordsFromAPI(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"range":          "Housing!A1:P2",
			"majorDimension": "ROWS",
			"values": [][]any{
				headerRow,
				{"7", "320000", "3", "2", "1400", "1999", "true", "false", "Downtown", "12", "Riverside", "5200", "Good", "40.71", "-74.01", "2023-05-02"},
			},
		})
	}))
	defer srv.Close()

	c, err := New(context.Background(), "sheet-id", "Housing",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	records, err := c.ReadRecords(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 || records[0].ID != 7 || records[0].Neighborhood != "Riverside" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if !strings.Contains(gotPath, "sheet-id") {
		t.Errorf("request path %q should name the spreadsheet", gotPath)
	}
}

func TestReadRecordsUninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetName: "Housing"}
	if _, err := c.ReadRecords(context.Background()); err == nil {
		t.Fatal("expected error without a service")
	}
}
