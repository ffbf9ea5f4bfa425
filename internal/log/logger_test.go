package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"chatty", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLogDatasetLoadedWarnsOnInvalidDates(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentDataset, Handler: NewHandler(&buf, "json", slog.LevelInfo)})

	NewStructuredLogger(logger).LogDatasetLoaded(context.Background(), "file", 10, 3, 2, "2023-01-01", "2023-12-31")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["level"] != "INFO" || first[FieldRecords] != float64(10) || first[FieldBackend] != "file" {
		t.Errorf("unexpected info line: %v", first)
	}
	if second["level"] != "WARN" || second[FieldInvalidDates] != float64(2) {
		t.Errorf("unexpected warn line: %v", second)
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, "text", slog.LevelInfo)})

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != logger {
		t.Fatalf("expected the middleware logger in the request context")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Errorf("expected fallback logger outside requests")
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, "text", slog.LevelInfo)})

	logger.WithComponent(ComponentTrace).WithComponent(ComponentSession).Info("hello")
	logger.WithComponent(ComponentTrace).Info("explicit", FieldComponent, ComponentExport)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if strings.Count(lines[0], "component=") != 1 || !strings.Contains(lines[0], "component=session") {
		t.Errorf("unexpected component attributes: %s", lines[0])
	}
	if strings.Count(lines[1], "component=") != 1 || !strings.Contains(lines[1], "component=export") {
		t.Errorf("caller component must win: %s", lines[1])
	}
}
