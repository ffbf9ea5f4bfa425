package export

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandler(failData bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>dashboard</html>"))
	})
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		if failData {
			http.Error(w, `{"error":"Failed to process data"}`, http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"total_properties":2}`))
	})
	mux.HandleFunc("/static/app.js", func(w http.ResponseWriter, r *http.Request) {})
	return mux
}

var testPages = []Page{
	{Path: "/", File: "index.html"},
	{Path: "/api/data", File: "api/data"},
	{Path: "/static/app.js", File: "static/app.js"},
}

func TestExportWritesPages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")

	res, err := New(testHandler(false), dir, nil).WithPages(testPages).Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, dir, res.Dir)
	assert.ElementsMatch(t, []string{"index.html", "api/data", "static/app.js"}, res.Files)
	assert.Equal(t, int64(len("<html>dashboard</html>")+len(`{"total_properties":2}`)), res.Bytes)

	data, err := os.ReadFile(filepath.Join(dir, "api", "data"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_properties":2}`, string(data))

	info, err := os.Stat(filepath.Join(dir, "static", "app.js"))
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "an empty 200 response is still exported")

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), dirInfo.Mode().Perm())
}

func TestExportReplacesPreviousExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("old"), 0o644))

	_, err := New(testHandler(false), dir, nil).WithPages(testPages).Export(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "stale.txt"))
	assert.True(t, os.IsNotExist(err), "files from an older export must be removed")
}

func TestExportFailureKeepsPreviousExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")
	_, err := New(testHandler(false), dir, nil).WithPages(testPages).Export(context.Background())
	require.NoError(t, err)

	_, err = New(testHandler(true), dir, nil).WithPages(testPages).Export(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render /api/data: status 500")

	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>dashboard</html>", string(data))

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the staging directory must be cleaned up")
}

func TestExportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Err() != nil {
			http.Error(w, "canceled", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	_, err := New(blocking, filepath.Join(t.TempDir(), "build"), nil).WithPages(testPages).Export(ctx)
	assert.Error(t, err)
}
