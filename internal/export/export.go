// Package export freezes the dashboard into a static directory: the page,
// its assets and the JSON payloads, rendered through the live HTTP handler
// so the files match what the server would answer.
package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	applog "databoard/internal/log"
)

// Page maps a URL path of the handler to a file below the export directory.
type Page struct {
	Path string
	File string
}

// DefaultPages are the routes a static deployment needs.
var DefaultPages = []Page{
	{Path: "/", File: "index.html"},
	{Path: "/api/data", File: "api/data"},
	{Path: "/api/view", File: "api/view"},
	{Path: "/static/app.js", File: "static/app.js"},
	{Path: "/static/style.css", File: "static/style.css"},
}

const maxParallel = 4

// Result describes a finished export.
type Result struct {
	Dir      string
	Files    []string
	Bytes    int64
	Duration time.Duration
}

// Exporter renders pages from an http.Handler into a directory.
type Exporter struct {
	handler http.Handler
	dir     string
	pages   []Page
	logger  *applog.Logger
}

func New(handler http.Handler, dir string, logger *applog.Logger) *Exporter {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &Exporter{
		handler: handler,
		dir:     dir,
		pages:   DefaultPages,
		logger:  logger.WithComponent(applog.ComponentExport),
	}
}

// WithPages replaces the page list.
func (e *Exporter) WithPages(pages []Page) *Exporter {
	e.pages = pages
	return e
}

// Export renders every page into a staging directory and swaps it into
// place. On failure the previous export is left untouched.
func (e *Exporter) Export(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{Dir: e.dir}

	parent := filepath.Dir(filepath.Clean(e.dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return res, fmt.Errorf("create export parent: %w", err)
	}
	staging, err := os.MkdirTemp(parent, ".export-*")
	if err != nil {
		return res, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	sizes := make([]int64, len(e.pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, p := range e.pages {
		g.Go(func() error {
			n, err := e.render(gctx, p, staging)
			sizes[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if err := os.RemoveAll(e.dir); err != nil {
		return res, fmt.Errorf("remove previous export: %w", err)
	}
	if err := os.Rename(staging, e.dir); err != nil {
		return res, fmt.Errorf("move export into place: %w", err)
	}
	// MkdirTemp creates 0700 directories.
	if err := os.Chmod(e.dir, 0o755); err != nil {
		return res, fmt.Errorf("chmod export dir: %w", err)
	}

	for i, p := range e.pages {
		res.Files = append(res.Files, p.File)
		res.Bytes += sizes[i]
	}
	res.Duration = time.Since(start)

	e.logger.InfoContext(ctx, "Static export written",
		"dir", res.Dir,
		"files", len(res.Files),
		"bytes", res.Bytes,
		applog.FieldDuration, res.Duration.Milliseconds(),
		applog.FieldOperation, applog.OpExport)
	return res, nil
}

func (e *Exporter) render(ctx context.Context, p Page, root string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Path, nil)
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", p.Path, err)
	}
	req.RemoteAddr = "127.0.0.1:0"

	w := newPageWriter()
	e.handler.ServeHTTP(w, req)
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.status != http.StatusOK {
		return 0, fmt.Errorf("render %s: status %d: %s", p.Path, w.status, strings.TrimSpace(w.body.String()))
	}

	target := filepath.Join(root, filepath.FromSlash(p.File))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create dir for %s: %w", p.File, err)
	}
	if err := os.WriteFile(target, w.body.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", p.File, err)
	}
	return int64(w.body.Len()), nil
}

// pageWriter buffers one response in memory.
type pageWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newPageWriter() *pageWriter {
	return &pageWriter{header: make(http.Header)}
}

func (w *pageWriter) Header() http.Header { return w.header }

func (w *pageWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *pageWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}
