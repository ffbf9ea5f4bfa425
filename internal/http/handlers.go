package http

import (
	"bytes"
	"errors"
	"net/http"

	"databoard/internal/core"
	"databoard/internal/filter"
	applog "databoard/internal/log"
	"databoard/internal/views"
)

// errProcessData is the only detail clients see when the dataset cannot be loaded.
const errProcessData = "Failed to process data"

// DataResponse is the unfiltered dataset payload of /api/data.
type DataResponse struct {
	Records         []core.AggregatedGroup `json:"records"`
	TotalProperties int                    `json:"total_properties"`
	RawData         []core.Record          `json:"raw_data"`
	DateRange       core.DateRange         `json:"date_range"`
}

// ViewResponse is the filtered payload of /api/view.
type ViewResponse struct {
	Filters filter.State `json:"filters"`
	views.View
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the dataset can be loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.datasets.Dataset(r.Context()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		http.Error(w, "dataset unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.Dataset(r.Context())
	if err != nil {
		s.failData(w, r, err)
		return
	}

	resp := DataResponse{
		Records:         ds.Groups,
		TotalProperties: ds.Total,
		RawData:         ds.Records,
		DateRange:       ds.DateRange,
	}
	if resp.Records == nil {
		resp.Records = []core.AggregatedGroup{}
	}
	if resp.RawData == nil {
		resp.RawData = []core.Record{}
	}
	s.write(w, r, NewJSONResponse(resp))
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.Dataset(r.Context())
	if err != nil {
		s.failData(w, r, err)
		return
	}

	st, err := ParseFilterState(r.URL.Query(), ds)
	if err != nil {
		s.write(w, r, BadRequestError(err.Error()))
		return
	}

	v, err := s.datasets.View(r.Context(), st)
	if err != nil {
		s.failData(w, r, err)
		return
	}
	s.write(w, r, NewJSONResponse(ViewResponse{Filters: st, View: v}))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, NewJSONResponse(s.stats()).NoStore())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		StaticURL  string
		DataURL    string
		SessionURL string
		Live       bool
	}{
		StaticURL:  joinURL(s.baseURL, "/static"),
		DataURL:    joinURL(s.baseURL, "/api/data"),
		SessionURL: joinURL(s.baseURL, "/api/session"),
		Live:       s.sessions != nil,
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err, "template", "index.html")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// failData logs the cause and answers with the generic 500 payload.
func (s *Server) failData(w http.ResponseWriter, r *http.Request, err error) {
	logger := applog.FromContext(r.Context())
	errType := applog.ErrorTypeInternal
	var pe *core.ParseError
	var ioe *core.IOError
	switch {
	case errors.As(err, &pe):
		errType = applog.ErrorTypeParse
	case errors.As(err, &ioe):
		errType = applog.ErrorTypeIO
	}
	fields := applog.NewFields()
	fields[applog.FieldErrorType] = errType
	fields[applog.FieldPath] = r.URL.Path
	applog.NewStructuredLogger(logger).LogError(r.Context(), "Dataset load failed", err, applog.ComponentHTTP, applog.OpLoad, fields)
	s.write(w, r, InternalServerError(errProcessData))
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	if err := b.Write(w); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed writing response", applog.FieldError, err)
	}
}
