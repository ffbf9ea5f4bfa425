package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"databoard/internal/cache"
	"databoard/internal/core"
	"databoard/internal/filter"
	applog "databoard/internal/log"
	"databoard/internal/middleware/ratelimit"
	"databoard/internal/middleware/security"
	"databoard/internal/middleware/trace"
	"databoard/internal/views"
	appweb "databoard/web"
)

// DatasetProvider is the read side of the dataset service.
type DatasetProvider interface {
	Dataset(ctx context.Context) (core.Dataset, error)
	View(ctx context.Context, st filter.State) (views.View, error)
}

// StatsProvider exposes cache counters for /api/stats.
type StatsProvider interface {
	CacheStats() map[string]cache.Stats
}

// SessionHandler serves live filter sessions and can close them on shutdown.
type SessionHandler interface {
	http.Handler
	Active() int
	CloseAll()
}

// Options configures a Server.
type Options struct {
	Addr     string
	Datasets DatasetProvider
	// Sessions is optional; without it /api/session is not routed and the
	// page filters client-side.
	Sessions SessionHandler
	// BaseURL prefixes asset and API links in the rendered page.
	BaseURL            string
	RateLimitPerMinute int
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	datasets  DatasetProvider
	sessions  SessionHandler
	templates *template.Template
	baseURL   string
	logger    *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		datasets: opts.Datasets,
		sessions: opts.Sessions,
		baseURL:  opts.BaseURL,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(applog.Middleware(s.logger), s.tracer.Middleware, s.detector.Middleware(s.logger), security.Headers(security.DefaultHeadersConfig()))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(applog.ComponentMiddleware(applog.ComponentHTTP))
	api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorJSON(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	}))
	api.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	api.HandleFunc("/view", s.handleView).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	if s.sessions != nil {
		api.Handle("/session", s.sessions).Methods(http.MethodGet)
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static)).Methods(http.MethodGet, http.MethodHead)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorJSON(http.StatusNotFound, "Not found").Write(w)
	})
	r.MethodNotAllowedHandler = methodNotAllowed
	api.MethodNotAllowedHandler = methodNotAllowed
	return r
}

var methodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	ErrorJSON(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
})

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.sessions != nil {
			s.sessions.CloseAll()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type stats struct {
	Caches    map[string]cache.Stats    `json:"caches,omitempty"`
	Sessions  int                       `json:"sessions"`
	Requests  trace.Metrics             `json:"requests"`
	RateLimit ratelimit.Metrics         `json:"rate_limit"`
	Security  security.DetectionMetrics `json:"security"`
}

func (s *Server) stats() stats {
	st := stats{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
	}
	if sp, ok := s.datasets.(StatsProvider); ok {
		st.Caches = sp.CacheStats()
	}
	if s.sessions != nil {
		st.Sessions = s.sessions.Active()
	}
	return st
}
