// Package web provides the HTTP API and dashboard for the ETL pipeline.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/BR4Y4NEXE/Datrix/internal/notify"
	"github.com/BR4Y4NEXE/Datrix/internal/pipeline"
	"github.com/BR4Y4NEXE/Datrix/internal/quarantine"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
	appmw "github.com/BR4Y4NEXE/Datrix/internal/web/middleware"
)

// devOrigin is the dashboard dev server, always allowed by CORS.
const devOrigin = "http://localhost:5173"

// DataStore is the slice of *store.Store the handlers read from.
type DataStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]store.Run, int, error)
	LatestSuccessfulRun(ctx context.Context) (uuid.UUID, error)
	Schema(ctx context.Context, runID uuid.UUID) ([]core.ColumnSchema, error)
	Records(ctx context.Context, q store.RecordQuery) (*store.RecordPage, error)
	AllRecords(ctx context.Context, runID uuid.UUID) ([]core.TypedRow, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// NotifierStatus reports which notification channels are configured.
type NotifierStatus interface {
	Status() notify.Status
}

// Deps holds everything the server needs.
type Deps struct {
	Config     *config.Config
	Store      DataStore
	Runs       pipeline.Submitter
	Limiter    *pipeline.RunLimiter
	Hub        *pipeline.LogHub
	Quarantine *quarantine.Dir
	Notifier   NotifierStatus
}

// Server is the HTTP server for the pipeline API.
type Server struct {
	cfg        *config.Config
	store      DataStore
	runs       pipeline.Submitter
	limiter    *pipeline.RunLimiter
	hub        *pipeline.LogHub
	quarantine *quarantine.Dir
	notifier   NotifierStatus
	now        func() time.Time

	router    *chi.Mux
	server    *http.Server
	limits    *appmw.RateLimiter
	closing   chan struct{} // closed by Shutdown; ends open log streams
	closeOnce sync.Once
}

// NewServer creates a new Server instance.
func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		store:      deps.Store,
		runs:       deps.Runs,
		limiter:    deps.Limiter,
		hub:        deps.Hub,
		quarantine: deps.Quarantine,
		notifier:   deps.Notifier,
		now:        time.Now,
		router:     chi.NewRouter(),
		closing:    make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	sec := s.cfg.Security

	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(sec.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: append([]string{devOrigin}, sec.AllowedOrigins...),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "Last-Event-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	s.router.Use(securityHeaders(sec.EnableCSP))

	s.limits = appmw.NewRateLimiter(sec.RateLimit)
	s.router.Use(s.limits.Handler)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	auth := appmw.APIKeyAuth(&s.cfg.Security)

	// Long-lived and probe routes stay outside the request timeout.
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/logs/{runID}", s.handleLogs)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}

		r.Get("/", s.handleDashboard)

		r.Route("/pipeline", func(r chi.Router) {
			r.With(auth).Post("/run", s.handleRun)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{runID}", s.handleGetRun)
		})

		r.Route("/data", func(r chi.Router) {
			r.Get("/schema", s.handleSchema)
			r.Get("/records", s.handleRecords)
			r.Get("/analytics", s.handleAnalytics)
			r.Get("/export", s.handleExport)
			r.With(auth).Delete("/reset", s.handleReset)
		})

		r.Get("/quarantine", s.handleQuarantineList)
		r.Get("/quarantine/{filename}", s.handleQuarantineFile)

		r.Get("/notifications/status", s.handleNotificationStatus)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.limits.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// Inline styles and scripts are used by the dashboard page
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
			}

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
