package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BR4Y4NEXE/Datrix/internal/pipeline"
	"github.com/BR4Y4NEXE/Datrix/internal/quarantine"
	"github.com/BR4Y4NEXE/Datrix/internal/web/templates"
)

// dashboardRuns is how many runs the dashboard lists.
const dashboardRuns = 10

// healthPingTimeout bounds the database check in /health.
const healthPingTimeout = 2 * time.Second

// HealthResponse is the response to GET /health.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Database string                  `json:"database"`
	Runs     *pipeline.LimiterStatus `json:"runs,omitempty"`
}

// handleDashboard renders the HTML overview page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	runs, total, err := s.store.ListRuns(r.Context(), dashboardRuns, 0)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	data := templates.DashboardData{
		Runs:      runs,
		TotalRuns: total,
		Notify:    s.notifier.Status(),
	}
	if s.limiter != nil {
		st := s.limiter.Status()
		data.Active = st.Active
		data.MaxConcurrent = st.MaxConcurrent
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(data).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

func (s *Server) handleQuarantineList(w http.ResponseWriter, r *http.Request) {
	files, err := s.quarantine.List()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if files == nil {
		files = []quarantine.File{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleQuarantineFile(w http.ResponseWriter, r *http.Request) {
	detail, err := s.quarantine.Read(chi.URLParam(r, "filename"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleNotificationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.notifier.Status())
}

// handleHealth reports liveness plus database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	if s.limiter != nil {
		st := s.limiter.Status()
		resp.Runs = &st
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
