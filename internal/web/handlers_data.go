package web

// handlers_data.go serves the loaded dataset: schema, paged records,
// analytics, CSV export, and the reset operation.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/BR4Y4NEXE/Datrix/internal/analytics"
	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/BR4Y4NEXE/Datrix/internal/logging"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
)

// qualityRuns is how many recent runs feed the data-quality history.
const qualityRuns = 20

// exportFlushEvery flushes the CSV writer every N rows.
const exportFlushEvery = 1000

// SchemaResponse is the response to GET /data/schema.
type SchemaResponse struct {
	RunID   uuid.UUID           `json:"run_id"`
	Columns []core.ColumnSchema `json:"columns"`
}

// AnalyticsResponse is the response to GET /data/analytics.
type AnalyticsResponse struct {
	RunID   *uuid.UUID          `json:"run_id"`
	Charts  []analytics.Chart   `json:"charts"`
	Summary analytics.Summary   `json:"summary"`
	Schema  []core.ColumnSchema `json:"schema"`
	Quality []QualityPoint      `json:"quality"`
}

// QualityPoint is one run's valid/rejected split.
type QualityPoint struct {
	RunID         uuid.UUID `json:"run_id"`
	FileName      string    `json:"file_name"`
	CreatedAt     time.Time `json:"created_at"`
	TotalRead     int       `json:"total_read"`
	TotalValid    int       `json:"total_valid"`
	TotalRejected int       `json:"total_rejected"`
}

// ResetResponse is the response to DELETE /data/reset.
type ResetResponse struct {
	Status                 string `json:"status"`
	Message                string `json:"message"`
	QuarantineFilesRemoved int    `json:"quarantine_files_removed"`
}

// resolveRun returns the run_id query parameter, or the latest successful
// run when it is absent.
func (s *Server) resolveRun(r *http.Request) (uuid.UUID, error) {
	if raw := r.URL.Query().Get("run_id"); raw != "" {
		return parseRunID(raw)
	}
	return s.store.LatestSuccessfulRun(r.Context())
}

// noData reports whether the caller asked for "latest" and nothing has loaded yet.
func noData(r *http.Request, err error) bool {
	return r.URL.Query().Get("run_id") == "" && errors.Is(err, store.ErrRunNotFound)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolveRun(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	columns, err := s.store.Schema(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if len(columns) == 0 {
		s.respondError(w, r, fmt.Errorf("schema for %s: %w", id, store.ErrRunNotFound), 0)
		return
	}

	writeJSON(w, http.StatusOK, SchemaResponse{RunID: id, Columns: columns})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	perPage := parseIntParam(r, "per_page", store.DefaultPerPage)

	id, err := s.resolveRun(r)
	if noData(r, err) {
		writeJSON(w, http.StatusOK, store.RecordPage{
			Columns:    []core.ColumnSchema{},
			Rows:       []core.TypedRow{},
			Page:       1,
			PerPage:    min(perPage, store.MaxPerPage),
			TotalPages: 1,
		})
		return
	}
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	page, err := s.store.Records(r.Context(), store.RecordQuery{
		RunID:   id,
		Page:    parseIntParam(r, "page", 1),
		PerPage: perPage,
		Search:  r.URL.Query().Get("search"),
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := AnalyticsResponse{
		Charts:  []analytics.Chart{},
		Summary: analytics.Summary{NumericColumns: []analytics.NumericSummary{}, TextColumns: []analytics.TextSummary{}},
		Schema:  []core.ColumnSchema{},
		Quality: []QualityPoint{},
	}

	runs, _, err := s.store.ListRuns(ctx, qualityRuns, 0)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	resp.Quality = qualityHistory(runs)

	id, err := s.resolveRun(r)
	if noData(r, err) {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	schema, err := s.store.Schema(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	rows, err := s.store.AllRecords(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	report := analytics.Summarize(schema, rows)
	resp.RunID = &id
	resp.Charts = report.Charts
	resp.Summary = report.Summary
	resp.Schema = schema
	writeJSON(w, http.StatusOK, resp)
}

// qualityHistory lists finished runs oldest first for the quality chart.
func qualityHistory(runs []store.Run) []QualityPoint {
	points := []QualityPoint{}
	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		if !run.Status.Finished() {
			continue
		}
		points = append(points, QualityPoint{
			RunID:         run.ID,
			FileName:      run.FileName,
			CreatedAt:     run.CreatedAt,
			TotalRead:     run.TotalRead,
			TotalValid:    run.TotalValid,
			TotalRejected: run.TotalRejected,
		})
	}
	return points
}

// handleExport streams the dataset as CSV in schema order.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := s.resolveRun(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	schema, err := s.store.Schema(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	rows, err := s.store.AllRecords(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if len(schema) == 0 || len(rows) == 0 {
		s.respondError(w, r, fmt.Errorf("no data for %s: %w", id, store.ErrRunNotFound), 0)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="datrix_export.csv"`)

	cw := csv.NewWriter(w)

	header := make([]string, len(schema))
	for i, col := range schema {
		header[i] = col.Name
	}
	if err := cw.Write(header); err != nil {
		logging.FromContext(ctx).Error("export: write header", "error", err)
		return
	}

	record := make([]string, len(schema))
	for n, row := range rows {
		for i, col := range schema {
			record[i] = formatCell(row[col.Name])
		}
		if err := cw.Write(record); err != nil {
			logging.FromContext(ctx).Error("export: write row", "error", err, "row", n)
			return
		}
		if (n+1)%exportFlushEvery == 0 {
			cw.Flush()
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(ctx).Error("export: flush", "error", err)
	}
}

// formatCell renders a typed value for CSV export. Nulls are empty.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// handleReset clears the database and quarantine concurrently.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var removed int

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return s.store.Reset(ctx)
	})
	g.Go(func() error {
		n, err := s.quarantine.Reset()
		removed = n
		return err
	})
	if err := g.Wait(); err != nil {
		s.respondError(w, r, fmt.Errorf("reset: %w", err), 0)
		return
	}
	s.hub.Reset()

	logging.FromContext(r.Context()).Info("data reset", "quarantine_files_removed", removed)

	writeJSON(w, http.StatusOK, ResetResponse{
		Status:                 "ok",
		Message:                "All data cleared. Ready for a new upload.",
		QuarantineFilesRemoved: removed,
	})
}
