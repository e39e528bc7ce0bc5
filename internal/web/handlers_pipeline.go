package web

// handlers_pipeline.go starts runs and serves the run ledger.

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/BR4Y4NEXE/Datrix/internal/logging"
	"github.com/BR4Y4NEXE/Datrix/internal/pipeline"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 200

	// multipart parts above this spill to disk
	multipartMemory = 32 << 20
)

// RunStarted is the response to POST /pipeline/run.
type RunStarted struct {
	RunID   uuid.UUID `json:"run_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// RunList is one page of the run ledger.
type RunList struct {
	Runs   []store.Run `json:"runs"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// RunDetail is a ledger row plus the user-facing reading of its error.
type RunDetail struct {
	store.Run
	UserError *core.UserMessage `json:"user_error,omitempty"`
}

// handleRun saves an uploaded file (or finds today's file) and submits it.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, r, fmt.Errorf("%w: limit is %d bytes", errFileTooBig, maxErr.Limit), 0)
			return
		}
		// Not multipart: fall through and treat as a request without a file.
		if !errors.Is(err, http.ErrNotMultipart) {
			s.respondError(w, r, fmt.Errorf("invalid csv upload: %w", err), http.StatusBadRequest)
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	dryRun := formBool(r, "dry_run")
	autoDetect := formBool(r, "auto_detect")

	var path string
	var err error
	if autoDetect {
		path, err = pipeline.AutoDetectPath(s.cfg.Pipeline.InputDir, s.cfg.Pipeline.FilePrefix, s.now())
	} else {
		path, err = s.saveUpload(r)
	}
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	id, err := s.runs.Submit(r.Context(), path, dryRun)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("run submitted",
		"run_id", id,
		"file", filepath.Base(path),
		"dry_run", dryRun,
		"auto_detect", autoDetect,
	)

	writeJSON(w, http.StatusAccepted, RunStarted{
		RunID:   id,
		Status:  string(store.StatusPending),
		Message: fmt.Sprintf("Pipeline started. Stream logs from /logs/%s", id),
	})
}

// saveUpload copies the "file" part into the input directory.
func (s *Server) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", errNoFile
		}
		return "", fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	name := uploadName(header.Filename)
	if err := os.MkdirAll(s.cfg.Pipeline.InputDir, 0o755); err != nil {
		return "", fmt.Errorf("create input dir: %w", err)
	}

	path := filepath.Join(s.cfg.Pipeline.InputDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// uploadName strips any client-supplied directories from a file name.
func uploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return "upload.csv"
	}
	return name
}

// handleListRuns returns the run ledger, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", defaultRunsLimit), maxRunsLimit)
	offset := parseOffsetParam(r, "offset")

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}

	writeJSON(w, http.StatusOK, RunList{Runs: runs, Total: total, Limit: limit, Offset: offset})
}

// handleGetRun returns one run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := parseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	detail := RunDetail{Run: *run}
	if run.ErrorMessage != "" {
		msg := core.MapErrorString(run.ErrorMessage)
		detail.UserError = &msg
	}
	writeJSON(w, http.StatusOK, detail)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseOffsetParam parses a non-negative offset, defaulting to zero.
func parseOffsetParam(r *http.Request, name string) int {
	i, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || i < 0 {
		return 0
	}
	return i
}

// formBool reads a checkbox-style form flag.
func formBool(r *http.Request, name string) bool {
	v := strings.TrimSpace(strings.ToLower(r.FormValue(name)))
	if v == "on" || v == "yes" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func parseRunID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", errBadRunID, s)
	}
	return id, nil
}
