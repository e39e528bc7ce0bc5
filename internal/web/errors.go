package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler error goes through respondError, which:
//  1. Maps the error to a status code (statusFor) unless the handler chose one
//  2. Maps it to a user-friendly message via core.MapError
//  3. Logs the technical error with the request ID for correlation
//  4. Renders JSON for API clients or an HTML alert for browsers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/BR4Y4NEXE/Datrix/internal/logging"
	"github.com/BR4Y4NEXE/Datrix/internal/pipeline"
	"github.com/BR4Y4NEXE/Datrix/internal/quarantine"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
	"github.com/BR4Y4NEXE/Datrix/internal/web/templates"
)

var (
	errNoFile     = errors.New("no file provided")
	errFileTooBig = errors.New("file too large")
	errBadRunID   = errors.New("invalid run id")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	RequestID string `json:"request_id,omitempty"`
}

// statusFor picks the HTTP status for a handler error.
func statusFor(err error) int {
	var autoErr *pipeline.AutoDetectError
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, errNoFile), errors.Is(err, errBadRunID):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooBig), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrRunNotFound),
		errors.Is(err, quarantine.ErrNotFound),
		errors.As(err, &autoErr):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrTooManyRuns),
		errors.Is(err, config.ErrDatabaseNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles error responses with user-friendly messages.
// A statusCode of 0 derives the status from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w)
		return
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:     userMsg.Message,
		Message:   userMsg.Message,
		Action:    userMsg.Action,
		Code:      userMsg.Code,
		RequestID: requestID(r),
	})
}

// wantsHTML reports whether a browser asked for a page rather than data.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// requestID returns the chi request ID, if any.
func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
