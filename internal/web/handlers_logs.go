package web

// handlers_logs.go streams a run's log lines as Server-Sent Events.
//
// Events:
//
//	event: log       one log line; id is the 1-based line number
//	event: complete  the run has finished; the stream ends
//
// A reconnecting client sends Last-Event-ID and receives only newer lines.
// If the client cannot keep up, the hub drops it and the stream ends
// without "complete", so EventSource reconnects and resumes from the backlog.

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BR4Y4NEXE/Datrix/internal/logging"
)

// sseKeepAlive is the comment-ping interval that keeps proxies from closing idle streams.
const sseKeepAlive = 15 * time.Second

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	seq := lastEventID(r)

	// A finished run whose lines are no longer in memory (restart or
	// eviction) has nothing to stream.
	if run.Status.Finished() && s.hub.Lines(id) == nil {
		writeComplete(w)
		rc.Flush()
		return
	}

	backlog, sub := s.hub.Subscribe(id)
	defer s.hub.Unsubscribe(sub)

	// Evicted between the check above and Subscribe.
	if run.Status.Finished() && len(backlog) == 0 {
		s.hub.Close(id)
		writeComplete(w)
		rc.Flush()
		return
	}

	n := 0
	for _, line := range backlog {
		n++
		if n <= seq {
			continue
		}
		writeLogEvent(w, n, line)
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.closing:
			return

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case line, ok := <-sub.Lines():
			if !ok {
				if s.hub.Dropped(sub) {
					logging.FromContext(ctx).Warn("log stream dropped slow client", "run_id", id)
					return
				}
				writeComplete(w)
				rc.Flush()
				return
			}
			n++
			if n <= seq {
				continue
			}
			writeLogEvent(w, n, line)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// lastEventID is the last line number the client saw, or 0.
func lastEventID(r *http.Request) int {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("last_event_id")
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeLogEvent(w io.Writer, id int, line string) {
	fmt.Fprintf(w, "id: %d\nevent: log\n", id)
	for _, part := range strings.Split(line, "\n") {
		fmt.Fprintf(w, "data: %s\n", part)
	}
	fmt.Fprint(w, "\n")
}

func writeComplete(w io.Writer) {
	fmt.Fprint(w, "event: complete\ndata: {}\n\n")
}
