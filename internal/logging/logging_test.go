package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestTeeHandler(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	debug := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	info := slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewTeeHandler(debug, nil, info)).With("run_id", "r1")
	logger.Debug("sampling column")
	logger.Info("run started")

	assert.Contains(t, debugBuf.String(), "sampling column")
	assert.Contains(t, debugBuf.String(), "run started")
	assert.NotContains(t, infoBuf.String(), "sampling column")
	assert.Contains(t, infoBuf.String(), "run_id=r1")
}

func TestLineHandler(t *testing.T) {
	var lines []string
	logger := slog.New(NewLineHandler(slog.LevelInfo, func(s string) { lines = append(lines, s) }))

	logger.Debug("hidden")
	logger.Info("Column 'price' detected as: numeric")
	logger.With("rows", 3).Warn("quarantined")

	require.Len(t, lines, 2)
	assert.Equal(t, "INFO Column 'price' detected as: numeric", lines[0])
	assert.Equal(t, "WARN quarantined rows=3", lines[1])
}

func TestLineHandler_Group(t *testing.T) {
	var got string
	logger := slog.New(NewLineHandler(nil, func(s string) { got = s }))

	logger.WithGroup("counts").Info("done", "valid", 2)

	assert.Equal(t, "INFO done counts.valid=2", got)
}

func TestLineHandler_AttrsBeforeGroupStayUnqualified(t *testing.T) {
	var got string
	logger := slog.New(NewLineHandler(nil, func(s string) { got = s }))

	logger.With("run_id", "r1").
		WithGroup("counts").With("read", 3).
		WithGroup("rejected").Info("done", "empty", 1)

	assert.Equal(t, "INFO done run_id=r1 counts.read=3 counts.rejected.empty=1", got)
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "datrix.log")
	closer, err := Setup("info", "json", path)
	require.NoError(t, err)

	slog.Info("hello file", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello file"`)
}

func TestFromContext_RequestID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "run_id", "abc").Info("hi")

	assert.Contains(t, buf.String(), "request_id=req-42")
	assert.Contains(t, buf.String(), "run_id=abc")
}
