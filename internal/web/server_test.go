package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/BR4Y4NEXE/Datrix/internal/notify"
	"github.com/BR4Y4NEXE/Datrix/internal/pipeline"
	"github.com/BR4Y4NEXE/Datrix/internal/quarantine"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
)

// fakeStore is an in-memory DataStore.
type fakeStore struct {
	mu      sync.Mutex
	runs    []store.Run // newest first
	schemas map[uuid.UUID][]core.ColumnSchema
	rows    map[uuid.UUID][]core.TypedRow
	latest  uuid.UUID
	pingErr error
	resets  int
	lastQ   store.RecordQuery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schemas: make(map[uuid.UUID][]core.ColumnSchema),
		rows:    make(map[uuid.UUID][]core.TypedRow),
	}
}

func (f *fakeStore) addRun(run store.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append([]store.Run{run}, f.runs...)
	if run.Status == store.StatusSuccess && !run.DryRun {
		f.latest = run.ID
	}
}

func (f *fakeStore) GetRun(_ context.Context, id uuid.UUID) (*store.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			run := r
			return &run, nil
		}
	}
	return nil, store.ErrRunNotFound
}

func (f *fakeStore) ListRuns(_ context.Context, limit, offset int) ([]store.Run, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= len(f.runs) {
		return nil, len(f.runs), nil
	}
	end := min(offset+limit, len(f.runs))
	return append([]store.Run(nil), f.runs[offset:end]...), len(f.runs), nil
}

func (f *fakeStore) LatestSuccessfulRun(context.Context) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == uuid.Nil {
		return uuid.Nil, store.ErrRunNotFound
	}
	return f.latest, nil
}

func (f *fakeStore) Schema(_ context.Context, id uuid.UUID) ([]core.ColumnSchema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schemas[id], nil
}

func (f *fakeStore) Records(_ context.Context, q store.RecordQuery) (*store.RecordPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQ = q
	rows := f.rows[q.RunID]
	return &store.RecordPage{
		RunID:      q.RunID,
		Columns:    f.schemas[q.RunID],
		Rows:       rows,
		Page:       q.Page,
		PerPage:    q.PerPage,
		Total:      len(rows),
		TotalPages: 1,
	}, nil
}

func (f *fakeStore) AllRecords(_ context.Context, id uuid.UUID) ([]core.TypedRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakeStore) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.runs = nil
	f.schemas = make(map[uuid.UUID][]core.ColumnSchema)
	f.rows = make(map[uuid.UUID][]core.TypedRow)
	f.latest = uuid.Nil
	return nil
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

// fakeSubmitter records submissions.
type fakeSubmitter struct {
	mu     sync.Mutex
	paths  []string
	dryRun []bool
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, path string, dryRun bool) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.paths = append(f.paths, path)
	f.dryRun = append(f.dryRun, dryRun)
	return uuid.New(), nil
}

type testServer struct {
	*Server
	cfg   *config.Config
	store *fakeStore
	runs  *fakeSubmitter
	qdir  *quarantine.Dir
	hub   *pipeline.LogHub
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second, MaxUploadSize: 1 << 20},
		Pipeline: config.PipelineConfig{InputDir: filepath.Join(t.TempDir(), "input"), FilePrefix: "sales_"},
		Security: config.SecurityConfig{EnableCSP: true, RateLimit: 1000},
	}
	for _, m := range mutate {
		m(cfg)
	}

	ts := &testServer{
		cfg:   cfg,
		store: newFakeStore(),
		runs:  &fakeSubmitter{},
		qdir:  quarantine.New(filepath.Join(t.TempDir(), "quarantine")),
		hub:   pipeline.NewLogHub(0, 0),
	}
	ts.Server = NewServer(Deps{
		Config:     cfg,
		Store:      ts.store,
		Runs:       ts.runs,
		Limiter:    pipeline.NewRunLimiter(2, time.Second),
		Hub:        ts.hub,
		Quarantine: ts.qdir,
		Notifier:   notify.New(config.NotifyConfig{Enabled: true, SlackWebhookURL: "https://hooks.example/x"}),
	})
	t.Cleanup(func() { ts.Shutdown(context.Background()) })
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func multipartRequest(t *testing.T, fields map[string]string, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/pipeline/run", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleRun_Upload(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, map[string]string{"dry_run": "true"}, "../../etc/sales.csv", "a,b\n1,2\n"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decode[RunStarted](t, rec)
	assert.NotEqual(t, uuid.Nil, resp.RunID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Contains(t, resp.Message, "/logs/"+resp.RunID.String())

	want := filepath.Join(ts.cfg.Pipeline.InputDir, "sales.csv")
	require.Equal(t, []string{want}, ts.runs.paths)
	assert.Equal(t, []bool{true}, ts.runs.dryRun)

	saved, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(saved))
}

func TestHandleRun_NoFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, map[string]string{"dry_run": "true"}, "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decode[ErrorResponse](t, rec).Code)

	// Not multipart at all.
	rec = ts.do(httptest.NewRequest(http.MethodPost, "/pipeline/run", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.runs.paths)
}

func TestHandleRun_AutoDetect(t *testing.T) {
	ts := newTestServer(t)
	ts.now = func() time.Time { return time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC) }

	rec := ts.do(multipartRequest(t, map[string]string{"auto_detect": "on"}, "", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "RUN003", errResp.Code)

	require.NoError(t, os.MkdirAll(ts.cfg.Pipeline.InputDir, 0o755))
	path := filepath.Join(ts.cfg.Pipeline.InputDir, "sales_20250115.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o644))

	rec = ts.do(multipartRequest(t, map[string]string{"auto_detect": "true"}, "", ""))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []string{path}, ts.runs.paths)
	assert.Equal(t, []bool{false}, ts.runs.dryRun)
}

func TestHandleRun_Busy(t *testing.T) {
	ts := newTestServer(t)
	ts.runs.err = pipeline.ErrTooManyRuns

	rec := ts.do(multipartRequest(t, nil, "x.csv", "a\n1\n"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "RUN001", decode[ErrorResponse](t, rec).Code)
}

func TestHandleRun_TooLarge(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadSize = 64 })

	rec := ts.do(multipartRequest(t, nil, "big.csv", strings.Repeat("x", 1024)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE005", decode[ErrorResponse](t, rec).Code)
	assert.Empty(t, ts.runs.paths)
}

func TestHandleRun_RequiresAPIKey(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := ts.do(multipartRequest(t, nil, "x.csv", "a\n1\n"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := multipartRequest(t, nil, "x.csv", "a\n1\n")
	req.Header.Set("X-API-Key", "secret")
	rec = ts.do(req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// Reads stay open.
	assert.Equal(t, http.StatusOK, ts.get("/pipeline/runs").Code)
}

func TestHandleListRuns(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.store.addRun(store.Run{ID: uuid.New(), Status: store.StatusSuccess, FileName: "f.csv"})
	}

	list := decode[RunList](t, ts.get("/pipeline/runs?limit=2&offset=1"))
	assert.Len(t, list.Runs, 2)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, 1, list.Offset)

	list = decode[RunList](t, ts.get("/pipeline/runs?limit=abc&offset=-4"))
	assert.Equal(t, defaultRunsLimit, list.Limit)
	assert.Zero(t, list.Offset)

	list = decode[RunList](t, ts.get("/pipeline/runs?limit=100000"))
	assert.Equal(t, maxRunsLimit, list.Limit)
}

func TestHandleListRuns_Empty(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.get("/pipeline/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs":[]`)
}

func TestHandleGetRun(t *testing.T) {
	ts := newTestServer(t)
	failed := store.Run{ID: uuid.New(), Status: store.StatusFailed, ErrorMessage: "open data.csv: file not found"}
	ts.store.addRun(failed)

	rec := ts.get("/pipeline/runs/" + failed.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[RunDetail](t, rec)
	assert.Equal(t, failed.ID, detail.ID)
	assert.Equal(t, store.StatusFailed, detail.Status)
	require.NotNil(t, detail.UserError)
	assert.Equal(t, "FILE001", detail.UserError.Code)

	rec = ts.get("/pipeline/runs/" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RUN002", decode[ErrorResponse](t, rec).Code)

	rec = ts.get("/pipeline/runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RUN006", decode[ErrorResponse](t, rec).Code)
}

// seedDataset loads a two-column dataset as the latest successful run.
func seedDataset(ts *testServer) uuid.UUID {
	id := uuid.New()
	ts.store.addRun(store.Run{ID: id, Status: store.StatusSuccess, FileName: "sales.csv", TotalRead: 4, TotalValid: 3, TotalRejected: 1})
	ts.store.schemas[id] = []core.ColumnSchema{
		{Name: "region", DType: core.DTypeText, OriginalName: "Region", Order: 0},
		{Name: "price", DType: core.DTypeNumeric, OriginalName: "Price", Order: 1},
	}
	ts.store.rows[id] = []core.TypedRow{
		{"region": "North", "price": 10.0},
		{"region": "South", "price": nil},
		{"region": "North", "price": 2.5},
	}
	return id
}

func TestHandleSchema(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/data/schema")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := seedDataset(ts)
	resp := decode[SchemaResponse](t, ts.get("/data/schema"))
	assert.Equal(t, id, resp.RunID)
	require.Len(t, resp.Columns, 2)
	assert.Equal(t, "price", resp.Columns[1].Name)

	rec = ts.get("/data/schema?run_id=" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRecords(t *testing.T) {
	ts := newTestServer(t)

	empty := decode[store.RecordPage](t, ts.get("/data/records"))
	assert.Empty(t, empty.Rows)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, store.DefaultPerPage, empty.PerPage)

	id := seedDataset(ts)
	page := decode[store.RecordPage](t, ts.get("/data/records?page=2&per_page=10&search=north"))
	assert.Equal(t, id, page.RunID)
	assert.Equal(t, store.RecordQuery{RunID: id, Page: 2, PerPage: 10, Search: "north"}, ts.store.lastQ)

	rec := ts.get("/data/records?run_id=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalytics(t *testing.T) {
	ts := newTestServer(t)

	empty := decode[AnalyticsResponse](t, ts.get("/data/analytics"))
	assert.Nil(t, empty.RunID)
	assert.Empty(t, empty.Charts)
	assert.Empty(t, empty.Quality)

	ts.store.addRun(store.Run{ID: uuid.New(), Status: store.StatusRunning})
	id := seedDataset(ts)

	resp := decode[AnalyticsResponse](t, ts.get("/data/analytics"))
	require.NotNil(t, resp.RunID)
	assert.Equal(t, id, *resp.RunID)
	assert.Equal(t, 3, resp.Summary.TotalRecords)
	assert.NotEmpty(t, resp.Charts)
	assert.Len(t, resp.Schema, 2)

	require.Len(t, resp.Quality, 1, "unfinished runs are left out")
	assert.Equal(t, 3, resp.Quality[0].TotalValid)
	assert.Equal(t, 1, resp.Quality[0].TotalRejected)
}

func TestQualityHistory_OldestFirst(t *testing.T) {
	older := store.Run{ID: uuid.New(), Status: store.StatusFailed}
	newer := store.Run{ID: uuid.New(), Status: store.StatusSuccess}

	points := qualityHistory([]store.Run{newer, older})
	require.Len(t, points, 2)
	assert.Equal(t, older.ID, points[0].RunID)
	assert.Equal(t, newer.ID, points[1].RunID)
}

func TestHandleExport(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.get("/data/export").Code)

	seedDataset(ts)
	rec := ts.get("/data/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "datrix_export.csv")
	assert.Equal(t, "region,price\nNorth,10\nSouth,\nNorth,2.5\n", rec.Body.String())
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "1200.5", formatCell(1200.5))
	assert.Equal(t, "0.1", formatCell(0.1))
	assert.Equal(t, "7", formatCell(7))
	assert.Equal(t, "true", formatCell(true))
	assert.Equal(t, "a,b", formatCell("a,b"))
}

func TestHandleReset(t *testing.T) {
	ts := newTestServer(t)
	seedDataset(ts)

	_, err := ts.qdir.WriteRejected([]string{"a"}, []core.RejectedRow{
		{Line: 1, Values: []pgtype.Text{{String: "x", Valid: true}}, Reason: "Mostly empty"},
	})
	require.NoError(t, err)

	id := uuid.New()
	ts.hub.Publish(id, "INFO hello")

	req := httptest.NewRequest(http.MethodDelete, "/data/reset", nil)
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ResetResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.QuarantineFilesRemoved)
	assert.Equal(t, 1, ts.store.resets)
	assert.Nil(t, ts.hub.Lines(id))

	files, err := ts.qdir.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestHandleQuarantine(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/quarantine")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	name, err := ts.qdir.WriteRejected([]string{"region", "price"}, []core.RejectedRow{
		{Line: 4, Values: []pgtype.Text{{}, {}}, Reason: "All fields empty"},
	})
	require.NoError(t, err)

	files := decode[[]quarantine.File](t, ts.get("/quarantine"))
	require.Len(t, files, 1)
	assert.Equal(t, name, files[0].Name)

	detail := decode[quarantine.Detail](t, ts.get("/quarantine/"+name))
	assert.Equal(t, 1, detail.Total)

	rec = ts.get("/quarantine/missing.csv")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "QUA001", decode[ErrorResponse](t, rec).Code)
}

func TestHandleNotificationStatus(t *testing.T) {
	ts := newTestServer(t)
	st := decode[notify.Status](t, ts.get("/notifications/status"))
	assert.True(t, st.SlackConfigured)
	assert.False(t, st.SMTPConfigured)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Runs)
	assert.Equal(t, 2, health.Runs.MaxConcurrent)
	assert.Empty(t, health.Runs.Running)

	id := uuid.New()
	require.NoError(t, ts.limiter.Acquire(context.Background(), id))
	defer ts.limiter.Release(id)

	health = decode[HealthResponse](t, ts.get("/health"))
	assert.Equal(t, 1, health.Runs.Active)
	require.Len(t, health.Runs.Running, 1)
	assert.Equal(t, id, health.Runs.Running[0].RunID)

	ts.store.pingErr = errors.New("connection refused")
	rec = ts.get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[HealthResponse](t, rec).Database)
}

func TestHandleDashboard(t *testing.T) {
	ts := newTestServer(t)
	ts.store.addRun(store.Run{ID: uuid.New(), Status: store.StatusFailed, FileName: "<script>x</script>.csv", ErrorMessage: "boom"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	rec := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Recent runs")
	assert.Contains(t, body, "&lt;script&gt;x&lt;/script&gt;.csv")
	assert.NotContains(t, body, "<script>x</script>")
	assert.Contains(t, body, "status-FAILED")
}

func TestErrorsRenderHTMLForBrowsers(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/pipeline/runs/"+uuid.NewString(), nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	rec := ts.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="alert"`)
	assert.Contains(t, rec.Body.String(), "RUN002")
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Security.AllowedOrigins = []string{"https://app.example"} })

	rec := ts.get("/health")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	for _, origin := range []string{devOrigin, "https://app.example"} {
		req := httptest.NewRequest(http.MethodOptions, "/pipeline/run", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec = ts.do(req)
		assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = ts.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders_CSPDisabled(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Security.EnableCSP = false })
	assert.Empty(t, ts.get("/health").Header().Get("Content-Security-Policy"))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Security.RateLimit = 2 })

	assert.Equal(t, http.StatusOK, ts.get("/health").Code)
	assert.Equal(t, http.StatusOK, ts.get("/health").Code)

	rec := ts.get("/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "sales.csv", uploadName("sales.csv"))
	assert.Equal(t, "sales.csv", uploadName(`C:\Users\me\sales.csv`))
	assert.Equal(t, "passwd", uploadName("../../etc/passwd"))
	assert.Equal(t, "upload.csv", uploadName(""))
	assert.Equal(t, "upload.csv", uploadName(".."))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errNoFile, http.StatusBadRequest},
		{errBadRunID, http.StatusBadRequest},
		{errFileTooBig, http.StatusRequestEntityTooLarge},
		{store.ErrRunNotFound, http.StatusNotFound},
		{quarantine.ErrNotFound, http.StatusNotFound},
		{&pipeline.AutoDetectError{Name: "x.csv", Dir: "in"}, http.StatusNotFound},
		{pipeline.ErrTooManyRuns, http.StatusServiceUnavailable},
		{config.ErrDatabaseNotConfigured, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
