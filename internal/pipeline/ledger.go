package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
)

// Ledger records run lifecycle transitions. *store.Store implements it.
type Ledger interface {
	CreateRun(ctx context.Context, id uuid.UUID, fileName string, dryRun bool) error
	StartRun(ctx context.Context, id uuid.UUID) error
	CompleteRun(ctx context.Context, id uuid.UUID, res store.RunResult) error
	FailRun(ctx context.Context, id uuid.UUID, message string, duration time.Duration) error
}

// DatasetSink persists a run's schema and valid rows. *store.Store implements it.
type DatasetSink interface {
	PersistSchema(ctx context.Context, runID uuid.UUID, schema []core.ColumnSchema) error
	PersistRows(ctx context.Context, runID uuid.UUID, rows []core.TypedRow) (inserted, updated int, err error)
}

var (
	_ Ledger      = (*store.Store)(nil)
	_ DatasetSink = (*store.Store)(nil)
	_ Ledger      = (*MemoryLedger)(nil)
)

// MemoryLedger keeps the run ledger in memory. The CLI uses it for dry runs
// without a database.
type MemoryLedger struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*store.Run
	now  func() time.Time
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{runs: make(map[uuid.UUID]*store.Run), now: time.Now}
}

func (m *MemoryLedger) CreateRun(_ context.Context, id uuid.UUID, fileName string, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[id]; ok {
		return fmt.Errorf("create run: duplicate id %s", id)
	}
	m.runs[id] = &store.Run{
		ID:        id,
		Status:    store.StatusPending,
		FileName:  fileName,
		DryRun:    dryRun,
		CreatedAt: m.now(),
	}
	return nil
}

func (m *MemoryLedger) StartRun(_ context.Context, id uuid.UUID) error {
	return m.update("start run", id, func(r *store.Run) {
		now := m.now()
		r.Status = store.StatusRunning
		r.StartedAt = &now
	})
}

func (m *MemoryLedger) CompleteRun(_ context.Context, id uuid.UUID, res store.RunResult) error {
	return m.update("complete run", id, func(r *store.Run) {
		now := m.now()
		secs := res.Duration.Seconds()
		r.Status = store.StatusSuccess
		r.FinishedAt = &now
		r.Duration = &secs
		r.TotalRead = res.TotalRead
		r.TotalValid = res.TotalValid
		r.TotalRejected = res.TotalRejected
		r.Inserted = res.Inserted
		r.Updated = res.Updated
		r.QuarantineFile = res.QuarantineFile
	})
}

func (m *MemoryLedger) FailRun(_ context.Context, id uuid.UUID, message string, duration time.Duration) error {
	return m.update("fail run", id, func(r *store.Run) {
		now := m.now()
		secs := duration.Seconds()
		r.Status = store.StatusFailed
		r.FinishedAt = &now
		r.Duration = &secs
		r.ErrorMessage = message
	})
}

func (m *MemoryLedger) update(op string, id uuid.UUID, fn func(*store.Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, store.ErrRunNotFound)
	}
	fn(r)
	return nil
}

// GetRun returns a copy of one run.
func (m *MemoryLedger) GetRun(_ context.Context, id uuid.UUID) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

// ListRuns returns runs newest first.
func (m *MemoryLedger) ListRuns(_ context.Context) []store.Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]store.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
