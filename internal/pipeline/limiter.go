package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait time.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

const (
	// DefaultMaxConcurrentRuns is used when the configured limit is not positive.
	DefaultMaxConcurrentRuns = 2
	// DefaultMaxWaitTime is how long Submit waits for a slot by default.
	DefaultMaxWaitTime = 30 * time.Second
)

// RunLimiter caps how many runs execute at once. A slot belongs to one run
// ID from submission until the run finishes, so the limiter can report
// which runs are in flight and since when.
type RunLimiter struct {
	sem     *semaphore.Weighted
	slots   int
	maxWait time.Duration
	now     func() time.Time

	mu      sync.Mutex
	holders map[uuid.UUID]time.Time
	idle    chan struct{} // closed while no run holds a slot
}

// NewRunLimiter creates a limiter with maxConcurrent slots. Acquire gives up
// after maxWait.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)

	return &RunLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		slots:   maxConcurrent,
		maxWait: maxWait,
		now:     time.Now,
		holders: make(map[uuid.UUID]time.Time),
		idle:    idle,
	}
}

// Acquire takes a slot for runID. It returns ErrTooManyRuns when none frees
// up within the wait time, or ctx's error if the caller gave up first.
// Every successful Acquire must be paired with Release(runID).
func (l *RunLimiter) Acquire(ctx context.Context, runID uuid.UUID) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}

	l.mu.Lock()
	if len(l.holders) == 0 {
		l.idle = make(chan struct{})
	}
	l.holders[runID] = l.now()
	l.mu.Unlock()
	return nil
}

// Release frees runID's slot. Releasing a run that holds no slot is a no-op.
func (l *RunLimiter) Release(runID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.holders[runID]; !ok {
		return
	}
	delete(l.holders, runID)
	l.sem.Release(1)

	if len(l.holders) == 0 {
		close(l.idle)
	}
}

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	default:
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveRun is a run holding a slot.
type ActiveRun struct {
	RunID uuid.UUID `json:"run_id"`
	Since time.Time `json:"since"`
}

// LimiterStatus is a snapshot of the limiter for /health and the dashboard.
type LimiterStatus struct {
	Active        int         `json:"active"`
	Available     int         `json:"available"`
	MaxConcurrent int         `json:"max_concurrent"`
	Running       []ActiveRun `json:"running"`
}

// Status lists the runs holding slots, oldest first.
func (l *RunLimiter) Status() LimiterStatus {
	l.mu.Lock()
	running := make([]ActiveRun, 0, len(l.holders))
	for id, since := range l.holders {
		running = append(running, ActiveRun{RunID: id, Since: since})
	}
	l.mu.Unlock()

	sort.Slice(running, func(i, j int) bool {
		if running[i].Since.Equal(running[j].Since) {
			return running[i].RunID.String() < running[j].RunID.String()
		}
		return running[i].Since.Before(running[j].Since)
	})

	return LimiterStatus{
		Active:        len(running),
		Available:     l.slots - len(running),
		MaxConcurrent: l.slots,
		Running:       running,
	}
}
