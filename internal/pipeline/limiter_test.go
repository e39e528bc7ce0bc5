package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLimiter_TracksRunsBySlot(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	clock := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	first, second := uuid.New(), uuid.New()
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx, first))
	clock = clock.Add(time.Second)
	require.NoError(t, limiter.Acquire(ctx, second))

	st := limiter.Status()
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 0, st.Available)
	assert.Equal(t, 2, st.MaxConcurrent)
	assert.Equal(t, []ActiveRun{
		{RunID: first, Since: clock.Add(-time.Second)},
		{RunID: second, Since: clock},
	}, st.Running)

	limiter.Release(first)
	st = limiter.Status()
	assert.Equal(t, 1, st.Available)
	assert.Equal(t, []ActiveRun{{RunID: second, Since: clock}}, st.Running)
}

func TestRunLimiter_ReleaseUnknownRun(t *testing.T) {
	limiter := NewRunLimiter(1, 50*time.Millisecond)
	held := uuid.New()
	require.NoError(t, limiter.Acquire(context.Background(), held))

	assert.NotPanics(t, func() { limiter.Release(uuid.New()) })
	limiter.Release(held)
	assert.NotPanics(t, func() { limiter.Release(held) }, "double release")

	require.NoError(t, limiter.Acquire(context.Background(), uuid.New()))
	assert.ErrorIs(t, limiter.Acquire(context.Background(), uuid.New()), ErrTooManyRuns,
		"a stray release must not create an extra slot")
}

func TestRunLimiter_Busy(t *testing.T) {
	limiter := NewRunLimiter(1, 80*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background(), uuid.New()))

	start := time.Now()
	err := limiter.Acquire(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTooManyRuns)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
	assert.Equal(t, 1, limiter.Status().Active, "the rejected run holds nothing")
}

func TestRunLimiter_CallerCancels(t *testing.T) {
	limiter := NewRunLimiter(1, 5*time.Second)
	require.NoError(t, limiter.Acquire(context.Background(), uuid.New()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- limiter.Acquire(ctx, uuid.New()) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire ignored cancellation")
	}
}

func TestRunLimiter_WaiterGetsFreedSlot(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	running := uuid.New()
	require.NoError(t, limiter.Acquire(context.Background(), running))

	next := uuid.New()
	errCh := make(chan error, 1)
	go func() { errCh <- limiter.Acquire(context.Background(), next) }()

	time.Sleep(30 * time.Millisecond)
	limiter.Release(running)

	require.NoError(t, <-errCh)
	st := limiter.Status()
	require.Len(t, st.Running, 1)
	assert.Equal(t, next, st.Running[0].RunID)
}

func TestRunLimiter_NeverExceedsSlots(t *testing.T) {
	const slots = 2
	limiter := NewRunLimiter(slots, 5*time.Second)

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			if err := limiter.Acquire(context.Background(), id); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer limiter.Release(id)

			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak.Load()), slots)
	assert.Equal(t, 0, limiter.Status().Active)
}

func TestRunLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	a, b := uuid.New(), uuid.New()
	require.NoError(t, limiter.Acquire(context.Background(), a))
	require.NoError(t, limiter.Acquire(context.Background(), b))

	done := make(chan error, 1)
	go func() { done <- limiter.WaitForDrain(context.Background()) }()

	limiter.Release(a)
	select {
	case <-done:
		t.Fatal("drained while a run still holds a slot")
	case <-time.After(30 * time.Millisecond):
	}

	limiter.Release(b)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after the last release")
	}
}

func TestRunLimiter_WaitForDrainTimeout(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background(), uuid.New()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestRunLimiter_IdleDrainsWithDoneContext(t *testing.T) {
	limiter := NewRunLimiter(0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, limiter.WaitForDrain(ctx))

	st := limiter.Status()
	assert.Equal(t, DefaultMaxConcurrentRuns, st.MaxConcurrent)
	assert.Empty(t, st.Running)
}
