package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Dispatcher starts runs in the background. Each accepted run holds a
// limiter slot from Submit until it finishes.
type Dispatcher struct {
	base    context.Context
	runner  *Runner
	ledger  Ledger
	limiter *RunLimiter
	timeout time.Duration
	newID   func() uuid.UUID
}

// NewDispatcher creates a dispatcher. Runs derive their context from base,
// so cancelling base cancels every in-flight run. A zero timeout means runs
// are bounded only by base.
func NewDispatcher(base context.Context, runner *Runner, ledger Ledger, limiter *RunLimiter, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		base:    base,
		runner:  runner,
		ledger:  ledger,
		limiter: limiter,
		timeout: timeout,
		newID:   uuid.New,
	}
}

// Submit waits for a run slot, records a PENDING run and starts it in the
// background. It returns the new run ID, or ErrTooManyRuns when no slot
// frees up in time.
func (d *Dispatcher) Submit(ctx context.Context, path string, dryRun bool) (uuid.UUID, error) {
	id := d.newID()
	if err := d.limiter.Acquire(ctx, id); err != nil {
		return uuid.Nil, err
	}

	if err := d.ledger.CreateRun(ctx, id, filepath.Base(path), dryRun); err != nil {
		d.limiter.Release(id)
		return uuid.Nil, err
	}

	slog.Info("run submitted", "run_id", id, "file", filepath.Base(path), "dry_run", dryRun)

	go func() {
		start := time.Now()
		defer d.limiter.Release(id)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in run", "run_id", id, "panic", r, "stack", string(debug.Stack()))
				msg := fmt.Sprintf("internal error: %v", r)
				if err := d.ledger.FailRun(context.WithoutCancel(d.base), id, msg, time.Since(start)); err != nil {
					slog.Error("failed to record run failure", "run_id", id, "error", err)
				}
			}
		}()

		runCtx, cancel := d.runContext()
		defer cancel()

		if _, err := d.runner.Run(runCtx, Request{RunID: id, Path: path, DryRun: dryRun}); err != nil {
			if IsCancelled(err) {
				slog.Warn("run cancelled", "run_id", id, "error", err)
				return
			}
			slog.Error("run failed", "run_id", id, "error", err)
		}
	}()

	return id, nil
}

func (d *Dispatcher) runContext() (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(d.base, d.timeout)
	}
	return context.WithCancel(d.base)
}

// WaitForDrain blocks until every submitted run has finished or ctx is done.
func (d *Dispatcher) WaitForDrain(ctx context.Context) error {
	return d.limiter.WaitForDrain(ctx)
}
