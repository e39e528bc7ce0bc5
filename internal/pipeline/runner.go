// Package pipeline runs the extract, transform, quarantine, load and notify
// steps for one input file, records each run in the ledger and streams its
// log lines to live subscribers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/BR4Y4NEXE/Datrix/internal/logging"
	"github.com/BR4Y4NEXE/Datrix/internal/notify"
	"github.com/BR4Y4NEXE/Datrix/internal/quarantine"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
)

// Reporter sends the end-of-run report. *notify.Notifier implements it.
type Reporter interface {
	SendReport(ctx context.Context, s notify.Summary) error
}

// Request identifies one run of one file.
type Request struct {
	RunID  uuid.UUID
	Path   string
	DryRun bool
}

// Report is the outcome of a successful run.
type Report struct {
	RunID    uuid.UUID
	FileName string
	Encoding string
	Schema   []core.ColumnSchema
	Result   store.RunResult
}

// Deps wires a Runner. Sink may be nil when only dry runs are made;
// Quarantine, Notifier and Hub are optional.
type Deps struct {
	Ledger     Ledger
	Sink       DatasetSink
	Quarantine *quarantine.Dir
	Notifier   Reporter
	Hub        *LogHub
	Engine     core.EngineConfig
	Parse      core.ParseOptions
}

// Runner executes pipeline runs. It is safe for concurrent use.
type Runner struct {
	deps Deps
}

// NewRunner creates a runner.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// EngineSettings converts the engine section of the config.
func EngineSettings(cfg config.EngineConfig) core.EngineConfig {
	ec := core.DefaultEngineConfig()
	ec.Classifier.SampleSize = cfg.SampleSize
	ec.Classifier.NumericThreshold = cfg.NumericThreshold
	ec.Classifier.DateThreshold = cfg.DateThreshold
	ec.Admission.MostlyEmptyRatio = cfg.MostlyEmptyRatio
	return ec
}

// Run executes req. The ledger row must already exist (see Dispatcher).
// Any failure marks the run FAILED with the error text and is returned.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	logger := r.runLogger(req.RunID)
	if r.deps.Hub != nil {
		defer r.deps.Hub.Close(req.RunID)
	}

	if err := r.deps.Ledger.StartRun(ctx, req.RunID); err != nil {
		logger.Error("ETL failed", "error", err)
		return nil, err
	}

	report, err := r.safeExecute(ctx, logger, req, start)
	if err != nil {
		duration := time.Since(start)
		logger.Error("ETL failed", "error", err, "duration", round2(duration))

		// The run's own context may be what failed; the ledger still needs the outcome.
		if ferr := r.deps.Ledger.FailRun(context.WithoutCancel(ctx), req.RunID, err.Error(), duration); ferr != nil {
			logger.Error("failed to record run failure", "error", ferr)
		}
		return nil, err
	}
	return report, nil
}

// safeExecute turns a panic in any step, including the third-party parsers
// fed with untrusted input, into a run error.
func (r *Runner) safeExecute(ctx context.Context, logger *slog.Logger, req Request, start time.Time) (report *Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic in ETL step", "panic", p, "stack", string(debug.Stack()))
			report, err = nil, fmt.Errorf("internal error: %v", p)
		}
	}()
	return r.execute(ctx, logger, req, start)
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, req Request, start time.Time) (*Report, error) {
	fileName := filepath.Base(req.Path)
	logger.Info("starting ETL", "file", req.Path, "dry_run", req.DryRun)

	if !req.DryRun && r.deps.Sink == nil {
		return nil, config.ErrDatabaseNotConfigured
	}

	// 1. Extract
	ext, err := core.Extract(req.Path, r.deps.Parse)
	if err != nil {
		return nil, err
	}
	totalRead := len(ext.Table.Rows)
	logger.Info("extract complete", "rows", totalRead, "encoding", ext.Encoding)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Transform
	engine := core.NewEngine(r.deps.Engine, func(ev core.Event) {
		logger.Info(ev.Message)
	})
	res, err := engine.Transform(ext.Table)
	if err != nil {
		return nil, err
	}
	logger.Info("transform complete", "valid", res.TotalValid, "rejected", res.TotalRejected)

	for _, col := range res.Schema {
		logger.Info(fmt.Sprintf("Schema: %s → %s (%s)", col.OriginalName, col.Name, col.DType))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Quarantine
	var quarantineFile string
	if len(res.RejectedRows) > 0 && r.deps.Quarantine != nil {
		quarantineFile, err = r.deps.Quarantine.WriteRejected(ext.Table.Columns, res.RejectedRows)
		if err != nil {
			return nil, err
		}
		logger.Info("quarantined rows", "rows", len(res.RejectedRows), "file", quarantineFile)
	}

	// 4. Load
	var inserted, updated int
	if req.DryRun {
		logger.Info("dry run: skipping database load")
	} else {
		if err := r.deps.Sink.PersistSchema(ctx, req.RunID, res.Schema); err != nil {
			return nil, err
		}
		inserted, updated, err = r.deps.Sink.PersistRows(ctx, req.RunID, res.ValidRows)
		if err != nil {
			return nil, err
		}
		logger.Info("load complete", "inserted", inserted, "updated", updated)
	}

	result := store.RunResult{
		Duration:       time.Since(start),
		TotalRead:      totalRead,
		TotalValid:     res.TotalValid,
		TotalRejected:  res.TotalRejected,
		Inserted:       inserted,
		Updated:        updated,
		QuarantineFile: quarantineFile,
	}
	if err := r.deps.Ledger.CompleteRun(ctx, req.RunID, result); err != nil {
		return nil, err
	}
	logger.Info("ETL completed successfully", "duration", round2(result.Duration))

	// 5. Notify
	if !req.DryRun && r.deps.Notifier != nil {
		summary := notify.Summary{
			Status:        string(store.StatusSuccess),
			FileName:      fileName,
			Duration:      result.Duration,
			TotalRead:     result.TotalRead,
			TotalValid:    result.TotalValid,
			TotalRejected: result.TotalRejected,
			Inserts:       result.Inserted,
			Updates:       result.Updated,
		}
		if err := r.deps.Notifier.SendReport(ctx, summary); err != nil {
			logger.Warn("notification failed", "error", err)
		}
	}

	return &Report{
		RunID:    req.RunID,
		FileName: fileName,
		Encoding: ext.Encoding,
		Schema:   res.Schema,
		Result:   result,
	}, nil
}

// runLogger returns a logger writing to the process log and, when a hub is
// set, to the run's live log.
func (r *Runner) runLogger(runID uuid.UUID) *slog.Logger {
	base := slog.Default().Handler().WithAttrs([]slog.Attr{slog.String("run_id", runID.String())})
	if r.deps.Hub == nil {
		return slog.New(base)
	}

	hub := r.deps.Hub
	line := logging.NewLineHandler(slog.LevelInfo, func(s string) {
		hub.Publish(runID, s)
	})
	return slog.New(logging.NewTeeHandler(base, line))
}

// round2 renders a duration as seconds with two decimals.
func round2(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// IsCancelled reports whether err came from run cancellation or timeout.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
