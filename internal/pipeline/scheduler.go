package pipeline

// scheduler.go triggers auto-detect runs on a cron schedule.
//
// Each tick looks for today's dated file in the input directory and submits
// it. A missing file or a busy limiter is logged and skipped; the scheduler
// itself never stops on a failed tick.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Submitter starts a run. *Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, path string, dryRun bool) (uuid.UUID, error)
}

// Scheduler runs auto-detected files on a cron spec.
type Scheduler struct {
	cron      *cron.Cron
	submitter Submitter
	inputDir  string
	prefix    string
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a scheduler for files named <prefix>YYYYMMDD.csv in inputDir.
func NewScheduler(submitter Submitter, inputDir, prefix string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		submitter: submitter,
		inputDir:  inputDir,
		prefix:    prefix,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers spec (standard 5-field cron) and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("pipeline scheduler started", "schedule", spec, "input_dir", s.inputDir)
	return nil
}

// Stop stops the scheduler and waits for a tick in progress.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("pipeline scheduler stopped")
}

func (s *Scheduler) tick() {
	if _, err := s.trigger(context.Background()); err != nil {
		s.logger.Warn("scheduled run skipped", "error", err)
	}
}

// trigger submits today's file.
func (s *Scheduler) trigger(ctx context.Context) (uuid.UUID, error) {
	path, err := AutoDetectPath(s.inputDir, s.prefix, s.now())
	if err != nil {
		return uuid.Nil, err
	}

	id, err := s.submitter.Submit(ctx, path, false)
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("scheduled run started", "run_id", id, "file", path)
	return id, nil
}
