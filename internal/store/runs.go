package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrRunNotFound is returned when no ledger row matches a run ID.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusPending RunStatus = "PENDING"
	StatusRunning RunStatus = "RUNNING"
	StatusSuccess RunStatus = "SUCCESS"
	StatusFailed  RunStatus = "FAILED"
)

// Finished reports whether the status is terminal.
func (s RunStatus) Finished() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Run is one row of the run ledger.
type Run struct {
	ID             uuid.UUID  `json:"id"`
	Status         RunStatus  `json:"status"`
	FileName       string     `json:"file_name"`
	DryRun         bool       `json:"dry_run"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Duration       *float64   `json:"duration,omitempty"` // seconds
	TotalRead      int        `json:"total_read"`
	TotalValid     int        `json:"total_valid"`
	TotalRejected  int        `json:"total_rejected"`
	Inserted       int        `json:"db_inserts"`
	Updated        int        `json:"db_updates"`
	QuarantineFile string     `json:"quarantine_file,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// RunResult holds the counters recorded when a run succeeds.
type RunResult struct {
	Duration       time.Duration
	TotalRead      int
	TotalValid     int
	TotalRejected  int
	Inserted       int
	Updated        int
	QuarantineFile string
}

const runColumns = `id, status, file_name, dry_run, created_at, started_at, finished_at,
	duration_seconds, total_read, total_valid, total_rejected, db_inserts, db_updates,
	quarantine_file, error_message`

// CreateRun inserts a PENDING ledger row.
func (s *Store) CreateRun(ctx context.Context, id uuid.UUID, fileName string, dryRun bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, status, file_name, dry_run) VALUES ($1, $2, $3, $4)`,
		id, StatusPending, fileName, dryRun,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// StartRun marks a run RUNNING.
func (s *Store) StartRun(ctx context.Context, id uuid.UUID) error {
	return s.updateRun(ctx, "start run",
		`UPDATE pipeline_runs SET status = $2, started_at = NOW() WHERE id = $1`,
		id, StatusRunning,
	)
}

// CompleteRun marks a run SUCCESS and records its counters.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, res RunResult) error {
	var quarantine pgtype.Text
	if res.QuarantineFile != "" {
		quarantine = pgtype.Text{String: res.QuarantineFile, Valid: true}
	}
	return s.updateRun(ctx, "complete run",
		`UPDATE pipeline_runs SET
			status = $2, finished_at = NOW(), duration_seconds = $3,
			total_read = $4, total_valid = $5, total_rejected = $6,
			db_inserts = $7, db_updates = $8, quarantine_file = $9
		WHERE id = $1`,
		id, StatusSuccess, res.Duration.Seconds(),
		res.TotalRead, res.TotalValid, res.TotalRejected,
		res.Inserted, res.Updated, quarantine,
	)
}

// FailRun marks a run FAILED with the technical error message.
func (s *Store) FailRun(ctx context.Context, id uuid.UUID, message string, duration time.Duration) error {
	return s.updateRun(ctx, "fail run",
		`UPDATE pipeline_runs SET
			status = $2, finished_at = NOW(), duration_seconds = $3, error_message = $4
		WHERE id = $1`,
		id, StatusFailed, duration.Seconds(), message,
	)
}

func (s *Store) updateRun(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrRunNotFound)
	}
	return nil
}

// GetRun returns one ledger row.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first plus the total ledger size.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pipeline_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return runs, total, nil
}

// LatestSuccessfulRun returns the ID of the newest SUCCESS run that
// persisted data (dry runs excluded).
func (s *Store) LatestSuccessfulRun(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM pipeline_runs
		WHERE status = $1 AND NOT dry_run
		ORDER BY created_at DESC LIMIT 1`,
		StatusSuccess,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrRunNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		run                   Run
		started, finished     pgtype.Timestamptz
		duration              pgtype.Float8
		quarantine, errorText pgtype.Text
	)
	err := row.Scan(
		&run.ID, &run.Status, &run.FileName, &run.DryRun, &run.CreatedAt,
		&started, &finished, &duration,
		&run.TotalRead, &run.TotalValid, &run.TotalRejected, &run.Inserted, &run.Updated,
		&quarantine, &errorText,
	)
	if err != nil {
		return nil, err
	}

	if started.Valid {
		run.StartedAt = &started.Time
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	if duration.Valid {
		run.Duration = &duration.Float64
	}
	run.QuarantineFile = quarantine.String
	run.ErrorMessage = errorText.String
	return &run, nil
}
