package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/BR4Y4NEXE/Datrix/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultPerPage is the page size when none is given.
const DefaultPerPage = 50

// MaxPerPage caps a single page.
const MaxPerPage = 500

// PersistSchema stores the column descriptors of a run.
func (s *Store) PersistSchema(ctx context.Context, runID uuid.UUID, schema []core.ColumnSchema) error {
	batch := &pgx.Batch{}
	for _, col := range schema {
		batch.Queue(
			`INSERT INTO dataset_schema (run_id, column_order, column_name, column_type, original_name)
			VALUES ($1, $2, $3, $4, $5)`,
			runID, col.Order, col.Name, string(col.DType), col.OriginalName,
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("persist schema: %w", err)
	}
	return nil
}

// PersistRows bulk-loads typed rows with COPY. Row indexes follow input
// order. Every run writes new rows, so the updated count is always 0.
func (s *Store) PersistRows(ctx context.Context, runID uuid.UUID, rows []core.TypedRow) (inserted, updated int, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"datasets"},
		[]string{"run_id", "row_index", "data"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{runID, i, map[string]any(rows[i])}, nil
		}),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("persist rows: %w", err)
	}
	return int(n), 0, nil
}

// Schema returns a run's columns in order.
func (s *Store) Schema(ctx context.Context, runID uuid.UUID) ([]core.ColumnSchema, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name, column_type, original_name, column_order
		FROM dataset_schema WHERE run_id = $1 ORDER BY column_order`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	defer rows.Close()

	var schema []core.ColumnSchema
	for rows.Next() {
		var col core.ColumnSchema
		var dtype string
		if err := rows.Scan(&col.Name, &dtype, &col.OriginalName, &col.Order); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		col.DType = core.DType(dtype)
		schema = append(schema, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return schema, nil
}

// RecordQuery selects a page of stored rows.
type RecordQuery struct {
	RunID   uuid.UUID
	Page    int
	PerPage int
	Search  string // Case-insensitive substring over the whole row
}

// RecordPage is one page of stored rows.
type RecordPage struct {
	RunID      uuid.UUID           `json:"run_id"`
	Columns    []core.ColumnSchema `json:"columns"`
	Rows       []core.TypedRow     `json:"rows"`
	Page       int                 `json:"page"`
	PerPage    int                 `json:"per_page"`
	Total      int                 `json:"total"`
	TotalPages int                 `json:"total_pages"`
}

// Records returns a page of rows in input order.
func (s *Store) Records(ctx context.Context, q RecordQuery) (*RecordPage, error) {
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	q.PerPage = min(q.PerPage, MaxPerPage)

	columns, err := s.Schema(ctx, q.RunID)
	if err != nil {
		return nil, err
	}

	where := "run_id = $1"
	args := []any{q.RunID}
	if search := strings.TrimSpace(q.Search); search != "" {
		where += " AND data::text ILIKE $2"
		args = append(args, "%"+escapeLike(search)+"%")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM datasets WHERE "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	// Calculate pagination
	totalPages := max((total+q.PerPage-1)/q.PerPage, 1)
	page := min(max(q.Page, 1), totalPages)
	offset := (page - 1) * q.PerPage

	query := fmt.Sprintf(
		"SELECT data FROM datasets WHERE %s ORDER BY row_index LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2,
	)
	rows, err := s.pool.Query(ctx, query, append(args, q.PerPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	data, err := collectData(rows)
	if err != nil {
		return nil, err
	}

	return &RecordPage{
		RunID:      q.RunID,
		Columns:    columns,
		Rows:       data,
		Page:       page,
		PerPage:    q.PerPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// AllRecords returns every stored row of a run in input order.
func (s *Store) AllRecords(ctx context.Context, runID uuid.UUID) ([]core.TypedRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM datasets WHERE run_id = $1 ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	return collectData(rows)
}

func collectData(rows pgx.Rows) ([]core.TypedRow, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.TypedRow, error) {
		var data map[string]any
		if err := row.Scan(&data); err != nil {
			return nil, err
		}
		return core.TypedRow(data), nil
	})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}

// Reset deletes all datasets, schemas and runs.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	for _, table := range []string{"datasets", "dataset_schema", "pipeline_runs"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
