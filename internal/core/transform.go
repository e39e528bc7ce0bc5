package core

import (
	"fmt"
	"strings"
)

// EngineConfig configures a transform.
type EngineConfig struct {
	Classifier ClassifierConfig
	Admission  AdmissionPolicy
}

// DefaultEngineConfig returns the standard engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Classifier: DefaultClassifierConfig(),
		Admission:  DefaultAdmissionPolicy(),
	}
}

// Engine turns a RawTable into typed and quarantined rows.
// An Engine holds no per-run state and is safe for concurrent use.
type Engine struct {
	classifier *Classifier
	admission  AdmissionPolicy
	onEvent    EventFunc
}

// NewEngine creates an engine. onEvent may be nil.
func NewEngine(cfg EngineConfig, onEvent EventFunc) *Engine {
	return &Engine{
		classifier: NewClassifier(cfg.Classifier),
		admission:  cfg.Admission,
		onEvent:    onEvent,
	}
}

// Transform classifies every column, normalizes every cell and splits the
// rows into valid and rejected sets. It fails only when the table has no
// columns.
func (e *Engine) Transform(table *RawTable) (*TransformResult, error) {
	if table == nil || len(table.Columns) == 0 {
		return nil, &SchemaError{Reason: "table has no columns"}
	}

	schema := make([]ColumnSchema, len(table.Columns))
	for i, col := range table.Columns {
		original := strings.TrimSpace(col)
		dtype, stats := e.classifier.ClassifyWithStats(table.Column(i))
		schema[i] = ColumnSchema{
			Name:         NormalizeColumnName(original),
			DType:        dtype,
			OriginalName: original,
			Order:        i,
		}
		e.emit(Event{
			Kind:    EventColumnClassified,
			Column:  original,
			DType:   dtype,
			Message: fmt.Sprintf("Column '%s' detected as: %s (sample=%d numeric=%d date=%d)", original, dtype, stats.SampleSize, stats.NumericHits, stats.DateHits),
		})
	}

	result := &TransformResult{
		Schema:         schema,
		ValidRows:      make([]TypedRow, 0, len(table.Rows)),
		TotalProcessed: len(table.Rows),
	}

	normalized := make([]any, len(schema))
	for r, row := range table.Rows {
		for i, col := range schema {
			var raw any
			if i < len(row) && row[i].Valid {
				raw = row[i].String
			}
			normalized[i] = Normalize(raw, col.DType)
		}

		if reason := e.admission.Admit(normalized); reason != "" {
			result.RejectedRows = append(result.RejectedRows, RejectedRow{
				Line:   r + 1,
				Values: alignRow(row, len(schema)),
				Reason: reason,
			})
			continue
		}

		typed := make(TypedRow, len(schema))
		for i, col := range schema {
			typed[col.Name] = normalized[i]
		}
		result.ValidRows = append(result.ValidRows, typed)
	}

	result.TotalValid = len(result.ValidRows)
	result.TotalRejected = len(result.RejectedRows)

	e.emit(Event{
		Kind:    EventRowsSplit,
		Message: fmt.Sprintf("Rows: %d processed, %d valid, %d rejected", result.TotalProcessed, result.TotalValid, result.TotalRejected),
	})

	return result, nil
}

func (e *Engine) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

// alignRow copies row, padding or truncating it to n cells.
func alignRow[T any](row []T, n int) []T {
	out := make([]T, n)
	copy(out, row)
	return out
}

// NormalizeColumnName lowercases a header and replaces spaces with underscores.
// Distinct headers may collide after normalization; callers get the later
// column's value under the shared name.
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Transform runs the default engine without an event listener.
func Transform(table *RawTable) (*TransformResult, error) {
	return NewEngine(DefaultEngineConfig(), nil).Transform(table)
}
