package core

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// DType is the inferred type of a column.
type DType string

const (
	DTypeNumeric DType = "numeric"
	DTypeDate    DType = "date"
	DTypeText    DType = "text"
)

// Valid reports whether d is one of the known column types.
func (d DType) Valid() bool {
	switch d {
	case DTypeNumeric, DTypeDate, DTypeText:
		return true
	}
	return false
}

// RawTable is a parsed CSV before any type inference.
//
// Columns holds the header names as they appeared in the file, whitespace-trimmed.
// Every row in Rows is aligned with Columns; a cell with Valid=false is null.
type RawTable struct {
	Columns []string
	Rows    [][]pgtype.Text
}

// Column returns the raw values of column i across all rows.
func (t *RawTable) Column(i int) []pgtype.Text {
	values := make([]pgtype.Text, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			values[r] = row[i]
		}
	}
	return values
}

// ColumnSchema describes one inferred column of a run.
type ColumnSchema struct {
	Name         string `json:"name"`
	DType        DType  `json:"dtype"`
	OriginalName string `json:"original_name"`
	Order        int    `json:"order"`
}

// TypedRow maps normalized column names to normalized values.
// Values are float64, string (trimmed text or a YYYY-MM-DD date) or nil.
// Iterate in schema order; map order carries no meaning.
type TypedRow map[string]any

// RejectedRow is a quarantined input row.
type RejectedRow struct {
	Line   int           // 1-based data row number (header excluded)
	Values []pgtype.Text // Original raw values, aligned with RawTable.Columns
	Reason string        // Non-empty, "; "-joined
}

// Strings returns the raw values as strings, with null cells as "".
func (r RejectedRow) Strings() []string {
	out := make([]string, len(r.Values))
	for i, v := range r.Values {
		if v.Valid {
			out[i] = v.String
		}
	}
	return out
}

// TransformResult is the output of a single transform.
type TransformResult struct {
	Schema         []ColumnSchema
	ValidRows      []TypedRow
	RejectedRows   []RejectedRow
	TotalProcessed int
	TotalValid     int
	TotalRejected  int
}

// SchemaTypes returns a name -> dtype lookup for the schema.
func (r *TransformResult) SchemaTypes() map[string]DType {
	types := make(map[string]DType, len(r.Schema))
	for _, col := range r.Schema {
		types[col.Name] = col.DType
	}
	return types
}

// EventKind identifies a progress event emitted during a transform.
type EventKind string

const (
	EventColumnClassified EventKind = "column_classified"
	EventRowsSplit        EventKind = "rows_split"
)

// Event is an advisory progress notice. Ignoring events never changes results.
type Event struct {
	Kind    EventKind
	Column  string
	DType   DType
	Message string
}

// EventFunc receives transform events in order.
type EventFunc func(Event)
