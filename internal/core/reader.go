package core

// reader.go turns files on disk into RawTables.
//
// The flow for CSV input is:
//  1. ReadFile loads the bytes (NotFoundError when missing)
//  2. ResolveEncoding guesses the charset from the first 100KB
//  3. Decode converts to UTF-8, falling back to Latin-1 once
//  4. ParseCSV reads the header and rows into a RawTable
//
// Excel workbooks (.xlsx) skip steps 2-3; the first sheet is read as if it
// were a CSV with a header row.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
)

// DefaultNullTokens are cell values read as null, in addition to the empty
// string. They mirror what common dataframe tools treat as missing.
var DefaultNullTokens = []string{
	"NA", "N/A", "n/a", "NULL", "null", "NaN", "nan", "-NaN", "-nan",
	"None", "<NA>", "#N/A", "#NA",
}

// ParseOptions control CSV parsing.
type ParseOptions struct {
	Delimiter  rune     // Field delimiter (default ',')
	NullTokens []string // Exact cell values read as null (default DefaultNullTokens)
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.NullTokens == nil {
		o.NullTokens = DefaultNullTokens
	}
	return o
}

// Extraction is a parsed input file.
type Extraction struct {
	Table    *RawTable
	Encoding string // Encoding actually used to decode ("" for xlsx)
	Size     int64  // Input size in bytes
}

// ReadFile reads a whole file. A missing path yields *NotFoundError.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, &ExtractError{Path: path, Err: err}
	}
	return data, nil
}

// Extract reads path and parses it into a RawTable.
// Missing files return *NotFoundError; everything else that goes wrong
// is wrapped in *ExtractError.
func Extract(path string, opts ParseOptions) (*Extraction, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		table, err := ParseXLSX(bytes.NewReader(data), opts)
		if err != nil {
			return nil, &ExtractError{Path: path, Err: err}
		}
		return &Extraction{Table: table, Size: int64(len(data))}, nil
	}

	ext, err := ExtractBytes(data, opts)
	if err != nil {
		return nil, &ExtractError{Path: path, Err: err}
	}
	return ext, nil
}

// ExtractBytes decodes CSV bytes of unknown encoding and parses them.
func ExtractBytes(data []byte, opts ParseOptions) (*Extraction, error) {
	text, used, err := Decode(data, ResolveEncoding(data))
	if err != nil {
		return nil, err
	}

	table, err := ParseCSV(strings.NewReader(text), opts)
	if err != nil {
		return nil, err
	}
	return &Extraction{Table: table, Encoding: used, Size: int64(len(data))}, nil
}

// ParseCSV reads a header row followed by data rows.
//
// Header names are whitespace-trimmed. Short rows are padded with nulls and
// surplus trailing fields are dropped. An input without a header yields a
// table with zero columns, which Transform rejects.
func ParseCSV(r io.Reader, opts ParseOptions) (*RawTable, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(NewBOMSkippingReader(r))
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return &RawTable{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv: header: %w", err)
	}

	table := &RawTable{Columns: trimHeader(header)}
	nulls := nullSet(opts.NullTokens)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		table.Rows = append(table.Rows, toCells(record, len(table.Columns), nulls))
	}

	return table, nil
}

// ParseXLSX reads the first worksheet of an Excel workbook.
func ParseXLSX(r io.Reader, opts ParseOptions) (*RawTable, error) {
	opts = opts.withDefaults()

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &RawTable{}, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return &RawTable{}, nil
	}

	table := &RawTable{Columns: trimHeader(rows[0])}
	nulls := nullSet(opts.NullTokens)
	for _, record := range rows[1:] {
		// excelize omits trailing empty rows but keeps blank ones in between
		if len(record) == 0 {
			continue
		}
		table.Rows = append(table.Rows, toCells(record, len(table.Columns), nulls))
	}
	return table, nil
}

func trimHeader(header []string) []string {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}
	return cols
}

func nullSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens)+1)
	set[""] = struct{}{}
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func toCells(record []string, width int, nulls map[string]struct{}) []pgtype.Text {
	row := make([]pgtype.Text, width)
	for i := 0; i < width && i < len(record); i++ {
		if _, isNull := nulls[record[i]]; isNull {
			continue
		}
		row[i] = pgtype.Text{String: record[i], Valid: true}
	}
	return row
}
