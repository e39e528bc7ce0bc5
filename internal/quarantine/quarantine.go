// Package quarantine stores rejected rows as CSV reports for operator review.
//
// Each run with rejected rows produces one file named
// errors_YYYYMMDD_HHMMSS.csv. Its header is the original input header plus
// a trailing reject_reason column.
package quarantine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BR4Y4NEXE/Datrix/internal/core"
)

// ReasonColumn is the header of the appended reason column.
const ReasonColumn = "reject_reason"

// ErrNotFound is returned by Read for unknown or invalid file names.
var ErrNotFound = errors.New("quarantine file not found")

// File describes one quarantine report.
type File struct {
	Name      string    `json:"filename"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Detail is the parsed content of a report.
type Detail struct {
	Name    string              `json:"filename"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
	Total   int                 `json:"total"`
}

// Dir is a quarantine directory.
type Dir struct {
	path string
	now  func() time.Time
	wrap func(io.Writer) io.Writer
}

// New returns a quarantine rooted at path. The directory is created on
// first write.
func New(path string) *Dir {
	return &Dir{
		path: path,
		now:  time.Now,
		wrap: func(w io.Writer) io.Writer { return w },
	}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// WriteRejected writes rows under columns plus ReasonColumn and returns the
// new file name. Writing zero rows is an error; callers skip the write.
func (d *Dir) WriteRejected(columns []string, rows []core.RejectedRow) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("quarantine: no rejected rows")
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	f, name, err := d.create()
	if err != nil {
		return "", err
	}

	// A report that failed halfway must not show up in List.
	if err := writeReport(d.wrap(f), columns, rows); err != nil {
		f.Close()
		d.discard(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		d.discard(name)
		return "", fmt.Errorf("close quarantine file: %w", err)
	}
	return name, nil
}

func writeReport(out io.Writer, columns []string, rows []core.RejectedRow) error {
	w := csv.NewWriter(out)
	header := append(append(make([]string, 0, len(columns)+1), columns...), ReasonColumn)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write quarantine header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(columns), len(columns)+1)
		copy(record, row.Strings())
		if err := w.Write(append(record, row.Reason)); err != nil {
			return fmt.Errorf("write quarantine row %d: %w", row.Line, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush quarantine file: %w", err)
	}
	return nil
}

func (d *Dir) discard(name string) {
	if err := os.Remove(filepath.Join(d.path, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove partial quarantine file", "file", name, "error", err)
	}
}

// create opens a fresh report file, adding a numeric suffix when two runs
// quarantine within the same second.
func (d *Dir) create() (*os.File, string, error) {
	base := "errors_" + d.now().Format("20060102_150405")
	for i := 1; i < 100; i++ {
		name := base + ".csv"
		if i > 1 {
			name = fmt.Sprintf("%s_%d.csv", base, i)
		}
		f, err := os.OpenFile(filepath.Join(d.path, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create quarantine file: %w", err)
		}
		return f, name, nil
	}
	return nil, "", fmt.Errorf("create quarantine file: too many files named %s*", base)
}

// List returns all reports, newest first. A missing directory is empty.
func (d *Dir) List() ([]File, error) {
	entries, err := os.ReadDir(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list quarantine: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:      e.Name(),
			RowCount:  d.countRows(e.Name()),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// countRows counts data rows; unreadable files count as 0.
func (d *Dir) countRows(name string) int {
	f, err := os.Open(filepath.Join(d.path, name))
	if err != nil {
		return 0
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	n := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0
		}
		n++
	}
	return max(n-1, 0)
}

// Read parses a report. The name must be a bare .csv file name inside the
// directory.
func (d *Dir) Read(name string) (*Detail, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	f, err := os.Open(filepath.Join(d.path, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open quarantine file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %s: %w", name, err)
	}

	detail := &Detail{Name: name, Rows: []map[string]string{}}
	if len(records) == 0 {
		return detail, nil
	}

	detail.Columns = records[0]
	for _, rec := range records[1:] {
		row := make(map[string]string, len(detail.Columns))
		for i, col := range detail.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		detail.Rows = append(detail.Rows, row)
	}
	detail.Total = len(detail.Rows)
	return detail, nil
}

// Reset deletes every report and returns how many were removed.
func (d *Dir) Reset() (int, error) {
	entries, err := os.ReadDir(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list quarantine: %w", err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(d.path, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func validName(name string) bool {
	return name != "" && filepath.Base(name) == name && !strings.Contains(name, "..") && isCSV(name)
}
