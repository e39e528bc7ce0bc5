package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BR4Y4NEXE/Datrix/internal/core"
)

// AutoDetectError is returned when today's dated input file is missing.
// It unwraps to *core.NotFoundError.
type AutoDetectError struct {
	Name string
	Dir  string
	Err  *core.NotFoundError
}

func (e *AutoDetectError) Error() string {
	return fmt.Sprintf("auto-detection failed: %s not found in %s", e.Name, e.Dir)
}

func (e *AutoDetectError) Unwrap() error {
	return e.Err
}

// AutoDetectName returns the expected input file name for day:
// <prefix>YYYYMMDD.csv.
func AutoDetectName(prefix string, day time.Time) string {
	return prefix + day.Format("20060102") + ".csv"
}

// AutoDetectPath returns the path of the input file for now, if it exists.
func AutoDetectPath(dir, prefix string, now time.Time) (string, error) {
	name := AutoDetectName(prefix, now)
	path := filepath.Join(dir, name)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &AutoDetectError{Name: name, Dir: dir, Err: &core.NotFoundError{Path: path}}
		}
		return "", fmt.Errorf("auto-detect %s: %w", path, err)
	}
	if info.IsDir() {
		return "", &AutoDetectError{Name: name, Dir: dir, Err: &core.NotFoundError{Path: path}}
	}
	return path, nil
}
