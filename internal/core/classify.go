package core

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Classifier defaults. The sample is a stable prefix of the non-blank
// values, never a random draw, so classification is reproducible.
const (
	DefaultSampleSize       = 100
	DefaultNumericThreshold = 0.7
	DefaultDateThreshold    = 0.7
	DefaultMinDateLength    = 6
)

// ClassifierConfig holds the sampling and decision thresholds.
// Zero fields fall back to the package defaults.
type ClassifierConfig struct {
	SampleSize       int     // Max non-blank values inspected per column
	NumericThreshold float64 // Numeric hit ratio must be strictly greater
	DateThreshold    float64 // Date hit ratio must be strictly greater
	MinDateLength    int     // Shorter raw values are never date hits
}

// DefaultClassifierConfig returns the standard thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		SampleSize:       DefaultSampleSize,
		NumericThreshold: DefaultNumericThreshold,
		DateThreshold:    DefaultDateThreshold,
		MinDateLength:    DefaultMinDateLength,
	}
}

func (c ClassifierConfig) withDefaults() ClassifierConfig {
	d := DefaultClassifierConfig()
	if c.SampleSize <= 0 {
		c.SampleSize = d.SampleSize
	}
	if c.NumericThreshold <= 0 {
		c.NumericThreshold = d.NumericThreshold
	}
	if c.DateThreshold <= 0 {
		c.DateThreshold = d.DateThreshold
	}
	if c.MinDateLength <= 0 {
		c.MinDateLength = d.MinDateLength
	}
	return c
}

// Classifier infers a column's type from its raw values.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg.withDefaults()}
}

// ColumnStats records how a sample scored. Useful for logging.
type ColumnStats struct {
	SampleSize  int
	NumericHits int
	DateHits    int
}

// Classify returns the dtype for a column.
//
// Numeric is checked before date: a column of digit strings such as postal
// codes or store IDs must stay numeric even though some of them would
// parse as compact dates.
func (c *Classifier) Classify(values []pgtype.Text) DType {
	dtype, _ := c.ClassifyWithStats(values)
	return dtype
}

// ClassifyWithStats is Classify plus the sample scores.
func (c *Classifier) ClassifyWithStats(values []pgtype.Text) (DType, ColumnStats) {
	sample := make([]string, 0, min(len(values), c.cfg.SampleSize))
	for _, v := range values {
		if !v.Valid || strings.TrimSpace(v.String) == "" {
			continue
		}
		sample = append(sample, v.String)
		if len(sample) == c.cfg.SampleSize {
			break
		}
	}

	stats := ColumnStats{SampleSize: len(sample)}
	if len(sample) == 0 {
		return DTypeText, stats
	}

	for _, raw := range sample {
		if _, ok := CleanNumeric(raw); ok {
			stats.NumericHits++
		}
		if len(raw) >= c.cfg.MinDateLength {
			if _, ok := ParseDate(raw); ok {
				stats.DateHits++
			}
		}
	}

	n := float64(len(sample))
	switch {
	case float64(stats.NumericHits)/n > c.cfg.NumericThreshold:
		return DTypeNumeric, stats
	case float64(stats.DateHits)/n > c.cfg.DateThreshold:
		return DTypeDate, stats
	default:
		return DTypeText, stats
	}
}

// Classify classifies a column of plain strings with the default thresholds.
// Empty strings are treated as nulls.
func Classify(values []string) DType {
	cells := make([]pgtype.Text, len(values))
	for i, v := range values {
		cells[i] = pgtype.Text{String: v, Valid: v != ""}
	}
	return NewClassifier(DefaultClassifierConfig()).Classify(cells)
}
