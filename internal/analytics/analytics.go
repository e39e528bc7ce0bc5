// Package analytics aggregates a stored dataset into summary figures and
// chart series for the dashboard.
//
// It works from the inferred schema alone: numeric columns are summed and
// binned, text columns become categories, and the first date column drives
// a trend line. Nothing here knows what the columns mean.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/BR4Y4NEXE/Datrix/internal/core"
)

const (
	maxCategoryCharts   = 3
	maxCategories       = 10
	maxTrendPoints      = 60
	maxDistributions    = 2
	maxDistributionBins = 10
)

// Report is the analytics payload for one run.
type Report struct {
	Charts  []Chart `json:"charts"`
	Summary Summary `json:"summary"`
}

// Summary holds dataset-level figures.
type Summary struct {
	TotalRecords   int              `json:"total_records"`
	Columns        int              `json:"columns"`
	NumericColumns []NumericSummary `json:"numeric_columns"`
	TextColumns    []TextSummary    `json:"text_columns"`
}

// NumericSummary describes one numeric column. Values are rounded to 2 places.
type NumericSummary struct {
	Column       string  `json:"column"`
	OriginalName string  `json:"original_name"`
	Sum          float64 `json:"sum"`
	Avg          float64 `json:"avg"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
}

// TextSummary describes one text column.
type TextSummary struct {
	Column       string `json:"column"`
	OriginalName string `json:"original_name"`
	UniqueValues int    `json:"unique_values"`
}

// ChartType is the rendering hint for a chart.
type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
)

// Chart is one series. Bar charts set CategoryKey/ValueKey, line charts
// set XKey/YKey; the keys name fields of each Data point.
type Chart struct {
	Type        ChartType        `json:"type"`
	Title       string           `json:"title"`
	CategoryKey string           `json:"category_key,omitempty"`
	ValueKey    string           `json:"value_key,omitempty"`
	XKey        string           `json:"x_key,omitempty"`
	YKey        string           `json:"y_key,omitempty"`
	Data        []map[string]any `json:"data"`
}

// Summarize builds the report for rows stored under schema.
func Summarize(schema []core.ColumnSchema, rows []core.TypedRow) *Report {
	report := &Report{
		Charts: []Chart{},
		Summary: Summary{
			TotalRecords:   len(rows),
			Columns:        len(schema),
			NumericColumns: []NumericSummary{},
			TextColumns:    []TextSummary{},
		},
	}
	if len(rows) == 0 {
		return report
	}

	var numeric, text, dates []core.ColumnSchema
	for _, col := range schema {
		switch col.DType {
		case core.DTypeNumeric:
			numeric = append(numeric, col)
		case core.DTypeText:
			text = append(text, col)
		case core.DTypeDate:
			dates = append(dates, col)
		}
	}

	for _, col := range numeric {
		report.Summary.NumericColumns = append(report.Summary.NumericColumns, summarizeNumeric(col, rows))
	}
	for _, col := range text {
		report.Summary.TextColumns = append(report.Summary.TextColumns, TextSummary{
			Column:       col.Name,
			OriginalName: col.OriginalName,
			UniqueValues: countUnique(col.Name, rows),
		})
	}

	if len(numeric) > 0 {
		measure := numeric[0]
		for i, col := range text {
			if i == maxCategoryCharts {
				break
			}
			report.Charts = append(report.Charts, categoryChart(col, measure, rows))
		}
		if len(dates) > 0 {
			report.Charts = append(report.Charts, trendChart(dates[0], measure, rows))
		}
	}

	for i := 1; i < len(numeric) && i <= maxDistributions; i++ {
		if chart, ok := distributionChart(numeric[i], rows); ok {
			report.Charts = append(report.Charts, chart)
		}
	}

	return report
}

func summarizeNumeric(col core.ColumnSchema, rows []core.TypedRow) NumericSummary {
	out := NumericSummary{Column: col.Name, OriginalName: col.OriginalName}

	values := numericValues(col.Name, rows)
	if len(values) == 0 {
		return out
	}

	sum, _ := stats.Sum(values)
	mean, _ := stats.Mean(values)
	lo, _ := stats.Min(values)
	hi, _ := stats.Max(values)

	out.Sum = round2(sum)
	out.Avg = round2(mean)
	out.Min = round2(lo)
	out.Max = round2(hi)
	return out
}

func countUnique(name string, rows []core.TypedRow) int {
	seen := make(map[string]struct{})
	for _, row := range rows {
		if v, ok := row[name]; ok && v != nil {
			seen[fmt.Sprint(v)] = struct{}{}
		}
	}
	return len(seen)
}

// group is a per-key aggregate of a numeric measure.
type group struct {
	key   string
	sum   float64
	count int
}

// groupBy sums measure per distinct key, skipping rows whose key is null.
// Groups come back sorted by key; count covers non-null measures only.
func groupBy(key, measure string, rows []core.TypedRow) []group {
	index := make(map[string]*group)
	for _, row := range rows {
		k, ok := row[key]
		if !ok || k == nil {
			continue
		}
		name := fmt.Sprint(k)
		g, ok := index[name]
		if !ok {
			g = &group{key: name}
			index[name] = g
		}
		if f, ok := toFloat(row[measure]); ok {
			g.sum += f
			g.count++
		}
	}

	groups := make([]group, 0, len(index))
	for _, g := range index {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

func categoryChart(category, measure core.ColumnSchema, rows []core.TypedRow) Chart {
	groups := groupBy(category.Name, measure.Name, rows)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].sum > groups[j].sum })
	if len(groups) > maxCategories {
		groups = groups[:maxCategories]
	}

	data := make([]map[string]any, len(groups))
	for i, g := range groups {
		data[i] = map[string]any{
			category.Name: g.key,
			"value":       round2(g.sum),
			"count":       g.count,
		}
	}

	return Chart{
		Type:        ChartBar,
		Title:       fmt.Sprintf("%s by %s", category.OriginalName, measure.OriginalName),
		CategoryKey: category.Name,
		ValueKey:    "value",
		Data:        data,
	}
}

func trendChart(date, measure core.ColumnSchema, rows []core.TypedRow) Chart {
	// Dates are stored as YYYY-MM-DD, so key order is chronological.
	groups := groupBy(date.Name, measure.Name, rows)
	if len(groups) > maxTrendPoints {
		step := (len(groups) + maxTrendPoints - 1) / maxTrendPoints
		sampled := make([]group, 0, maxTrendPoints)
		for i := 0; i < len(groups); i += step {
			sampled = append(sampled, groups[i])
		}
		groups = sampled
	}

	data := make([]map[string]any, len(groups))
	for i, g := range groups {
		data[i] = map[string]any{
			date.Name: g.key,
			"value":   round2(g.sum),
			"count":   g.count,
		}
	}

	return Chart{
		Type:  ChartLine,
		Title: fmt.Sprintf("%s over %s", measure.OriginalName, date.OriginalName),
		XKey:  date.Name,
		YKey:  "value",
		Data:  data,
	}
}

// distributionChart bins a numeric column into at most ten equal-width
// right-closed intervals. Empty bins are kept.
func distributionChart(col core.ColumnSchema, rows []core.TypedRow) (Chart, bool) {
	values := numericValues(col.Name, rows)
	if len(values) == 0 {
		return Chart{}, false
	}

	lo, _ := stats.Min(values)
	hi, _ := stats.Max(values)

	unique := make(map[float64]struct{}, len(values))
	for _, v := range values {
		unique[v] = struct{}{}
	}
	bins := min(maxDistributionBins, len(unique))

	edges := binEdges(lo, hi, bins)
	counts := make([]int, bins)
	for _, v := range values {
		// First edge sits just below lo, so every value lands in a bin.
		i := sort.SearchFloat64s(edges[1:], v)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}

	data := make([]map[string]any, bins)
	for i := range counts {
		data[i] = map[string]any{
			"range": fmt.Sprintf("(%s, %s]", formatEdge(edges[i]), formatEdge(edges[i+1])),
			"count": counts[i],
		}
	}

	return Chart{
		Type:        ChartBar,
		Title:       col.OriginalName + " Distribution",
		CategoryKey: "range",
		ValueKey:    "count",
		Data:        data,
	}, true
}

// binEdges returns bins+1 ascending edges covering [lo, hi]. The lowest edge
// is pulled down by 0.1% of the range so lo itself falls in the first
// right-closed bin. A zero range is widened by 0.1% on each side.
func binEdges(lo, hi float64, bins int) []float64 {
	if lo == hi {
		pad := math.Abs(lo) * 0.001
		if pad == 0 {
			pad = 0.001
		}
		lo, hi = lo-pad, hi+pad
	}

	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi
	edges[0] -= (hi - lo) * 0.001
	return edges
}

func formatEdge(f float64) string {
	r, err := stats.Round(f, 3)
	if err != nil {
		r = f
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func numericValues(name string, rows []core.TypedRow) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if f, ok := toFloat(row[name]); ok {
			values = append(values, f)
		}
	}
	return values
}

// toFloat reads a stored numeric cell. Stored rows hold float64 (or null);
// anything else is coerced the way the cleaner reads numbers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		return core.CleanNumeric(n)
	default:
		return 0, false
	}
}

func round2(f float64) float64 {
	r, err := stats.Round(f, 2)
	if err != nil {
		return 0
	}
	return r
}
