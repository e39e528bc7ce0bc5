package core

// convert.go normalizes raw CSV cells into typed values.
//
// These functions handle the messy reality of exported CSV data:
//   - Currency symbols, units and thousands separators around numbers
//   - Many date spellings (ISO, US, day-first, month names, timestamps)
//   - Null cells and stray whitespace
//
// Nothing here returns an error. A value that cannot be converted becomes
// nil (numeric, date) or "" (text) and the row admission policy decides
// what to do with the row.
//
// Numeric cleaning is deliberately naive: every character other than a
// digit, '.' or '-' is dropped before parsing. "1.200,50" is therefore read
// as 1.2005, not 1200.50. Keep it that way unless the locale rules change.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	"github.com/jackc/pgx/v5/pgtype"
)

// DateFormat is the canonical output layout for date cells.
const DateFormat = "2006-01-02"

// Date layouts tried in order. US month-first layouts come before their
// day-first twins so that ambiguous values like 01/02/2025 read as Jan 2.
var (
	isoDateLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006/01/02 15:04:05", "2006-Jan-02",
		"20060102",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "1-2-2006", "1.2.2006",
		"1/2/2006 15:04:05", "1/2/2006 15:04", "1-2-2006 15:04:05",
		"2/1/2006", "2-1-2006", "2.1.2006",
		"2/1/2006 15:04:05", "2/1/2006 15:04",
	}
	monthNameLayouts = []string{
		"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "January 2 2006",
		"2 Jan 2006", "2 January 2006", "2 Jan, 2006", "2 January, 2006",
		"2-Jan-2006", "2-Jan-06", "Jan-2-2006",
		"Mon, Jan 2, 2006", "Monday, January 2, 2006", "Mon, 2 Jan 2006",
		"Mon Jan 2 2006", "Mon, 02 Jan 2006 15:04:05 MST", "Mon Jan 2 15:04:05 2006",
		"Jan 2, 2006 15:04", "January 2, 2006 15:04:05",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "1-2-06", "1.2.06", "2/1/06", "2-1-06", "2.1.06",
	}

	allDateLayouts = concatLayouts(isoDateLayouts, fourDigitYearLayouts, monthNameLayouts, twoDigitYearLayouts)
)

// ordinalSuffix matches day ordinals like "3rd" or "21st".
var ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)

func concatLayouts(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// numericResidue keeps only digits, '.' and '-' from s.
// Thousands separators, currency symbols, units and letters all go.
func numericResidue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanNumeric extracts a number from a messy string.
//
//	CleanNumeric("$1,200.00") // 1200, true
//	CleanNumeric("USD 500")   // 500, true
//	CleanNumeric("Free")      // 0, false
func CleanNumeric(s string) (float64, bool) {
	residue := numericResidue(s)
	if residue == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(residue, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate parses s permissively into a calendar date.
// Accepts '/', '-', '.' and space separators, month names and common
// timestamp forms. Values without any digit are never dates.
func ParseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || !strings.ContainsFunc(s, unicode.IsDigit) {
		return time.Time{}, false
	}
	s = ordinalSuffix.ReplaceAllString(s, "$1")

	for _, layout := range allDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return checkYear(t)
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return checkYear(t)
}

// checkYear rejects dates that cannot be written as YYYY-MM-DD.
func checkYear(t time.Time) (time.Time, bool) {
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// CleanDate normalizes a date string to YYYY-MM-DD.
// Blank or unparsable input returns false. CleanDate is idempotent:
// cleaning its own output returns the same string.
func CleanDate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return t.Format(DateFormat), true
}

// CleanText trims surrounding whitespace. Null becomes "".
// Case, inner whitespace and special characters are kept verbatim.
func CleanText(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return strings.TrimSpace(v.String)
}

// Normalize converts a raw value to the canonical value for dtype.
//
// raw may be nil, a string, a pgtype.Text or a Go number. The result is a
// float64 or nil for numeric columns, a YYYY-MM-DD string or nil for date
// columns and a string for text columns.
func Normalize(raw any, dtype DType) any {
	switch dtype {
	case DTypeNumeric:
		if f, ok := toNumber(raw); ok {
			return f
		}
		return nil

	case DTypeDate:
		s, ok := asString(raw)
		if !ok || strings.TrimSpace(s) == "" {
			return nil
		}
		if d, ok := CleanDate(s); ok {
			return d
		}
		return nil

	default:
		s, ok := asString(raw)
		if !ok {
			return ""
		}
		return strings.TrimSpace(s)
	}
}

// toNumber passes finite numbers through and cleans strings.
func toNumber(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		return CleanNumeric(v)
	case pgtype.Text:
		if !v.Valid {
			return 0, false
		}
		return CleanNumeric(v.String)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asString renders raw as a string. Null-like values report false.
func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case pgtype.Text:
		return v.String, v.Valid
	case float64:
		if math.IsNaN(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// isEmptyValue reports whether a normalized value counts as missing.
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}
