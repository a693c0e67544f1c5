package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseAmount converts strings like "1,234.56" or "-$1,234.56" to a float64.
// Empty and dash-only values parse as zero.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "") // non-breaking space

	// Accounting negatives: (123.45)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	if s == "" || s == "-" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Date layouts seen across carrier statements.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"1/2/06",
	"2 Jan 2006",
	"Jan 2, 2006",
	"20060102",
	"2006-01-02T15:04:05",
}

// reformatDate normalizes a date string to M/D/YYYY without leading zeros,
// the format the canonical templates expect. Unparseable values pass
// through unchanged so the operator can see and fix them in the export.
func reformatDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fmt.Sprintf("%d/%d/%d", t.Month(), t.Day(), t.Year())
		}
	}
	return s
}

// normalizeHeader prepares a header name for comparison.
func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// findColumn locates the source column for a canonical input. Variations
// are tried in order; each is checked for an exact match and then for
// case-insensitive containment before the next variation is considered.
// Returns "" when no variation is present.
func findColumn(columns []string, variations []string) string {
	trimmed := make([]string, len(columns))
	for i, c := range columns {
		trimmed[i] = strings.TrimSpace(c)
	}

	for _, v := range variations {
		for i, c := range trimmed {
			if c == v {
				return columns[i]
			}
		}
		lv := strings.ToLower(v)
		for i, c := range trimmed {
			if strings.Contains(strings.ToLower(c), lv) {
				return columns[i]
			}
		}
	}
	return ""
}
