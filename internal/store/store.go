// Package store persists carrier profiles and layout fingerprints so repeat
// statement formats are recognized without operator input.
package store

import (
	"regexp"
	"sort"
	"strings"

	"github.com/insuranceops/commission-processor/internal/models"
)

// DefaultThreshold is the minimum column-set overlap for fuzzy layout
// recognition. 1.0 restores exact-fingerprint-only recognition.
const DefaultThreshold = 0.80

// Store is the carrier recognition store. Lookups return (nil, nil) on a
// miss; a non-nil error always means the backing store itself failed.
type Store interface {
	// LookupByLayout finds a carrier for an incoming file, trying in
	// order: exact fingerprint match, stored filename pattern contained
	// in the upload name, column overlap within the threshold.
	LookupByLayout(columns []string, filename string) (*models.CarrierProfile, error)

	// LookupByName finds a carrier by name, case-insensitively.
	LookupByName(name string) (*models.CarrierProfile, error)

	// Register creates or updates a carrier profile with the given layout
	// and remembers the date-stripped upload name as a filename pattern.
	// It is idempotent for a repeated (name, fingerprint) pair and safe
	// under concurrent writers; the last writer wins on file type and
	// transformer.
	Register(name string, columns []string, filename string, fileType models.OutputKind, transformer string) (*models.CarrierProfile, error)

	// ListKnownNames returns all registered carrier names.
	ListKnownNames() ([]string, error)

	// LogImport records one export run.
	LogImport(log models.ImportLog) error

	// ImportHistory returns the most recent import logs, newest first.
	ImportHistory(limit int) ([]models.ImportLog, error)

	Close() error
}

// Fingerprint derives the layout signature for a column set: trimmed,
// lowercased names, sorted, joined by "|". Column order and casing do not
// affect recognition.
func Fingerprint(columns []string) string {
	normalized := make([]string, 0, len(columns))
	for _, c := range columns {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(c)))
	}
	sort.Strings(normalized)
	return strings.Join(normalized, "|")
}

var (
	isoDateRe = regexp.MustCompile(`\d{4}[-_]\d{2}[-_]\d{2}`)
	usDateRe  = regexp.MustCompile(`\d{2}[-_]\d{2}[-_]\d{4}`)
	extRe     = regexp.MustCompile(`(?i)\.(csv|xlsx?|xml)$`)
)

// FilenamePattern reduces an upload name to its recurring part: dates and
// the extension are stripped so "acme_commissions_2024-01-31.csv" and next
// month's file share the pattern "acme_commissions".
func FilenamePattern(filename string) string {
	p := isoDateRe.ReplaceAllString(filename, "")
	p = usDateRe.ReplaceAllString(p, "")
	p = extRe.ReplaceAllString(p, "")
	return strings.Trim(p, "_- ")
}

// matchesPattern reports whether a stored pattern occurs in the upload name.
func matchesPattern(pattern, filename string) bool {
	return pattern != "" && strings.Contains(strings.ToLower(filename), strings.ToLower(pattern))
}

// overlap measures how much two column sets agree: shared names divided by
// the larger set's size.
func overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, c := range a {
		set[strings.ToLower(strings.TrimSpace(c))] = true
	}
	other := make(map[string]bool, len(b))
	for _, c := range b {
		other[strings.ToLower(strings.TrimSpace(c))] = true
	}
	shared := 0
	for c := range other {
		if set[c] {
			shared++
		}
	}
	larger := len(set)
	if len(other) > larger {
		larger = len(other)
	}
	return float64(shared) / float64(larger)
}
