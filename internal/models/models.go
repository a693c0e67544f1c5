package models

import (
	"fmt"
	"time"
)

// Fingerprint is a stored column-layout signature for a carrier, kept so
// repeat uploads of the same statement format are recognized without
// operator input.
type Fingerprint struct {
	Signature string   `json:"signature"`
	Columns   []string `json:"columns"`
}

// CarrierProfile describes one known carrier: its declared file type, the
// layouts previously confirmed for it, and the transformer registered for
// it, if any. Profiles are created on first confirmation and accumulate
// fingerprints as layout variants appear.
type CarrierProfile struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	FileType     OutputKind    `json:"file_type"`
	Transformer  string        `json:"transformer,omitempty"`
	FileCount    int           `json:"file_count"`
	Fingerprints []Fingerprint `json:"fingerprints"`

	// FilenamePatterns are date-stripped upload names seen for this
	// carrier; a later upload whose name contains one is recognized even
	// when its column layout has changed.
	FilenamePatterns []string `json:"filename_patterns,omitempty"`
}

// HasTransformer reports whether a carrier-specific transformer is
// registered for this profile.
func (p *CarrierProfile) HasTransformer() bool {
	return p != nil && p.Transformer != ""
}

// FieldMapping maps canonical template fields to source column names.
// A missing or empty value means the field is unmapped and exports as an
// empty column.
type FieldMapping map[string]string

// Validate checks that every key belongs to the template and every non-empty
// value names a column present in the source file.
func (m FieldMapping) Validate(tmpl Template, sourceColumns []string) error {
	cols := make(map[string]bool, len(sourceColumns))
	for _, c := range sourceColumns {
		cols[c] = true
	}
	for field, source := range m {
		if !tmpl.HasField(field) {
			return &ValidationError{Msg: fmt.Sprintf("unknown template field %q", field)}
		}
		if source != "" && !cols[source] {
			return &ValidationError{Msg: fmt.Sprintf("field %q mapped to %q, which is not a source column", field, source)}
		}
	}
	return nil
}

// OutputSpec is a request to produce one normalized output view of the
// current file.
type OutputSpec struct {
	Kind     OutputKind `json:"kind"`
	Name     string     `json:"name"`
	Template string     `json:"template"`
}

// Table is a parsed source file: ordered column names plus rows aligned to
// those columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the value of the named column in the given row, or "" if the
// column is absent or the row is short.
func (t Table) Cell(row int, column string) string {
	for i, c := range t.Columns {
		if c == column {
			if row < len(t.Rows) && i < len(t.Rows[row]) {
				return t.Rows[row][i]
			}
			return ""
		}
	}
	return ""
}

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// ImportLog records one export run for auditing.
type ImportLog struct {
	ID            int64      `json:"id"`
	BatchID       string     `json:"batch_id"`
	Carrier       string     `json:"carrier"`
	FileName      string     `json:"file_name"`
	FileType      OutputKind `json:"file_type"`
	Source        string     `json:"source"` // "manual", "api", "cli"
	RowsProcessed int        `json:"rows_processed"`
	RowsExported  int        `json:"rows_exported"`
	Status        string     `json:"status"` // "completed", "failed"
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   time.Time  `json:"completed_at"`
}
