// Package fileparse turns uploaded statement files (CSV, XLSX, XML) into a
// uniform column/row table for the reconciliation pipeline.
package fileparse

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/insuranceops/commission-processor/internal/models"
)

// PreviewRows is how many sample rows an upload response carries.
const PreviewRows = 10

// ParsedFile is the parse result handed to the reconciliation session.
type ParsedFile struct {
	models.Table
	RowCount int
	Preview  []map[string]string
}

// Parse reads the file at path, dispatching on extension.
func Parse(path string) (*ParsedFile, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ParseCSV(path)
	case ".xlsx":
		return ParseXLSX(path)
	case ".xls":
		// Legacy binary XLS is not a zip container and cannot be read
		// as XLSX.
		return nil, &models.ValidationError{Msg: "legacy .xls format is not supported; re-save the statement as .xlsx or .csv"}
	case ".xml":
		return ParseXML(path)
	default:
		return nil, &models.ValidationError{Msg: fmt.Sprintf("unsupported file format %q (allowed: csv, xlsx, xml)", ext)}
	}
}

// buildTable converts raw records into a table: header detection, duplicate
// column renaming, row padding, preview sampling.
func buildTable(records [][]string) (*ParsedFile, error) {
	header, data := splitHeader(records)
	if len(header) == 0 {
		return nil, &models.ValidationError{Msg: "file has no columns"}
	}

	columns := dedupeColumns(header)

	rows := make([][]string, 0, len(data))
	for _, rec := range data {
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}

	pf := &ParsedFile{
		Table:    models.Table{Columns: columns, Rows: rows},
		RowCount: len(rows),
	}
	for i := 0; i < len(rows) && i < PreviewRows; i++ {
		sample := make(map[string]string, len(columns))
		for j, c := range columns {
			sample[c] = rows[i][j]
		}
		pf.Preview = append(pf.Preview, sample)
	}
	return pf, nil
}

// splitHeader returns the header row and the data rows. Some carriers split
// their header across the first two rows (a handful of labels on row one,
// the rest on row two); that shape is detected and the rows are merged.
func splitHeader(records [][]string) ([]string, [][]string) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) >= 2 && looksLikeSplitHeader(records[0], records[1]) {
		return mergeHeaderRows(records[0], records[1]), records[2:]
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return header, records[1:]
}

func looksLikeSplitHeader(first, second []string) bool {
	blanks := 0
	for _, v := range first {
		if strings.TrimSpace(v) == "" {
			blanks++
		}
	}
	if blanks < 3 {
		return false
	}
	// The second row must read like labels, not data.
	checked := 0
	for _, v := range second {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if isNumericish(v) {
			return false
		}
		checked++
		if checked >= 10 {
			break
		}
	}
	return checked > 0
}

func isNumericish(s string) bool {
	stripped := strings.NewReplacer(".", "", "-", "", "/", "", ",", "", "$", "").Replace(s)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mergeHeaderRows(first, second []string) []string {
	n := len(first)
	if len(second) > n {
		n = len(second)
	}
	merged := make([]string, n)
	for i := 0; i < n; i++ {
		var h1, h2 string
		if i < len(first) {
			h1 = strings.TrimSpace(first[i])
		}
		if i < len(second) {
			h2 = strings.TrimSpace(second[i])
		}
		switch {
		case h2 != "":
			merged[i] = h2
		case h1 != "":
			merged[i] = h1
		default:
			merged[i] = fmt.Sprintf("Column_%d", i)
		}
	}
	return merged
}

// dedupeColumns makes repeated header names unique ("Note", "Note_1", ...)
// so mappings stay unambiguous.
func dedupeColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			out[i] = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 0
			out[i] = h
		}
	}
	return out
}
