// Package export writes normalized rows out as downloadable artifacts.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/insuranceops/commission-processor/internal/models"
	"github.com/insuranceops/commission-processor/internal/transform"
)

// Result describes one generated export artifact.
type Result struct {
	Kind           models.OutputKind `json:"kind,omitempty"`
	Filename       string            `json:"export_filename"`
	RowCount       int               `json:"row_count"`
	MissingLookups []string          `json:"missing_lookups"`
	Error          string            `json:"error,omitempty"`
}

// Generator writes export files into Dir. Format selects the artifact
// type: "csv" (default) or "xlsx".
type Generator struct {
	Dir    string
	Format string
}

// GenerateMapped applies a confirmed field mapping and writes the template
// rows. Unmapped fields export as empty columns.
func (g *Generator) GenerateMapped(carrier, savedName string, tmpl models.Template, mapping models.FieldMapping, src models.Table) (*Result, error) {
	out := models.Table{Columns: tmpl.Fields}
	for i := range src.Rows {
		row := make([]string, len(tmpl.Fields))
		for j, field := range tmpl.Fields {
			if source := mapping[field]; source != "" {
				row[j] = src.Cell(i, source)
			}
		}
		out.Rows = append(out.Rows, row)
	}

	filename := g.filename(carrier, savedName, "")
	if err := g.write(filename, out); err != nil {
		return nil, err
	}
	return &Result{Filename: filename, RowCount: len(out.Rows), MissingLookups: []string{}}, nil
}

// GenerateTransformed runs the carrier transformer for one output view and
// writes the result.
func (g *Generator) GenerateTransformed(tr transform.Transformer, spec models.OutputSpec, carrier, savedName string, src models.Table) (*Result, error) {
	out, warnings, err := tr.Transform(spec.Kind, src)
	if err != nil {
		return nil, err
	}
	if warnings == nil {
		warnings = []string{}
	}

	filename := g.filename(carrier, savedName, string(spec.Kind))
	if err := g.write(filename, out); err != nil {
		return nil, err
	}
	return &Result{Kind: spec.Kind, Filename: filename, RowCount: len(out.Rows), MissingLookups: warnings}, nil
}

// GenerateAll produces every requested output view. Views are independent
// artifacts, so they are generated in parallel; the returned slice
// preserves the input order, with per-view failures reported in place.
func (g *Generator) GenerateAll(tr transform.Transformer, specs []models.OutputSpec, carrier, savedName string, src models.Table) []Result {
	results := make([]Result, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec models.OutputSpec) {
			defer wg.Done()
			r, err := g.GenerateTransformed(tr, spec, carrier, savedName, src)
			if err != nil {
				results[i] = Result{Kind: spec.Kind, MissingLookups: []string{}, Error: err.Error()}
				return
			}
			results[i] = *r
		}(i, spec)
	}
	wg.Wait()

	return results
}

func (g *Generator) filename(carrier, savedName, kind string) string {
	base := sanitize(carrier) + "_" + strings.ReplaceAll(sanitize(savedName), ".", "_")
	if kind != "" {
		base += "_" + kind
	}
	return base + "_export." + g.ext()
}

func (g *Generator) ext() string {
	if strings.EqualFold(g.Format, "xlsx") {
		return "xlsx"
	}
	return "csv"
}

func (g *Generator) write(filename string, table models.Table) error {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(g.Dir, filename)
	if g.ext() == "xlsx" {
		return writeXLSX(path, table)
	}
	return writeCSVFile(path, table)
}

func writeCSVFile(path string, table models.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()
	return writeCSV(f, table)
}

func writeCSV(out io.Writer, table models.Table) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeXLSX(path string, table models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := toAnySlice(table.Columns)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write XLSX header: %w", err)
	}
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := toAnySlice(row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write XLSX row %d: %w", i+1, err)
		}
	}
	return f.SaveAs(path)
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// sanitize strips path metacharacters from filename components.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		case ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
