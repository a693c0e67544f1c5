package fileparse

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/insuranceops/commission-processor/internal/models"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCSV_SingleHeader(t *testing.T) {
	path := writeTemp(t, "statement.csv",
		"Policy #,First,Last,Prem Amt\nA100,Jane,Doe,120.50\nA101,John,Roe,99.00\n")

	pf, err := ParseCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCols := []string{"Policy #", "First", "Last", "Prem Amt"}
	if len(pf.Columns) != len(wantCols) {
		t.Fatalf("columns: got %v, want %v", pf.Columns, wantCols)
	}
	for i, c := range wantCols {
		if pf.Columns[i] != c {
			t.Errorf("columns[%d]: got %q, want %q", i, pf.Columns[i], c)
		}
	}

	if pf.RowCount != 2 {
		t.Fatalf("rows: got %d, want 2", pf.RowCount)
	}
	if got := pf.Cell(0, "Prem Amt"); got != "120.50" {
		t.Errorf("cell(0, Prem Amt): got %q, want %q", got, "120.50")
	}
	if len(pf.Preview) != 2 {
		t.Errorf("preview: got %d rows, want 2", len(pf.Preview))
	}
}

func TestParseCSV_SplitHeader(t *testing.T) {
	// Manhattan Life style: a few labels on row one, the rest on row two.
	path := writeTemp(t, "split.csv",
		`Bill Ctrl/, , , , ,Advance
Group No.,Owner Name,Payment Date,Premium,Commission,Repay
G100,SMITH JOHN,1/15/2024,85.00,12.75,0.00
`)

	pf, err := ParseCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Group No.", "Owner Name", "Payment Date", "Premium", "Commission", "Repay"}
	for i, c := range want {
		if pf.Columns[i] != c {
			t.Errorf("columns[%d]: got %q, want %q", i, pf.Columns[i], c)
		}
	}
	if pf.RowCount != 1 {
		t.Fatalf("rows: got %d, want 1", pf.RowCount)
	}
	if got := pf.Cell(0, "Owner Name"); got != "SMITH JOHN" {
		t.Errorf("owner name: got %q", got)
	}
}

func TestParseCSV_Windows1252Fallback(t *testing.T) {
	// 0xE9 is é in Windows-1252 and invalid as a standalone UTF-8 byte.
	path := writeTemp(t, "legacy.csv", "Name,Premium\nRen\xe9e,50.00\n")

	pf, err := ParseCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pf.Cell(0, "Name"); got != "Renée" {
		t.Errorf("name: got %q, want %q", got, "Renée")
	}
}

func TestParseCSV_DuplicateColumnsRenamed(t *testing.T) {
	path := writeTemp(t, "dupes.csv", "Note,Note,Note\na,b,c\n")

	pf, err := ParseCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Note", "Note_1", "Note_2"}
	for i, c := range want {
		if pf.Columns[i] != c {
			t.Errorf("columns[%d]: got %q, want %q", i, pf.Columns[i], c)
		}
	}
}

func TestParseCSV_EmptyFileRejected(t *testing.T) {
	path := writeTemp(t, "empty.csv", "")

	_, err := ParseCSV(path)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseXML_RepeatedRecords(t *testing.T) {
	path := writeTemp(t, "statement.xml", `<?xml version="1.0"?>
<statement>
  <record>
    <PolicyNumber>A100</PolicyNumber>
    <Premium>120.50</Premium>
    <Insured><First>Jane</First><Last>Doe</Last></Insured>
  </record>
  <record>
    <PolicyNumber>A101</PolicyNumber>
    <Premium>99.00</Premium>
    <Insured><First>John</First><Last>Roe</Last></Insured>
  </record>
</statement>`)

	pf, err := ParseXML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pf.RowCount != 2 {
		t.Fatalf("rows: got %d, want 2", pf.RowCount)
	}
	if got := pf.Cell(1, "PolicyNumber"); got != "A101" {
		t.Errorf("policy: got %q, want A101", got)
	}
	if got := pf.Cell(0, "Insured_First"); got != "Jane" {
		t.Errorf("nested field: got %q, want Jane", got)
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "statement.pdf", "%PDF-1.4")

	_, err := Parse(path)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParse_LegacyXLSIsRejected(t *testing.T) {
	// Binary XLS is not a zip container; excelize cannot open it, so it
	// must fail up front with a clear message, not an opaque read error.
	path := writeTemp(t, "statement.xls", "\xd0\xcf\x11\xe0old binary workbook")

	_, err := Parse(path)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), ".xlsx") {
		t.Errorf("error should point at the supported formats, got %q", verr.Error())
	}
}
