package fileparse

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first sheet of an Excel workbook.
func ParseXLSX(path string) (*ParsedFile, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %q has no sheets", path)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return buildTable(records)
}
