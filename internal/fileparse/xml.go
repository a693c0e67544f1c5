package fileparse

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/insuranceops/commission-processor/internal/models"
)

type xmlNode struct {
	XMLName xml.Name
	Content string    `xml:",chardata"`
	Nodes   []xmlNode `xml:",any"`
}

// ParseXML reads an XML statement. Repeated children of the document root
// are treated as rows; their child elements become columns, with one level
// of nesting flattened as parent_child.
func ParseXML(path string) (*ParsedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse XML %q: %w", path, err)
	}

	var columns []string
	index := map[string]int{}
	addColumn := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(columns)
		columns = append(columns, name)
		return len(columns) - 1
	}

	var rows []map[string]string
	for _, record := range root.Nodes {
		row := map[string]string{}
		for _, el := range record.Nodes {
			if len(el.Nodes) > 0 {
				for _, sub := range el.Nodes {
					key := el.XMLName.Local + "_" + sub.XMLName.Local
					addColumn(key)
					row[key] = strings.TrimSpace(sub.Content)
				}
				continue
			}
			addColumn(el.XMLName.Local)
			row[el.XMLName.Local] = strings.TrimSpace(el.Content)
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, &models.ValidationError{Msg: fmt.Sprintf("no row elements found in %q", path)}
	}

	aligned := make([][]string, len(rows))
	for i, row := range rows {
		aligned[i] = make([]string, len(columns))
		for key, val := range row {
			aligned[i][index[key]] = val
		}
	}

	records := append([][]string{columns}, aligned...)
	return buildTable(records)
}
