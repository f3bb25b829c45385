// Package sheet reads uploaded order spreadsheets and renders order exports.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for a workbook without worksheets
var ErrNoSheets = errors.New("spreadsheet has no sheets")

// Row is one data row of an uploaded sheet keyed by its column header
type Row struct {
	// Number is the 1-based row number as shown by spreadsheet programs
	Number int
	Values map[string]string
}

// Get returns the trimmed cell under header, or "" when the column is absent
func (r Row) Get(header string) string {
	return strings.TrimSpace(r.Values[header])
}

// Has reports whether the row carries a non-blank value under header
func (r Row) Has(header string) bool {
	return r.Get(header) != ""
}

// ReadRows reads the first worksheet. The first row holds the headers and
// rows without any value are skipped.
func ReadRows(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return []Row{}, nil
	}

	headers := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(cells)-1)
	for i, line := range cells[1:] {
		row := Row{Number: i + 2, Values: make(map[string]string, len(headers))}
		blank := true
		for j, value := range line {
			if j >= len(headers) || headers[j] == "" {
				continue
			}
			if strings.TrimSpace(value) != "" {
				blank = false
			}
			row.Values[headers[j]] = value
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
