package datasource

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"tabviz/internal/dataset"
)

// parseXLSX reads a worksheet where the first row is the header
func parseXLSX(r io.Reader, sheet string) (*dataset.Frame, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var rows [][]string
	if sheet != "" {
		rows, err = f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
	} else {
		// First sheet with any content
		for _, name := range f.GetSheetList() {
			if candidate, readErr := f.GetRows(name); readErr == nil && len(candidate) > 0 {
				rows = candidate
				break
			}
		}
	}
	if len(rows) == 0 {
		return nil, errors.New("workbook has no rows")
	}
	return dataset.FromRecords(rows[0], rows[1:])
}
