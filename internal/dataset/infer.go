package dataset

import (
	"strconv"
	"strings"
)

// missingTokens are the cell values read as missing on load
var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"null": {},
	"NULL": {},
	"None": {},
	"#N/A": {},
	"<NA>": {},
}

// IsMissingToken reports whether a raw cell denotes a missing value
func IsMissingToken(s string) bool {
	_, ok := missingTokens[strings.TrimSpace(s)]
	return ok
}

// FromRecords builds a frame from a header and raw string rows. Short rows
// are padded with missing cells and extra cells are ignored. A column is
// numeric when every non-missing cell parses as a float, otherwise
// categorical.
func FromRecords(header []string, rows [][]string) (*Frame, error) {
	cols := make([]*Column, len(header))
	for j, name := range header {
		raw := make([]string, len(rows))
		valid := make([]bool, len(rows))
		for i, row := range rows {
			if j < len(row) && !IsMissingToken(row[j]) {
				raw[i] = row[j]
				valid[i] = true
			}
		}
		cols[j] = inferColumn(uniqueName(name, j, header), raw, valid)
	}
	f, err := NewFrame(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		f.rows = len(rows)
	}
	return f, nil
}

func uniqueName(name string, j int, header []string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Unnamed: " + strconv.Itoa(j)
	}
	n := 0
	for k := 0; k < j; k++ {
		if strings.TrimSpace(header[k]) == name {
			n++
		}
	}
	if n > 0 {
		return name + "." + strconv.Itoa(n)
	}
	return name
}

func inferColumn(name string, raw []string, valid []bool) *Column {
	numbers := make([]float64, len(raw))
	for i, s := range raw {
		if !valid[i] {
			continue
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return NewCategorical(name, raw, valid)
		}
		numbers[i] = x
	}
	return NewNumeric(name, numbers, valid)
}
