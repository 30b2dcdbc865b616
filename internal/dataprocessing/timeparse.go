package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tabviz/internal/dataset"
)

// timestampLayouts are tried in order; the first layout that parses every
// non-missing value of a column wins
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02.01.2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"20060102",
}

var errNoTimestampLayout = errors.New("no common timestamp layout")

// ParseTimestamps converts a column to a date column. All non-missing values
// must parse with one shared layout, otherwise an error is returned and the
// input is left as is.
func ParseTimestamps(col *dataset.Column) (*dataset.Column, error) {
	if col.Kind == dataset.Date {
		return col, nil
	}

	raw := make([]string, col.Len())
	for i := range raw {
		if col.Valid[i] {
			raw[i] = strings.TrimSpace(col.Label(i))
		}
	}

	for _, layout := range timestampLayouts {
		times, ok := parseAll(raw, col.Valid, layout)
		if ok {
			return dataset.NewDate(col.Name, times, col.Valid), nil
		}
	}

	// report the first offending value
	for i, s := range raw {
		if col.Valid[i] {
			return nil, fmt.Errorf("%w: cannot parse %q", errNoTimestampLayout, s)
		}
	}
	return nil, errNoTimestampLayout
}

func parseAll(raw []string, valid []bool, layout string) ([]time.Time, bool) {
	times := make([]time.Time, len(raw))
	for i, s := range raw {
		if !valid[i] {
			continue
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return nil, false
		}
		times[i] = t
	}
	return times, true
}
