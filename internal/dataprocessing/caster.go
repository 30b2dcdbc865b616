package dataprocessing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tabviz/internal/dataset"
)

// ParseTargetKind maps a requested dtype name to a storage kind
func ParseTargetKind(name string) (dataset.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "numeric", "number", "float", "float32", "float64", "int", "int64":
		return dataset.Numeric, nil
	case "categorical", "category", "string", "str", "object", "text":
		return dataset.Categorical, nil
	case "date", "datetime", "datetime64", "datetime64[ns]", "timestamp":
		return dataset.Date, nil
	default:
		return 0, fmt.Errorf("unknown target type %q", name)
	}
}

// TypeCaster converts selected columns to another storage kind
type TypeCaster struct{}

// NewTypeCaster creates a caster
func NewTypeCaster() *TypeCaster {
	return &TypeCaster{}
}

// Cast applies the column to type mapping in sorted column order. Failures
// are logged and leave the column untouched.
func (tc *TypeCaster) Cast(frame *dataset.Frame, targets map[string]string) (*dataset.Frame, CleaningLog) {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)

	var log CleaningLog
	for _, name := range names {
		target := targets[name]
		col, ok := frame.Column(name)
		if !ok {
			log = append(log, LogEntry{Kind: LogColumnMissing, Column: name, Detail: target})
			continue
		}
		kind, err := ParseTargetKind(target)
		if err != nil {
			log = append(log, LogEntry{Kind: LogTypeCastFailed, Column: name, Detail: err.Error()})
			continue
		}
		converted, err := castColumn(col, kind, target)
		if err != nil {
			log = append(log, LogEntry{Kind: LogTypeCastFailed, Column: name, Detail: err.Error()})
			continue
		}
		frame = replaceOrKeep(frame, converted)
		log = append(log, LogEntry{Kind: LogTypeCast, Column: name, Detail: target})
	}
	return frame, log
}

func castColumn(col *dataset.Column, kind dataset.Kind, target string) (*dataset.Column, error) {
	switch kind {
	case dataset.Categorical:
		values := make([]string, col.Len())
		for i := range values {
			values[i] = col.Label(i)
		}
		return dataset.NewCategorical(col.Name, values, col.Valid), nil
	case dataset.Date:
		return ParseTimestamps(col)
	default:
		values := make([]float64, col.Len())
		isInt := strings.HasPrefix(strings.ToLower(target), "int")
		for i := range values {
			if !col.Valid[i] {
				continue
			}
			switch col.Kind {
			case dataset.Numeric:
				values[i] = col.Numbers[i]
			case dataset.Date:
				values[i] = float64(col.Times[i].UnixNano())
			default:
				x, err := strconv.ParseFloat(strings.TrimSpace(col.Strings[i]), 64)
				if err != nil {
					return nil, fmt.Errorf("value %q is not a number", col.Strings[i])
				}
				values[i] = x
			}
			if isInt && values[i] != float64(int64(values[i])) {
				return nil, fmt.Errorf("value %s is not an integer", dataset.FormatNumber(values[i]))
			}
		}
		if isInt && col.NullCount() > 0 {
			return nil, fmt.Errorf("cannot convert missing values to integer")
		}
		return dataset.NewNumeric(col.Name, values, col.Valid), nil
	}
}
