package dataprocessing

import (
	"fmt"
)

// LogKind classifies a cleaning log entry
type LogKind string

const (
	LogDateConverted        LogKind = "date_converted"
	LogDateConversionFailed LogKind = "date_conversion_failed"
	LogColumnsPruned        LogKind = "columns_pruned"
	LogColumnDroppedNulls   LogKind = "column_dropped_nulls"
	LogImputedMean          LogKind = "imputed_mean"
	LogImputedZero          LogKind = "imputed_zero"
	LogRowsDropped          LogKind = "rows_dropped"
	LogImputedFill          LogKind = "imputed_fill"
	LogResidualNulls        LogKind = "residual_nulls"
	LogTypeCast             LogKind = "type_cast"
	LogTypeCastFailed       LogKind = "type_cast_failed"
	LogColumnMissing        LogKind = "column_missing"
)

// LogEntry records one action taken while cleaning
type LogEntry struct {
	Kind    LogKind `json:"kind"`
	Column  string  `json:"column,omitempty"`
	Detail  string  `json:"detail,omitempty"`
	Count   int     `json:"count,omitempty"`
	Percent float64 `json:"percent,omitempty"`
}

// IsWarning reports whether the entry records a non-fatal failure
func (e LogEntry) IsWarning() bool {
	switch e.Kind {
	case LogDateConversionFailed, LogTypeCastFailed, LogColumnMissing:
		return true
	}
	return false
}

// String renders the entry as a human readable line
func (e LogEntry) String() string {
	switch e.Kind {
	case LogDateConverted:
		return fmt.Sprintf("Column '%s' converted to datetime.", e.Column)
	case LogDateConversionFailed:
		return fmt.Sprintf("Could not convert column '%s' to datetime: %s", e.Column, e.Detail)
	case LogColumnsPruned:
		return fmt.Sprintf("Removed %d empty or constant columns.", e.Count)
	case LogColumnDroppedNulls:
		return fmt.Sprintf("Column '%s' dropped (%.1f%% nulls).", e.Column, e.Percent)
	case LogImputedMean:
		return fmt.Sprintf("Imputed %d nulls in '%s' with the mean (%s).", e.Count, e.Column, e.Detail)
	case LogImputedZero:
		return fmt.Sprintf("Imputed %d nulls in '%s' with 0.", e.Count, e.Column)
	case LogRowsDropped:
		return fmt.Sprintf("Dropped %d rows with nulls in '%s'.", e.Count, e.Column)
	case LogImputedFill:
		return fmt.Sprintf("Filled %d nulls in '%s' with '%s'.", e.Count, e.Column, e.Detail)
	case LogResidualNulls:
		return fmt.Sprintf("%d nulls remain after cleaning.", e.Count)
	case LogTypeCast:
		return fmt.Sprintf("Column '%s' converted to type %s.", e.Column, e.Detail)
	case LogTypeCastFailed:
		return fmt.Sprintf("Could not convert '%s': %s", e.Column, e.Detail)
	case LogColumnMissing:
		return fmt.Sprintf("Column '%s' does not exist, cannot convert to %s.", e.Column, e.Detail)
	default:
		return fmt.Sprintf("%s %s %s", e.Kind, e.Column, e.Detail)
	}
}

// CleaningLog is the ordered audit trail of a cleaning run
type CleaningLog []LogEntry

// Messages returns the human readable lines in order
func (l CleaningLog) Messages() []string {
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.String()
	}
	return out
}

// Count returns the number of entries of a kind
func (l CleaningLog) Count(kind LogKind) int {
	n := 0
	for _, e := range l {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Imputations returns the number of imputation or row-drop entries
func (l CleaningLog) Imputations() int {
	return l.Count(LogImputedMean) + l.Count(LogImputedZero) + l.Count(LogImputedFill) + l.Count(LogRowsDropped)
}
