package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-playground/validator/v10"

	"tabviz/internal/dataset"
	"tabviz/internal/stats"
)

// NumericStrategy selects how missing numeric cells are handled
type NumericStrategy string

const (
	NumericMean NumericStrategy = "mean"
	NumericZero NumericStrategy = "zero"
	NumericDrop NumericStrategy = "drop"
	NumericNone NumericStrategy = "none"
)

// CategoricalStrategy selects how missing categorical cells are handled
type CategoricalStrategy string

const (
	CategoricalFill CategoricalStrategy = "fill"
	CategoricalDrop CategoricalStrategy = "drop"
	CategoricalNone CategoricalStrategy = "none"
)

// CleaningConfig drives the cleaning pipeline
type CleaningConfig struct {
	NumericStrategy     NumericStrategy     `json:"numeric_strategy" validate:"required,oneof=mean zero drop none"`
	CategoricalStrategy CategoricalStrategy `json:"categorical_strategy" validate:"required,oneof=fill drop none"`
	NullThreshold       float64             `json:"null_threshold" validate:"gte=0,lte=1"`
	DropEmptyOrConstant bool                `json:"drop_empty_or_constant"`
	DatePatterns        []string            `json:"date_patterns"`
	DateColumns         []string            `json:"date_columns"`
	FillLabel           string              `json:"fill_label" validate:"required"`
}

// DefaultCleaningConfig returns the configuration used when none is given
func DefaultCleaningConfig() CleaningConfig {
	return CleaningConfig{
		NumericStrategy:     NumericMean,
		CategoricalStrategy: CategoricalFill,
		NullThreshold:       0.7,
		DropEmptyOrConstant: true,
		DatePatterns:        []string{"date", "fecha", "Start_Time"},
		FillLabel:           "Unknown",
	}
}

var configValidator = validator.New()

// Validate checks strategies and threshold bounds
func (c CleaningConfig) Validate() error {
	return configValidator.Struct(c)
}

func (c CleaningConfig) clone() CleaningConfig {
	c.DatePatterns = append([]string(nil), c.DatePatterns...)
	c.DateColumns = append([]string(nil), c.DateColumns...)
	return c
}

// ErrNilFrame is returned when Clean is called without input
var ErrNilFrame = errors.New("no input frame")

// CleaningResult is the output of a cleaning run
type CleaningResult struct {
	Frame *dataset.Frame
	Log   CleaningLog
}

// Cleaner runs the cleaning pipeline. The configuration is copied at
// construction and never changes afterwards.
type Cleaner struct {
	cfg        CleaningConfig
	classifier *ColumnClassifier
	logger     *slog.Logger
}

// NewCleaner validates the configuration and creates a cleaner
func NewCleaner(cfg CleaningConfig, logger *slog.Logger) (*Cleaner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cleaning config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.clone()
	return &Cleaner{
		cfg:        cfg,
		classifier: NewColumnClassifier(cfg.DatePatterns, cfg.DateColumns),
		logger:     logger.With("component", "cleaner"),
	}, nil
}

// Config returns a copy of the configuration
func (c *Cleaner) Config() CleaningConfig {
	return c.cfg.clone()
}

// Classifier returns the classifier built from the date settings
func (c *Cleaner) Classifier() *ColumnClassifier {
	return c.classifier
}

// Clean applies, in order: date normalization, structural pruning,
// null-ratio elimination, imputation and the residual-null report. It never
// fails because of the data itself; problems become log entries.
func (c *Cleaner) Clean(ctx context.Context, raw *dataset.Frame) (*CleaningResult, error) {
	if raw == nil {
		return nil, ErrNilFrame
	}

	var log CleaningLog
	frame := c.normalizeDates(raw, &log)

	if c.cfg.DropEmptyOrConstant {
		frame = c.prune(frame, &log)
	}

	for _, name := range frame.Names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame = c.cleanColumn(frame, name, &log)
	}

	if residual := frame.NullCount(); residual > 0 {
		log = append(log, LogEntry{Kind: LogResidualNulls, Count: residual})
	}

	c.logger.DebugContext(ctx, "cleaning finished",
		"rows_in", raw.NumRows(),
		"rows_out", frame.NumRows(),
		"columns_in", raw.NumColumns(),
		"columns_out", frame.NumColumns(),
		"log_entries", len(log))

	return &CleaningResult{Frame: frame, Log: log}, nil
}

func (c *Cleaner) normalizeDates(frame *dataset.Frame, log *CleaningLog) *dataset.Frame {
	for _, col := range frame.Columns() {
		if col.Kind == dataset.Date || !c.classifier.IsDateCandidate(col.Name) {
			continue
		}
		parsed, err := ParseTimestamps(col)
		if err != nil {
			*log = append(*log, LogEntry{Kind: LogDateConversionFailed, Column: col.Name, Detail: err.Error()})
			continue
		}
		next, err := frame.Replace(col.Name, parsed)
		if err != nil {
			*log = append(*log, LogEntry{Kind: LogDateConversionFailed, Column: col.Name, Detail: err.Error()})
			continue
		}
		frame = next
		*log = append(*log, LogEntry{Kind: LogDateConverted, Column: col.Name})
	}
	return frame
}

// prune drops columns with fewer than two distinct non-null values
func (c *Cleaner) prune(frame *dataset.Frame, log *CleaningLog) *dataset.Frame {
	var pruned []string
	for _, col := range frame.Columns() {
		if col.DistinctCount() <= 1 {
			pruned = append(pruned, col.Name)
		}
	}
	if len(pruned) == 0 {
		return frame
	}
	*log = append(*log, LogEntry{Kind: LogColumnsPruned, Count: len(pruned)})
	return frame.Drop(pruned...)
}

func (c *Cleaner) cleanColumn(frame *dataset.Frame, name string, log *CleaningLog) *dataset.Frame {
	col, ok := frame.Column(name)
	if !ok {
		return frame
	}

	// ratio is taken on the current frame so earlier row drops count
	if ratio := col.NullRatio(); ratio > c.cfg.NullThreshold {
		*log = append(*log, LogEntry{Kind: LogColumnDroppedNulls, Column: name, Percent: round(ratio*100, 1)})
		return frame.Drop(name)
	}

	nulls := col.NullCount()
	if nulls == 0 {
		return frame
	}

	switch col.Kind {
	case dataset.Numeric:
		return c.imputeNumeric(frame, col, nulls, log)
	case dataset.Categorical:
		return c.imputeCategorical(frame, col, nulls, log)
	default:
		return frame
	}
}

func (c *Cleaner) imputeNumeric(frame *dataset.Frame, col *dataset.Column, nulls int, log *CleaningLog) *dataset.Frame {
	switch c.cfg.NumericStrategy {
	case NumericMean:
		values := col.ValidNumbers()
		if len(values) == 0 {
			return frame
		}
		mean := stats.Mean(values)
		*log = append(*log, LogEntry{Kind: LogImputedMean, Column: col.Name, Count: nulls, Detail: dataset.FormatNumber(round(mean, 4))})
		return replaceOrKeep(frame, fillNumbers(col, mean))
	case NumericZero:
		*log = append(*log, LogEntry{Kind: LogImputedZero, Column: col.Name, Count: nulls})
		return replaceOrKeep(frame, fillNumbers(col, 0))
	case NumericDrop:
		*log = append(*log, LogEntry{Kind: LogRowsDropped, Column: col.Name, Count: nulls})
		return frame.Filter(col.Valid)
	default:
		return frame
	}
}

func (c *Cleaner) imputeCategorical(frame *dataset.Frame, col *dataset.Column, nulls int, log *CleaningLog) *dataset.Frame {
	switch c.cfg.CategoricalStrategy {
	case CategoricalFill:
		*log = append(*log, LogEntry{Kind: LogImputedFill, Column: col.Name, Count: nulls, Detail: c.cfg.FillLabel})
		values := make([]string, col.Len())
		copy(values, col.Strings)
		for i, ok := range col.Valid {
			if !ok {
				values[i] = c.cfg.FillLabel
			}
		}
		return replaceOrKeep(frame, dataset.NewCategorical(col.Name, values, nil))
	case CategoricalDrop:
		*log = append(*log, LogEntry{Kind: LogRowsDropped, Column: col.Name, Count: nulls})
		return frame.Filter(col.Valid)
	default:
		return frame
	}
}

func fillNumbers(col *dataset.Column, v float64) *dataset.Column {
	values := make([]float64, col.Len())
	copy(values, col.Numbers)
	for i, ok := range col.Valid {
		if !ok {
			values[i] = v
		}
	}
	return dataset.NewNumeric(col.Name, values, nil)
}

func replaceOrKeep(frame *dataset.Frame, col *dataset.Column) *dataset.Frame {
	next, err := frame.Replace(col.Name, col)
	if err != nil {
		return frame
	}
	return next
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
