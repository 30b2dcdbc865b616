package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"tabviz/internal/dataset"
	"tabviz/internal/stats"
)

// ColumnInfo is one line of the frame info table
type ColumnInfo struct {
	Name     string `json:"name"`
	NonNull  int    `json:"non_null"`
	DType    string `json:"dtype"`
	Semantic string `json:"semantic"`
}

// ColumnSummary holds descriptive statistics for one column. Numeric fields
// are nil for non-numeric columns or when undefined.
type ColumnSummary struct {
	Column string   `json:"column"`
	DType  string   `json:"dtype"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean,omitempty"`
	Std    *float64 `json:"std,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Q25    *float64 `json:"25%,omitempty"`
	Median *float64 `json:"50%,omitempty"`
	Q75    *float64 `json:"75%,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Unique *int     `json:"unique,omitempty"`
	Top    *string  `json:"top,omitempty"`
	Freq   *int     `json:"freq,omitempty"`
	First  *string  `json:"first,omitempty"`
	Last   *string  `json:"last,omitempty"`
}

// Profiler answers introspection queries about a frame
type Profiler struct {
	classifier  *ColumnClassifier
	logger      *slog.Logger
	parallelism int
}

// NewProfiler creates a profiler. The classifier reports semantic types.
func NewProfiler(classifier *ColumnClassifier, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewColumnClassifier(nil, nil)
	}
	return &Profiler{
		classifier:  classifier,
		logger:      logger.With("component", "profiler"),
		parallelism: 4,
	}
}

// DTypes returns the storage type label per column
func (p *Profiler) DTypes(f *dataset.Frame) map[string]string {
	out := make(map[string]string, f.NumColumns())
	for _, c := range f.Columns() {
		out[c.Name] = c.Kind.StorageType()
	}
	return out
}

// SemanticTypes returns date, numeric or categorical per column
func (p *Profiler) SemanticTypes(f *dataset.Frame) map[string]string {
	kinds := p.classifier.ClassifyFrame(f)
	out := make(map[string]string, len(kinds))
	for name, k := range kinds {
		out[name] = k.String()
	}
	return out
}

// Info returns one row per column in frame order
func (p *Profiler) Info(f *dataset.Frame) []ColumnInfo {
	kinds := p.classifier.ClassifyFrame(f)
	out := make([]ColumnInfo, 0, f.NumColumns())
	for _, c := range f.Columns() {
		out = append(out, ColumnInfo{
			Name:     c.Name,
			NonNull:  c.Len() - c.NullCount(),
			DType:    c.Kind.StorageType(),
			Semantic: kinds[c.Name].String(),
		})
	}
	return out
}

// NullPercentages returns the percent of missing cells per column, rounded
// to two decimals
func (p *Profiler) NullPercentages(f *dataset.Frame) map[string]float64 {
	out := make(map[string]float64, f.NumColumns())
	for _, c := range f.Columns() {
		out[c.Name] = round(c.NullRatio()*100, 2)
	}
	return out
}

// UniqueCounts returns the number of distinct non-missing values per column
func (p *Profiler) UniqueCounts(f *dataset.Frame) map[string]int {
	out := make(map[string]int, f.NumColumns())
	for _, c := range f.Columns() {
		out[c.Name] = c.DistinctCount()
	}
	return out
}

// UniqueValues returns up to n distinct values per column in first-seen order
func (p *Profiler) UniqueValues(f *dataset.Frame, n int) map[string][]any {
	out := make(map[string][]any, f.NumColumns())
	for _, c := range f.Columns() {
		seen := make(map[string]struct{})
		values := []any{}
		for i := 0; i < c.Len() && len(values) < n; i++ {
			if c.IsNull(i) {
				continue
			}
			l := c.Label(i)
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			values = append(values, c.Value(i))
		}
		out[c.Name] = values
	}
	return out
}

// Describe computes summary statistics for every column. Columns are
// processed concurrently; the result is in frame order.
func (p *Profiler) Describe(ctx context.Context, f *dataset.Frame) ([]ColumnSummary, error) {
	cols := f.Columns()
	out := make([]ColumnSummary, len(cols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	for i, c := range cols {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = summarize(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.WarnContext(ctx, "describe aborted", "error", err)
		return nil, err
	}
	return out, nil
}

func summarize(c *dataset.Column) ColumnSummary {
	s := ColumnSummary{
		Column: c.Name,
		DType:  c.Kind.StorageType(),
		Count:  c.Len() - c.NullCount(),
	}

	switch c.Kind {
	case dataset.Numeric:
		values := c.ValidNumbers()
		if len(values) == 0 {
			return s
		}
		sorted := stats.Sorted(values)
		s.Mean = finite(stats.Mean(values))
		s.Std = finite(stats.StdDev(values))
		s.Min = finite(sorted[0])
		s.Q25 = finite(stats.Quantile(sorted, 0.25))
		s.Median = finite(stats.Quantile(sorted, 0.5))
		s.Q75 = finite(stats.Quantile(sorted, 0.75))
		s.Max = finite(sorted[len(sorted)-1])
	case dataset.Date:
		var times []int
		for i := range c.Times {
			if c.Valid[i] {
				times = append(times, i)
			}
		}
		if len(times) == 0 {
			return s
		}
		sort.SliceStable(times, func(a, b int) bool { return c.Times[times[a]].Before(c.Times[times[b]]) })
		first, last := c.Label(times[0]), c.Label(times[len(times)-1])
		unique := c.DistinctCount()
		s.First, s.Last, s.Unique = &first, &last, &unique
	default:
		top, freq, unique := mode(c)
		if unique == 0 {
			return s
		}
		s.Unique, s.Top, s.Freq = &unique, &top, &freq
	}
	return s
}

// mode returns the most frequent label, ties go to the first seen
func mode(c *dataset.Column) (string, int, int) {
	counts := make(map[string]int)
	var order []string
	for i := range c.Valid {
		if c.IsNull(i) {
			continue
		}
		l := c.Label(i)
		if _, ok := counts[l]; !ok {
			order = append(order, l)
		}
		counts[l]++
	}
	top, freq := "", 0
	for _, l := range order {
		if counts[l] > freq {
			top, freq = l, counts[l]
		}
	}
	return top, freq, len(order)
}

func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}
