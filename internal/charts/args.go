package charts

import (
	"tabviz/internal/dataset"
	"tabviz/internal/stats"
)

// Args is the typed argument bundle handed to a renderer. The concrete type
// is determined by the chart kind.
type Args interface {
	ChartKind() Kind
}

// Table is an aggregated X by series matrix. Values[s][c] is the value of
// series s at category c; Present[s][c] is false where no rows contributed.
type Table struct {
	Categories []string    `json:"categories"`
	Series     []string    `json:"series"`
	Values     [][]float64 `json:"values"`
	Present    [][]bool    `json:"present"`
}

// Total returns the sum of all present values
func (t Table) Total() float64 {
	sum := 0.0
	for s := range t.Values {
		for c, v := range t.Values[s] {
			if t.Present[s][c] {
				sum += v
			}
		}
	}
	return sum
}

// BarArgs holds an aggregated bar chart
type BarArgs struct {
	X           string
	Y           string
	Group       string
	Aggregation Aggregation
	Table       Table
}

// LineArgs holds an aggregated line chart, categories in axis order
type LineArgs struct {
	X           string
	Y           string
	Group       string
	Aggregation Aggregation
	Table       Table
}

// HistogramArgs holds equal-width bins of one numeric column
type HistogramArgs struct {
	Y    string
	Bins []stats.Bin
}

// HistogramKDEArgs holds bins of the values between the ClipLow and ClipHigh
// percentiles plus a density curve scaled to bin counts. Excluded counts the
// values left out.
type HistogramKDEArgs struct {
	Y        string
	Bins     []stats.Bin
	ClipLow  float64
	ClipHigh float64
	Excluded int
	CurveX   []float64
	CurveY   []float64
}

// NamedBox is one box of a box plot
type NamedBox struct {
	Name string
	stats.BoxSummary
}

// BoxplotArgs holds one box per group, or one box for the whole column
type BoxplotArgs struct {
	Y     string
	Group string
	Boxes []NamedBox
}

// PointSeries is a set of scatter points sharing a legend entry
type PointSeries struct {
	Name string
	X    []float64
	Y    []float64
}

// ScatterArgs holds points per group. When XIsTime is set X holds unix seconds.
type ScatterArgs struct {
	X       string
	Y       string
	Group   string
	XIsTime bool
	Series  []PointSeries
}

// CorrelogramArgs holds the Pearson matrix of the numeric columns; undefined
// coefficients are NaN
type CorrelogramArgs struct {
	Columns []string
	Matrix  [][]float64
}

func (BarArgs) ChartKind() Kind          { return KindBar }
func (LineArgs) ChartKind() Kind         { return KindLine }
func (HistogramArgs) ChartKind() Kind    { return KindHistogram }
func (HistogramKDEArgs) ChartKind() Kind { return KindHistogramKDE }
func (BoxplotArgs) ChartKind() Kind      { return KindBoxplot }
func (ScatterArgs) ChartKind() Kind      { return KindScatter }
func (CorrelogramArgs) ChartKind() Kind  { return KindCorrelogram }

// Resolution is a validated request with its private view and arguments
type Resolution struct {
	Kind    Kind
	Request Request
	View    *dataset.Frame
	Args    Args
}
