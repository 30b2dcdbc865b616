package charts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabviz/internal/dataprocessing"
	"tabviz/internal/dataset"
)

func newTestResolver() *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier := dataprocessing.NewColumnClassifier([]string{"date", "fecha"}, nil)
	return NewResolver(DefaultResolverConfig(), classifier, logger)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// salesFrame spans three months: 2 rows in January, 3 in February, 4 in March
func salesFrame() *dataset.Frame {
	dates := []time.Time{
		day(2024, 3, 1), day(2024, 1, 5), day(2024, 2, 2), day(2024, 3, 9), day(2024, 1, 20),
		day(2024, 2, 14), day(2024, 3, 15), day(2024, 2, 28), day(2024, 3, 30),
	}
	return dataset.MustFrame(
		dataset.NewDate("fecha", dates, nil),
		dataset.NewNumeric("valor", []float64{10, 20, 30, 40, 50, 60, 70, 80, 90}, nil),
		dataset.NewCategorical("region", []string{"n", "s", "n", "s", "n", "s", "n", "s", "n"}, nil),
		dataset.NewNumeric("units", []float64{1, 2, 1, 2, 1, 2, 1, 2, 1}, nil),
	)
}

func TestResolveBarMonthlyCount(t *testing.T) {
	frame := salesFrame()
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind:        "Bar",
		XColumn:     "fecha",
		XBucket:     "monthly",
		Aggregation: "count",
	}, frame)
	require.NoError(t, err)

	args, ok := res.Args.(BarArgs)
	require.True(t, ok)
	assert.Equal(t, KindBar, res.Kind)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, args.Table.Categories)
	assert.Equal(t, args.Table.Categories, BucketMonthly.SortLabels(args.Table.Categories))
	assert.Equal(t, []float64{2, 3, 4}, args.Table.Values[0])
	assert.Equal(t, float64(frame.NumRows()), args.Table.Total())

	// the shared frame keeps its timestamps
	fecha, _ := frame.Column("fecha")
	assert.Equal(t, dataset.Date, fecha.Kind)
}

func TestResolveValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"unknown kind", Request{Kind: "pie"}, "kind"},
		{"missing x column", Request{Kind: "bar", XColumn: "nope", Aggregation: "count"}, "x_column"},
		{"missing y column", Request{Kind: "bar", XColumn: "region", YColumn: "nope", Aggregation: "sum"}, "y_column"},
		{"missing group column", Request{Kind: "scatter", XColumn: "valor", YColumn: "units", GroupColumn: "nope"}, "group_column"},
		{"aggregation required", Request{Kind: "line", XColumn: "region"}, "aggregation"},
		{"unknown aggregation", Request{Kind: "line", XColumn: "region", Aggregation: "median"}, "aggregation"},
		{"y required for mean", Request{Kind: "bar", XColumn: "region", Aggregation: "mean"}, "y_column"},
		{"x required", Request{Kind: "bar", Aggregation: "count"}, "x_column"},
		{"y must be numeric", Request{Kind: "histogram", YColumn: "region"}, "y_column"},
		{"scatter x must be numeric or date", Request{Kind: "scatter", XColumn: "region", YColumn: "valor"}, "x_column"},
		{"bad bucket", Request{Kind: "bar", XColumn: "fecha", XBucket: "weekly", Aggregation: "count"}, "x_bucket"},
		{"bad group bucket", Request{Kind: "boxplot", YColumn: "valor", GroupBucket: "hourly"}, "group_bucket"},
		{"bad selection", Request{Kind: "boxplot", YColumn: "valor", GroupColumn: "region", GroupValues: []any{map[string]any{}}}, "group_values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestResolver().Resolve(context.Background(), tt.req, salesFrame())
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestResolveCountExemptsY(t *testing.T) {
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind:        "bar",
		XColumn:     "region",
		YColumn:     "does_not_exist",
		Aggregation: "Conteo",
	}, salesFrame())
	require.NoError(t, err)

	args := res.Args.(BarArgs)
	assert.Equal(t, "", args.Y)
	assert.Equal(t, []string{"n", "s"}, args.Table.Categories)
	assert.Equal(t, []float64{5, 4}, args.Table.Values[0])
}

// wideFrame has 15 categories; category i appears i+1 times in each group
func wideFrame() *dataset.Frame {
	var cats, groups []string
	var values []float64
	for i := 0; i < 15; i++ {
		for _, g := range []string{"a", "b"} {
			for k := 0; k <= i; k++ {
				cats = append(cats, fmt.Sprintf("c%02d", i))
				groups = append(groups, g)
				values = append(values, 1)
			}
		}
	}
	return dataset.MustFrame(
		dataset.NewCategorical("cat", cats, nil),
		dataset.NewCategorical("grp", groups, nil),
		dataset.NewNumeric("v", values, nil),
	)
}

func TestResolveTopTenCap(t *testing.T) {
	for _, kind := range []string{"bar", "line"} {
		t.Run(kind, func(t *testing.T) {
			res, err := newTestResolver().Resolve(context.Background(), Request{
				Kind:        kind,
				XColumn:     "cat",
				GroupColumn: "grp",
				Aggregation: "count",
			}, wideFrame())
			require.NoError(t, err)

			var table Table
			switch a := res.Args.(type) {
			case BarArgs:
				table = a.Table
			case LineArgs:
				table = a.Table
			default:
				t.Fatalf("unexpected args %T", res.Args)
			}

			require.Len(t, table.Categories, 10)
			got := append([]string(nil), table.Categories...)
			sort.Strings(got)
			want := []string{"c05", "c06", "c07", "c08", "c09", "c10", "c11", "c12", "c13", "c14"}
			assert.Equal(t, want, got)
			assert.Equal(t, []string{"a", "b"}, table.Series)
		})
	}
}

func TestResolveTopTenTiesKeepFirstSeen(t *testing.T) {
	var cats, groups []string
	for i := 14; i >= 0; i-- {
		cats = append(cats, fmt.Sprintf("c%02d", i))
		groups = append(groups, "g")
	}
	frame := dataset.MustFrame(
		dataset.NewCategorical("cat", cats, nil),
		dataset.NewCategorical("grp", groups, nil),
	)

	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind: "bar", XColumn: "cat", GroupColumn: "grp", Aggregation: "count",
	}, frame)
	require.NoError(t, err)

	table := res.Args.(BarArgs).Table
	assert.Equal(t, cats[:10], table.Categories)
}

func TestResolveBarRanksByMagnitude(t *testing.T) {
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind: "bar", XColumn: "region", YColumn: "valor", Aggregation: "sum",
	}, salesFrame())
	require.NoError(t, err)

	table := res.Args.(BarArgs).Table
	// n: 10+30+50+70+90, s: 20+40+60+80
	assert.Equal(t, []string{"n", "s"}, table.Categories)
	assert.Equal(t, []float64{250, 200}, table.Values[0])
}

func TestResolveCountSumsToFilteredRows(t *testing.T) {
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind:        "line",
		XColumn:     "fecha",
		XBucket:     "daily",
		Aggregation: "count",
		GroupColumn: "region",
		GroupValues: []any{"s"},
	}, salesFrame())
	require.NoError(t, err)

	args := res.Args.(LineArgs)
	assert.Equal(t, 4, res.View.NumRows())
	assert.Equal(t, float64(res.View.NumRows()), args.Table.Total())
	assert.Equal(t, []string{"s"}, args.Table.Series)
	assert.Equal(t, BucketDaily.SortLabels(args.Table.Categories), args.Table.Categories)
}

// Counting follows groupby semantics: rows whose x or group label is missing
// belong to no cell, so per-x counts add up to the rows with both present.
func TestResolveCountSkipsMissingLabels(t *testing.T) {
	frame := dataset.MustFrame(
		dataset.NewCategorical("region", []string{"n", "", "s", "n", "s"}, []bool{true, false, true, true, true}),
		dataset.NewCategorical("canal", []string{"web", "web", "", "tienda", "web"}, []bool{true, true, false, true, true}),
	)
	r := newTestResolver()

	res, err := r.Resolve(context.Background(), Request{Kind: "bar", XColumn: "region", Aggregation: "count"}, frame)
	require.NoError(t, err)
	table := res.Args.(BarArgs).Table
	assert.Equal(t, 5, res.View.NumRows())
	assert.Equal(t, []string{"n", "s"}, table.Categories)
	assert.Equal(t, []float64{2, 2}, table.Values[0])
	assert.Equal(t, 4.0, table.Total(), "the row without a region is not counted")

	res, err = r.Resolve(context.Background(), Request{
		Kind: "bar", XColumn: "region", Aggregation: "count", GroupColumn: "canal",
	}, frame)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Args.(BarArgs).Table.Total(), "rows missing region or canal are not counted")
}

func TestResolveGroupBucketBeforeFilter(t *testing.T) {
	frame := dataset.MustFrame(
		dataset.NewDate("fecha", []time.Time{day(2023, 5, 1), day(2023, 6, 1), day(2024, 1, 1)}, nil),
		dataset.NewCategorical("kind", []string{"x", "y", "x"}, nil),
		dataset.NewNumeric("v", []float64{1, 2, 3}, nil),
	)

	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind:        "bar",
		XColumn:     "kind",
		YColumn:     "v",
		Aggregation: "mean",
		GroupColumn: "fecha",
		GroupBucket: "yearly",
		GroupValues: []any{"2023"},
	}, frame)
	require.NoError(t, err)

	table := res.Args.(BarArgs).Table
	assert.Equal(t, []string{"2023"}, table.Series)
	assert.Equal(t, 2, res.View.NumRows())
	assert.ElementsMatch(t, []string{"x", "y"}, table.Categories)

	orig, _ := frame.Column("fecha")
	assert.Equal(t, dataset.Date, orig.Kind)
	assert.Equal(t, 3, frame.NumRows())
}

func TestResolveNumericSelection(t *testing.T) {
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind:        "scatter",
		XColumn:     "valor",
		YColumn:     "valor",
		GroupColumn: "units",
		GroupValues: []any{float64(2)},
	}, salesFrame())
	require.NoError(t, err)

	args := res.Args.(ScatterArgs)
	require.Len(t, args.Series, 1)
	assert.Equal(t, "2", args.Series[0].Name)
	assert.Equal(t, []float64{20, 40, 60, 80}, args.Series[0].X)
}

func TestResolveLineNumericAxisOrder(t *testing.T) {
	frame := dataset.MustFrame(
		dataset.NewNumeric("x", []float64{10, 2, 33, 2}, nil),
		dataset.NewNumeric("y", []float64{1, 2, 3, 4}, nil),
	)
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind: "line", XColumn: "x", YColumn: "y", Aggregation: "mean",
	}, frame)
	require.NoError(t, err)

	table := res.Args.(LineArgs).Table
	assert.Equal(t, []string{"2", "10", "33"}, table.Categories)
	assert.Equal(t, []float64{3, 1, 3}, table.Values[0])
}

func TestResolveHistograms(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		values[i] = float64(i)
	}
	// the KDE variant leaves out values beyond the 1st and 99th percentiles
	values[0] = -1e6
	values[199] = 1e6
	frame := dataset.MustFrame(dataset.NewNumeric("v", values, nil))
	r := newTestResolver()

	res, err := r.Resolve(context.Background(), Request{Kind: "Histograma", YColumn: "v"}, frame)
	require.NoError(t, err)
	hist := res.Args.(HistogramArgs)
	assert.Len(t, hist.Bins, 30)
	total := 0
	for _, b := range hist.Bins {
		total += b.Count
	}
	assert.Equal(t, 200, total)

	res, err = r.Resolve(context.Background(), Request{Kind: "Histograma+KDE", YColumn: "v"}, frame)
	require.NoError(t, err)
	kde := res.Args.(HistogramKDEArgs)
	assert.Len(t, kde.Bins, 20)
	assert.Len(t, kde.CurveX, 200)
	assert.InDelta(t, 1.99, kde.ClipLow, 1e-9)
	assert.InDelta(t, 197.01, kde.ClipHigh, 1e-9)
	assert.Equal(t, 4, kde.Excluded)

	binned := 0
	for _, b := range kde.Bins {
		binned += b.Count
	}
	assert.Equal(t, 196, binned, "values 2..197 only")
	assert.Equal(t, 2.0, kde.Bins[0].Low)
	assert.Equal(t, 197.0, kde.Bins[19].High)
}

func TestResolveBoxplot(t *testing.T) {
	r := newTestResolver()

	res, err := r.Resolve(context.Background(), Request{Kind: "boxplot", YColumn: "valor"}, salesFrame())
	require.NoError(t, err)
	single := res.Args.(BoxplotArgs)
	require.Len(t, single.Boxes, 1)
	assert.Equal(t, "valor", single.Boxes[0].Name)
	assert.Equal(t, 50.0, single.Boxes[0].Median)

	res, err = r.Resolve(context.Background(), Request{Kind: "boxplot", YColumn: "valor", GroupColumn: "region"}, salesFrame())
	require.NoError(t, err)
	grouped := res.Args.(BoxplotArgs)
	require.Len(t, grouped.Boxes, 2)
	assert.Equal(t, "n", grouped.Boxes[0].Name)
	assert.Equal(t, 5, grouped.Boxes[0].Observations)
}

func TestResolveScatterByDate(t *testing.T) {
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind: "scatter", XColumn: "fecha", YColumn: "valor", GroupColumn: "region",
	}, salesFrame())
	require.NoError(t, err)

	args := res.Args.(ScatterArgs)
	assert.True(t, args.XIsTime)
	require.Len(t, args.Series, 2)
	assert.Equal(t, "n", args.Series[0].Name)
	assert.Equal(t, float64(day(2024, 3, 1).Unix()), args.Series[0].X[0])
}

func TestResolveCorrelogram(t *testing.T) {
	frame := dataset.MustFrame(
		dataset.NewNumeric("a", []float64{1, 2, 3, 4}, nil),
		dataset.NewCategorical("label", []string{"w", "x", "y", "z"}, nil),
		dataset.NewNumeric("b", []float64{2, 4, 6, 8}, nil),
		dataset.NewNumeric("c", []float64{4, 3, 2, 0}, []bool{true, true, true, false}),
		dataset.NewNumeric("flat", []float64{1, 1, 1, 1}, nil),
	)
	res, err := newTestResolver().Resolve(context.Background(), Request{Kind: "Correlograma", XColumn: "ignored"}, frame)
	require.NoError(t, err)

	args := res.Args.(CorrelogramArgs)
	assert.Equal(t, []string{"a", "b", "c", "flat"}, args.Columns)
	assert.InDelta(t, 1.0, args.Matrix[0][1], 1e-9)
	assert.InDelta(t, -1.0, args.Matrix[0][2], 1e-9)
	assert.Equal(t, args.Matrix[0][2], args.Matrix[2][0])
	assert.True(t, math.IsNaN(args.Matrix[3][3]))
	assert.True(t, math.IsNaN(args.Matrix[0][3]))
}

func TestResolveCorrelogramNeedsNumericColumns(t *testing.T) {
	frame := dataset.MustFrame(dataset.NewNumeric("a", []float64{1, 2}, nil))
	_, err := newTestResolver().Resolve(context.Background(), Request{Kind: "correlogram"}, frame)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResolveParsesTextDates(t *testing.T) {
	frame := dataset.MustFrame(
		dataset.NewCategorical("order_date", []string{"2024-01-02", "2025-03-04", "2024-07-08"}, nil),
	)
	res, err := newTestResolver().Resolve(context.Background(), Request{
		Kind: "bar", XColumn: "order_date", XBucket: "yearly", Aggregation: "count",
	}, frame)
	require.NoError(t, err)

	table := res.Args.(BarArgs).Table
	assert.Equal(t, []string{"2024", "2025"}, table.Categories)
	assert.Equal(t, []float64{2, 1}, table.Values[0])
}

func TestParseKindAliases(t *testing.T) {
	for in, want := range map[string]Kind{
		"Barra": KindBar, "Línea": KindLine, "LINE": KindLine, "histogram+KDE": KindHistogramKDE,
		"Boxplot": KindBoxplot, "scatter": KindScatter,
	} {
		got, ok := ParseKind(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseKind("pie")
	assert.False(t, ok)
	assert.Equal(t, "histogram_kde", KindHistogramKDE.String())
}

func TestGroupValues(t *testing.T) {
	r := newTestResolver()
	frame := salesFrame()

	months, err := r.GroupValues(frame, "fecha", BucketMonthly)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, months)

	units, err := r.GroupValues(frame, "units", BucketNone)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, units)

	regions, err := r.GroupValues(frame, "region", BucketYearly)
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "s"}, regions)

	_, err = r.GroupValues(frame, "nope", BucketNone)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
