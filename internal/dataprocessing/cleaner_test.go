package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabviz/internal/dataset"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCleaner(t *testing.T, mutate func(*CleaningConfig)) *Cleaner {
	t.Helper()
	cfg := DefaultCleaningConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewCleaner(cfg, testLogger())
	require.NoError(t, err)
	return c
}

// scenarioFrame has 20 rows: fecha with 4 missing dates, valor with one
// missing number and a constant etiqueta column
func scenarioFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	rows := make([][]string, 20)
	for i := range rows {
		fecha := fmt.Sprintf("2024-01-%02d", i+1)
		if i%5 == 4 {
			fecha = ""
		}
		valor := fmt.Sprintf("%d", (i+1)*10)
		if i == 7 {
			valor = ""
		}
		rows[i] = []string{fecha, valor, "A"}
	}
	f, err := dataset.FromRecords([]string{"fecha", "valor", "etiqueta"}, rows)
	require.NoError(t, err)
	return f
}

func TestCleanScenario(t *testing.T) {
	c := newTestCleaner(t, nil)

	res, err := c.Clean(context.Background(), scenarioFrame(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"fecha", "valor"}, res.Frame.Names())

	fecha, _ := res.Frame.Column("fecha")
	assert.Equal(t, dataset.Date, fecha.Kind)
	assert.Equal(t, 4, fecha.NullCount())
	assert.Equal(t, 2024, fecha.Times[0].Year())

	valor, _ := res.Frame.Column("valor")
	assert.Equal(t, 0, valor.NullCount())
	// mean of 10..200 step 10 without 80
	expected := (2100.0 - 80.0) / 19.0
	assert.InDelta(t, expected, valor.Numbers[7], 1e-9)

	assert.Equal(t, 1, res.Log.Count(LogColumnsPruned))
	assert.Equal(t, 1, res.Log.Imputations())
	assert.Equal(t, 1, res.Log.Count(LogDateConverted))
	assert.Equal(t, 1, res.Log.Count(LogResidualNulls))

	pruned := res.Log[1]
	assert.Equal(t, LogColumnsPruned, pruned.Kind)
	assert.Equal(t, 1, pruned.Count)
	assert.Equal(t, "Removed 1 empty or constant columns.", pruned.String())
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	raw := scenarioFrame(t)
	c := newTestCleaner(t, nil)

	_, err := c.Clean(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"fecha", "valor", "etiqueta"}, raw.Names())
	valor, _ := raw.Column("valor")
	assert.True(t, valor.IsNull(7))
	fecha, _ := raw.Column("fecha")
	assert.Equal(t, dataset.Categorical, fecha.Kind)
}

func TestCleanDateConversionFailure(t *testing.T) {
	f, err := dataset.FromRecords(
		[]string{"Fecha_alta", "n"},
		[][]string{{"2024-01-01", "1"}, {"yesterday", "2"}},
	)
	require.NoError(t, err)

	c := newTestCleaner(t, nil)
	res, err := c.Clean(context.Background(), f)
	require.NoError(t, err)

	col, ok := res.Frame.Column("Fecha_alta")
	require.True(t, ok)
	assert.Equal(t, dataset.Categorical, col.Kind)
	require.Equal(t, 1, res.Log.Count(LogDateConversionFailed))
	assert.True(t, res.Log[0].IsWarning())
	assert.Contains(t, res.Log[0].String(), "Could not convert column 'Fecha_alta'")
}

func TestCleanExplicitDateColumns(t *testing.T) {
	f, err := dataset.FromRecords(
		[]string{"when", "n"},
		[][]string{{"01/02/2024", "1"}, {"15/02/2024", "2"}},
	)
	require.NoError(t, err)

	c := newTestCleaner(t, func(cfg *CleaningConfig) { cfg.DateColumns = []string{"when"} })
	res, err := c.Clean(context.Background(), f)
	require.NoError(t, err)

	col, _ := res.Frame.Column("when")
	require.Equal(t, dataset.Date, col.Kind)
	// day-first layout is the only one that fits both values
	assert.Equal(t, 15, col.Times[1].Day())
}

func TestCleanNullThresholdDrop(t *testing.T) {
	f, err := dataset.FromRecords(
		[]string{"sparse", "dense"},
		[][]string{{"", "1"}, {"", "2"}, {"", "3"}, {"", "4"}, {"x", "5"}},
	)
	require.NoError(t, err)

	c := newTestCleaner(t, func(cfg *CleaningConfig) { cfg.DropEmptyOrConstant = false })
	res, err := c.Clean(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, []string{"dense"}, res.Frame.Names())
	require.Len(t, res.Log, 1)
	assert.Equal(t, LogColumnDroppedNulls, res.Log[0].Kind)
	assert.Equal(t, 80.0, res.Log[0].Percent)
	assert.Equal(t, "Column 'sparse' dropped (80.0% nulls).", res.Log[0].String())
}

func TestCleanNullThresholdProperty(t *testing.T) {
	// ten columns with 0..9 missing cells out of ten rows
	header := make([]string, 10)
	rows := make([][]string, 10)
	for r := range rows {
		rows[r] = make([]string, 10)
	}
	for c := range header {
		header[c] = fmt.Sprintf("c%d", c)
		for r := range rows {
			if r >= c {
				rows[r][c] = fmt.Sprintf("%d", r*c+r)
			}
		}
	}
	raw, err := dataset.FromRecords(header, rows)
	require.NoError(t, err)

	for _, threshold := range []float64{0, 0.15, 0.3, 0.5, 0.75, 1} {
		for _, numeric := range []NumericStrategy{NumericMean, NumericZero, NumericNone} {
			t.Run(fmt.Sprintf("%v/%s", threshold, numeric), func(t *testing.T) {
				c := newTestCleaner(t, func(cfg *CleaningConfig) {
					cfg.NullThreshold = threshold
					cfg.NumericStrategy = numeric
					cfg.CategoricalStrategy = CategoricalNone
					cfg.DropEmptyOrConstant = false
				})
				res, err := c.Clean(context.Background(), raw)
				require.NoError(t, err)

				for _, col := range res.Frame.Columns() {
					assert.LessOrEqual(t, col.NullRatio(), threshold, col.Name)
				}
			})
		}
	}
}

func TestCleanImputationStrategies(t *testing.T) {
	header := []string{"num", "cat"}
	rows := [][]string{{"1", "x"}, {"", "y"}, {"3", ""}, {"5", "z"}}

	tests := []struct {
		name        string
		numeric     NumericStrategy
		categorical CategoricalStrategy
		wantRows    int
		wantKinds   []LogKind
		check       func(t *testing.T, f *dataset.Frame)
	}{
		{
			name:        "zero and fill",
			numeric:     NumericZero,
			categorical: CategoricalFill,
			wantRows:    4,
			wantKinds:   []LogKind{LogImputedZero, LogImputedFill},
			check: func(t *testing.T, f *dataset.Frame) {
				num, _ := f.Column("num")
				assert.Equal(t, 0.0, num.Numbers[1])
				cat, _ := f.Column("cat")
				assert.Equal(t, "Unknown", cat.Strings[2])
			},
		},
		{
			name:        "drop cascades across columns",
			numeric:     NumericDrop,
			categorical: CategoricalDrop,
			wantRows:    2,
			wantKinds:   []LogKind{LogRowsDropped, LogRowsDropped},
			check: func(t *testing.T, f *dataset.Frame) {
				num, _ := f.Column("num")
				assert.Equal(t, []float64{1, 5}, num.ValidNumbers())
			},
		},
		{
			name:        "none leaves nulls and reports them",
			numeric:     NumericNone,
			categorical: CategoricalNone,
			wantRows:    4,
			wantKinds:   []LogKind{LogResidualNulls},
			check: func(t *testing.T, f *dataset.Frame) {
				assert.Equal(t, 2, f.NullCount())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := dataset.FromRecords(header, rows)
			require.NoError(t, err)

			c := newTestCleaner(t, func(cfg *CleaningConfig) {
				cfg.NumericStrategy = tt.numeric
				cfg.CategoricalStrategy = tt.categorical
				cfg.DropEmptyOrConstant = false
			})
			res, err := c.Clean(context.Background(), raw)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRows, res.Frame.NumRows())
			kinds := make([]LogKind, len(res.Log))
			for i, e := range res.Log {
				kinds[i] = e.Kind
			}
			assert.Equal(t, tt.wantKinds, kinds)
			tt.check(t, res.Frame)
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	first := newTestCleaner(t, nil)
	res, err := first.Clean(context.Background(), scenarioFrame(t))
	require.NoError(t, err)

	second := newTestCleaner(t, func(cfg *CleaningConfig) {
		cfg.DropEmptyOrConstant = false
		cfg.NumericStrategy = NumericNone
		cfg.CategoricalStrategy = CategoricalNone
	})
	again, err := second.Clean(context.Background(), res.Frame)
	require.NoError(t, err)

	assert.Equal(t, res.Frame.Names(), again.Frame.Names())
	assert.Equal(t, res.Frame.Records(), again.Frame.Records())
	for _, e := range again.Log {
		assert.Equal(t, LogResidualNulls, e.Kind)
	}
}

func TestCleanIsDeterministic(t *testing.T) {
	c := newTestCleaner(t, nil)
	a, err := c.Clean(context.Background(), scenarioFrame(t))
	require.NoError(t, err)
	b, err := c.Clean(context.Background(), scenarioFrame(t))
	require.NoError(t, err)

	assert.Equal(t, a.Log, b.Log)
	assert.Equal(t, a.Frame.Records(), b.Frame.Records())
}

func TestCleanErrors(t *testing.T) {
	c := newTestCleaner(t, nil)
	_, err := c.Clean(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilFrame)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Clean(ctx, scenarioFrame(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCleanerValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CleaningConfig)
	}{
		{"unknown numeric strategy", func(c *CleaningConfig) { c.NumericStrategy = "median" }},
		{"unknown categorical strategy", func(c *CleaningConfig) { c.CategoricalStrategy = "mode" }},
		{"threshold above one", func(c *CleaningConfig) { c.NullThreshold = 1.5 }},
		{"negative threshold", func(c *CleaningConfig) { c.NullThreshold = -0.1 }},
		{"empty fill label", func(c *CleaningConfig) { c.FillLabel = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCleaningConfig()
			tt.mutate(&cfg)
			_, err := NewCleaner(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestCleanerConfigIsCopied(t *testing.T) {
	cfg := DefaultCleaningConfig()
	c, err := NewCleaner(cfg, nil)
	require.NoError(t, err)

	cfg.DatePatterns[0] = "changed"
	assert.Equal(t, "date", c.Config().DatePatterns[0])

	got := c.Config()
	got.DatePatterns[0] = "changed again"
	assert.Equal(t, "date", c.Config().DatePatterns[0])
}
