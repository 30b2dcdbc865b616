package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabviz/internal/dataset"
)

func TestTypeCaster(t *testing.T) {
	raw, err := dataset.FromRecords(
		[]string{"station", "CO", "code", "day"},
		[][]string{
			{"north", "1.5", "10", "2024-01-01"},
			{"south", "2", "x", "2024-01-02"},
		},
	)
	require.NoError(t, err)

	out, log := NewTypeCaster().Cast(raw, map[string]string{
		"CO":      "category",
		"code":    "float32",
		"day":     "datetime64",
		"missing": "int",
		"station": "weird",
	})

	kinds := make([]LogKind, len(log))
	for i, e := range log {
		kinds[i] = e.Kind
	}
	// sorted by column name
	assert.Equal(t, []LogKind{LogTypeCast, LogTypeCastFailed, LogTypeCast, LogColumnMissing, LogTypeCastFailed}, kinds)

	co, _ := out.Column("CO")
	assert.Equal(t, dataset.Categorical, co.Kind)
	assert.Equal(t, "1.5", co.Strings[0])

	code, _ := out.Column("code")
	assert.Equal(t, dataset.Categorical, code.Kind, "failed cast leaves the column as it was")

	day, _ := out.Column("day")
	assert.Equal(t, dataset.Date, day.Kind)

	assert.Equal(t, "Column 'missing' does not exist, cannot convert to int.", log[3].String())

	orig, _ := raw.Column("CO")
	assert.Equal(t, dataset.Numeric, orig.Kind)
}

func TestCastToInteger(t *testing.T) {
	f := dataset.MustFrame(
		dataset.NewNumeric("whole", []float64{1, 2}, nil),
		dataset.NewNumeric("frac", []float64{1.5, 2}, nil),
	)
	_, log := NewTypeCaster().Cast(f, map[string]string{"whole": "int", "frac": "int64"})
	require.Len(t, log, 2)
	assert.Equal(t, LogTypeCastFailed, log[0].Kind) // frac
	assert.Equal(t, LogTypeCast, log[1].Kind)       // whole
}

func TestParseTargetKind(t *testing.T) {
	k, err := ParseTargetKind(" Float64 ")
	require.NoError(t, err)
	assert.Equal(t, dataset.Numeric, k)

	_, err = ParseTargetKind("complex128")
	assert.Error(t, err)
}
