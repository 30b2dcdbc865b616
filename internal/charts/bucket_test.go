package charts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabviz/internal/dataset"
)

func TestBucketApply(t *testing.T) {
	ts := []time.Time{
		time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC),
		{},
		time.Date(2024, 2, 5, 8, 0, 0, 0, time.UTC),
	}
	col := dataset.NewDate("fecha", ts, []bool{true, false, true})

	tests := []struct {
		bucket Bucket
		want   []string
	}{
		{BucketYearly, []string{"2023", "", "2024"}},
		{BucketMonthly, []string{"2023-12", "", "2024-02"}},
		{BucketDaily, []string{"2023-12-31", "", "2024-02-05"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.bucket), func(t *testing.T) {
			out := tt.bucket.Apply(col)
			require.Equal(t, dataset.Categorical, out.Kind)
			assert.Equal(t, "fecha", out.Name)
			for i, want := range tt.want {
				assert.Equal(t, want, out.Label(i))
			}
			assert.True(t, out.IsNull(1))
		})
	}

	assert.Same(t, col, BucketNone.Apply(col))
	assert.Equal(t, dataset.Date, col.Kind, "input column is untouched")
}

func TestBucketIsIdentityOnNonDates(t *testing.T) {
	cols := []*dataset.Column{
		dataset.NewNumeric("n", []float64{1, 2}, nil),
		dataset.NewCategorical("c", []string{"2024-01-01", "x"}, nil),
	}
	for _, col := range cols {
		for _, b := range []Bucket{BucketNone, BucketYearly, BucketMonthly, BucketDaily} {
			assert.Same(t, col, b.Apply(col), "%s/%s", col.Name, b)
		}
	}
	assert.Nil(t, BucketMonthly.Apply(nil))
}

func TestParseBucket(t *testing.T) {
	tests := map[string]Bucket{
		"":        BucketNone,
		"Ninguna": BucketNone,
		"YEARLY":  BucketYearly,
		"Anual":   BucketYearly,
		"Mensual": BucketMonthly,
		"monthly": BucketMonthly,
		" daily ": BucketDaily,
		"Diaria":  BucketDaily,
	}
	for in, want := range tests {
		got, err := ParseBucket(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseBucket("weekly")
	assert.Error(t, err)
}

func TestBucketSortLabels(t *testing.T) {
	labels := []string{"2024-03-01", "2023-12-31", "n/a", "2024-01-15"}
	assert.Equal(t,
		[]string{"2023-12-31", "2024-01-15", "2024-03-01", "n/a"},
		BucketDaily.SortLabels(labels))

	key, ok := BucketMonthly.Key("2024-02")
	require.True(t, ok)
	assert.Equal(t, time.February, key.Month())

	_, ok = BucketNone.Key("2024")
	assert.False(t, ok)
}
