// Package stats holds the descriptive statistics used by profiling and chart
// shaping. Moments and correlation come from gonum; quantiles use linear
// interpolation between order statistics (R type 7) so describe output
// lines up with common dataframe tools.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean computes the average of a slice, 0 for an empty slice
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// StdDev computes the sample standard deviation, NaN with fewer than two values
func StdDev(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}

// MinMax returns the minimum and maximum values in the slice
func MinMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return floats.Min(x), floats.Max(x)
}

// Sorted returns a sorted copy
func Sorted(x []float64) []float64 {
	out := append([]float64(nil), x...)
	sort.Float64s(out)
	return out
}

// Quantile returns the q-th quantile (0..1) of already sorted data
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Percentile is Quantile on unsorted data with p in 0..100
func Percentile(x []float64, p float64) float64 {
	return Quantile(Sorted(x), p/100)
}

// Within returns the values of x that lie in [lo, hi], in input order
func Within(x []float64, lo, hi float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

// Correlation returns the Pearson coefficient of two equally long samples,
// NaN when either side has no variance
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	sx, sy := StdDev(x), StdDev(y)
	if sx == 0 || sy == 0 || math.IsNaN(sx) || math.IsNaN(sy) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
