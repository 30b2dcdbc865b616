package stats

import (
	"math"
)

// Bin is one histogram bucket, [Low, High) except the last which is closed
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Histogram splits x into n equal-width bins over its range
func Histogram(x []float64, n int) []Bin {
	if len(x) == 0 || n <= 0 {
		return nil
	}
	lo, hi := MinMax(x)
	if lo == hi {
		// single value: center a unit-wide range on it
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Low = lo + float64(i)*width
		bins[i].High = lo + float64(i+1)*width
	}
	bins[n-1].High = hi
	for _, v := range x {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].Count++
	}
	return bins
}

// ScottBandwidth is the Scott rule bandwidth for a Gaussian kernel
func ScottBandwidth(x []float64) float64 {
	sd := StdDev(x)
	if math.IsNaN(sd) || sd == 0 {
		return 0
	}
	return sd * math.Pow(float64(len(x)), -0.2)
}

// KDE evaluates a Gaussian kernel density estimate at points evenly spread
// over [lo, hi]. It returns nil when the bandwidth is degenerate.
func KDE(x []float64, lo, hi float64, points int) (xs, ys []float64) {
	bw := ScottBandwidth(x)
	if bw == 0 || points < 2 {
		return nil, nil
	}
	xs = make([]float64, points)
	ys = make([]float64, points)
	step := (hi - lo) / float64(points-1)
	norm := 1 / (float64(len(x)) * bw * math.Sqrt(2*math.Pi))
	for i := range xs {
		at := lo + float64(i)*step
		sum := 0.0
		for _, v := range x {
			u := (at - v) / bw
			sum += math.Exp(-0.5 * u * u)
		}
		xs[i] = at
		ys[i] = sum * norm
	}
	return xs, ys
}

// BoxSummary is the five-number summary with Tukey whiskers
type BoxSummary struct {
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	WhiskerLow   float64   `json:"whisker_low"`
	WhiskerHigh  float64   `json:"whisker_high"`
	Outliers     []float64 `json:"outliers,omitempty"`
	Observations int       `json:"observations"`
}

// Box computes the box plot summary, whiskers reach the furthest points
// within 1.5 IQR of the quartiles
func Box(x []float64) (BoxSummary, bool) {
	if len(x) == 0 {
		return BoxSummary{}, false
	}
	s := Sorted(x)
	b := BoxSummary{
		Min:          s[0],
		Q1:           Quantile(s, 0.25),
		Median:       Quantile(s, 0.5),
		Q3:           Quantile(s, 0.75),
		Max:          s[len(s)-1],
		Observations: len(s),
	}
	iqr := b.Q3 - b.Q1
	lowFence, highFence := b.Q1-1.5*iqr, b.Q3+1.5*iqr
	b.WhiskerLow, b.WhiskerHigh = b.Q1, b.Q3
	for _, v := range s {
		if v >= lowFence {
			b.WhiskerLow = v
			break
		}
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] <= highFence {
			b.WhiskerHigh = s[i]
			break
		}
	}
	for _, v := range s {
		if v < lowFence || v > highFence {
			b.Outliers = append(b.Outliers, v)
		}
	}
	return b, true
}
