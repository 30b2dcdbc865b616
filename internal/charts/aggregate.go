package charts

import (
	"math"
	"sort"
	"strconv"
	"time"

	"tabviz/internal/dataset"
)

type cell struct {
	sum   float64
	n     int
	count int
}

// aggregate reduces y per x label, or per (x, group) pair when group is
// given. Rows with a missing x or group are skipped; mean and sum only use
// rows with a present y. Categories and series come back in first-seen order.
func aggregate(x, y, group *dataset.Column, agg Aggregation, seriesName string) Table {
	var categories, series []string
	catIdx := make(map[string]int)
	serIdx := make(map[string]int)
	cells := make(map[[2]int]*cell)

	if group == nil {
		series = []string{seriesName}
		serIdx[seriesName] = 0
	}

	for i := 0; i < x.Len(); i++ {
		if x.IsNull(i) {
			continue
		}
		s := 0
		if group != nil {
			if group.IsNull(i) {
				continue
			}
			g := group.Label(i)
			idx, ok := serIdx[g]
			if !ok {
				idx = len(series)
				serIdx[g] = idx
				series = append(series, g)
			}
			s = idx
		}

		l := x.Label(i)
		c, ok := catIdx[l]
		if !ok {
			c = len(categories)
			catIdx[l] = c
			categories = append(categories, l)
		}

		key := [2]int{s, c}
		acc := cells[key]
		if acc == nil {
			acc = &cell{}
			cells[key] = acc
		}
		acc.count++
		if y != nil && !y.IsNull(i) {
			acc.sum += y.Numbers[i]
			acc.n++
		}
	}

	t := Table{
		Categories: categories,
		Series:     series,
		Values:     make([][]float64, len(series)),
		Present:    make([][]bool, len(series)),
	}
	for s := range series {
		t.Values[s] = make([]float64, len(categories))
		t.Present[s] = make([]bool, len(categories))
		for c := range categories {
			acc := cells[[2]int{s, c}]
			if acc == nil {
				continue
			}
			switch agg {
			case AggCount:
				t.Values[s][c], t.Present[s][c] = float64(acc.count), true
			case AggSum:
				t.Values[s][c], t.Present[s][c] = acc.sum, true
			case AggMean:
				if acc.n > 0 {
					t.Values[s][c], t.Present[s][c] = acc.sum/float64(acc.n), true
				}
			}
		}
	}
	return t
}

// magnitudes returns the sum of absolute present values per category
func (t Table) magnitudes() []float64 {
	out := make([]float64, len(t.Categories))
	for s := range t.Series {
		for c := range t.Categories {
			if t.Present[s][c] {
				out[c] += math.Abs(t.Values[s][c])
			}
		}
	}
	return out
}

// rankByMagnitude returns category indexes by descending magnitude. Equal
// magnitudes keep their first-seen order.
func (t Table) rankByMagnitude() []int {
	mags := t.magnitudes()
	idx := make([]int, len(t.Categories))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return mags[idx[a]] > mags[idx[b]] })
	return idx
}

// top keeps the n categories with the largest magnitudes, in rank order
func (t Table) top(n int) Table {
	rank := t.rankByMagnitude()
	if n > 0 && len(rank) > n {
		rank = rank[:n]
	}
	return t.pick(rank)
}

// pick returns a table holding only the given categories, in that order
func (t Table) pick(order []int) Table {
	out := Table{
		Categories: make([]string, len(order)),
		Series:     append([]string(nil), t.Series...),
		Values:     make([][]float64, len(t.Series)),
		Present:    make([][]bool, len(t.Series)),
	}
	for i, c := range order {
		out.Categories[i] = t.Categories[c]
	}
	for s := range t.Series {
		out.Values[s] = make([]float64, len(order))
		out.Present[s] = make([]bool, len(order))
		for i, c := range order {
			out.Values[s][i] = t.Values[s][c]
			out.Present[s][i] = t.Present[s][c]
		}
	}
	return out
}

// inAxisOrder sorts categories the way an axis shows them
func (t Table) inAxisOrder(kind dataset.Kind, bucket Bucket) Table {
	sorted := axisOrder(t.Categories, kind, bucket)
	pos := make(map[string]int, len(t.Categories))
	for i, c := range t.Categories {
		pos[c] = i
	}
	order := make([]int, len(sorted))
	for i, c := range sorted {
		order[i] = pos[c]
	}
	return t.pick(order)
}

// sortSeries orders series labels the way a legend shows them
func (t Table) sortSeries(kind dataset.Kind, bucket Bucket) Table {
	sorted := axisOrder(t.Series, kind, bucket)
	pos := make(map[string]int, len(t.Series))
	for i, s := range t.Series {
		pos[s] = i
	}
	out := Table{
		Categories: t.Categories,
		Series:     sorted,
		Values:     make([][]float64, len(sorted)),
		Present:    make([][]bool, len(sorted)),
	}
	for i, s := range sorted {
		out.Values[i] = t.Values[pos[s]]
		out.Present[i] = t.Present[pos[s]]
	}
	return out
}

// axisOrder sorts labels chronologically for dates and buckets, numerically
// for numbers and lexicographically otherwise. kind is the kind of the column
// before bucketing.
func axisOrder(labels []string, kind dataset.Kind, bucket Bucket) []string {
	out := append([]string(nil), labels...)
	switch {
	case kind == dataset.Date && bucket != BucketNone:
		return bucket.SortLabels(out)
	case kind == dataset.Date:
		sort.SliceStable(out, func(i, j int) bool {
			ti, _ := time.Parse(dataset.DateLabelLayout, out[i])
			tj, _ := time.Parse(dataset.DateLabelLayout, out[j])
			return ti.Before(tj)
		})
	case kind == dataset.Numeric:
		sort.SliceStable(out, func(i, j int) bool {
			fi, _ := strconv.ParseFloat(out[i], 64)
			fj, _ := strconv.ParseFloat(out[j], 64)
			return fi < fj
		})
	default:
		sort.Strings(out)
	}
	return out
}
