package render

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tabviz/internal/charts"
)

func aggregateTitle(agg charts.Aggregation, x, y, group string) string {
	title := fmt.Sprintf("%s by %s", agg, x)
	if agg != charts.AggCount {
		title = fmt.Sprintf("%s of %s by %s", agg, y, x)
	}
	if group != "" {
		title += " and " + group
	}
	return title
}

func yAxisName(agg charts.Aggregation, y string) string {
	if agg == charts.AggCount {
		return "count"
	}
	return fmt.Sprintf("%s(%s)", agg, y)
}

// valueSpan is the range of all present table values
func valueSpan(t charts.Table) (span, bool) {
	s := span{math.Inf(1), math.Inf(-1)}
	for i := range t.Values {
		for j, v := range t.Values[i] {
			if !t.Present[i][j] || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			s.min = math.Min(s.min, v)
			s.max = math.Max(s.max, v)
		}
	}
	return s, !math.IsInf(s.min, 1)
}

func (p *PNGRenderer) bar(a charts.BarArgs) (chart.Chart, error) {
	t := a.Table
	ys, ok := valueSpan(t)
	if !ok || len(t.Categories) == 0 {
		return chart.Chart{}, ErrEmptySeries
	}
	ys = ys.withZero().padded(0.05)
	xAxis, xs := categoryAxis(a.X, t.Categories)
	yAxis := chart.YAxis{Name: yAxisName(a.Aggregation, a.Y), Range: ys.rangeOf()}

	c := newChart(aggregateTitle(a.Aggregation, a.X, a.Y, a.Group), p.cfg.Width, p.cfg.Height, xAxis, yAxis)
	c.Series = []chart.Series{anchor(xs, ys)}

	colors := palette(len(t.Series))
	c.Elements = []chart.Renderable{barsElement(t, xs, ys, colors)}
	if a.Group != "" {
		c.Elements = append(c.Elements, legendElement(t.Series, colors))
	}
	return c, nil
}

// barsElement draws side by side bars per category, one slot per series
func barsElement(t charts.Table, xs, ys span, colors []drawing.Color) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, _ chart.Style) {
		const groupWidth = 0.8
		slot := groupWidth / float64(len(t.Series))
		base := ys.toY(cb, 0)
		for s := range t.Series {
			stroke := colors[s]
			fill := withAlpha(stroke, 210)
			for c := range t.Categories {
				if !t.Present[s][c] {
					continue
				}
				left := float64(c) - groupWidth/2 + float64(s)*slot
				x0, x1 := xs.toX(cb, left), xs.toX(cb, left+slot)
				if x1 <= x0 {
					x1 = x0 + 1
				}
				y := ys.toY(cb, t.Values[s][c])
				fillRect(r, x0, y, x1, base, fill, stroke)
			}
		}
	}
}

func (p *PNGRenderer) line(a charts.LineArgs) (chart.Chart, error) {
	t := a.Table
	ys, ok := valueSpan(t)
	if !ok || len(t.Categories) == 0 {
		return chart.Chart{}, ErrEmptySeries
	}
	ys = ys.padded(0.05)
	xAxis, _ := categoryAxis(a.X, t.Categories)
	yAxis := chart.YAxis{Name: yAxisName(a.Aggregation, a.Y), Range: ys.rangeOf()}

	c := newChart(aggregateTitle(a.Aggregation, a.X, a.Y, a.Group), p.cfg.Width, p.cfg.Height, xAxis, yAxis)

	colors := palette(len(t.Series))
	for s, name := range t.Series {
		var px, py []float64
		for i := range t.Categories {
			if t.Present[s][i] {
				px = append(px, float64(i))
				py = append(py, t.Values[s][i])
			}
		}
		if len(px) == 0 {
			continue
		}
		c.Series = append(c.Series, chart.ContinuousSeries{
			Name: name,
			Style: chart.Style{
				StrokeColor: colors[s],
				StrokeWidth: 2,
				DotColor:    colors[s],
				DotWidth:    3,
			},
			XValues: px,
			YValues: py,
		})
	}
	if len(c.Series) == 0 {
		return chart.Chart{}, ErrEmptySeries
	}
	if a.Group != "" {
		c.Elements = []chart.Renderable{chart.Legend(&c)}
	}
	return c, nil
}
