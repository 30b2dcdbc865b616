package render

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tabviz/internal/charts"
	"tabviz/internal/stats"
)

var (
	binFill   = drawing.Color{R: 76, G: 114, B: 176, A: 200}
	binStroke = drawing.Color{R: 255, G: 255, B: 255, A: 255}
	kdeStroke = drawing.Color{R: 196, G: 78, B: 82, A: 255}
)

func binSpans(bins []stats.Bin) (span, span, bool) {
	if len(bins) == 0 {
		return span{}, span{}, false
	}
	xs := span{bins[0].Low, bins[len(bins)-1].High}
	top := 0
	for _, b := range bins {
		if b.Count > top {
			top = b.Count
		}
	}
	if top == 0 || xs.max <= xs.min {
		return span{}, span{}, false
	}
	return xs, span{0, float64(top) * 1.05}, true
}

// binsElement draws one rectangle per histogram bin
func binsElement(bins []stats.Bin, xs, ys span) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, _ chart.Style) {
		base := ys.toY(cb, 0)
		for _, b := range bins {
			if b.Count == 0 {
				continue
			}
			fillRect(r, xs.toX(cb, b.Low), ys.toY(cb, float64(b.Count)), xs.toX(cb, b.High), base, binFill, binStroke)
		}
	}
}

func (p *PNGRenderer) histogram(a charts.HistogramArgs) (chart.Chart, error) {
	xs, ys, ok := binSpans(a.Bins)
	if !ok {
		return chart.Chart{}, ErrEmptySeries
	}
	c := newChart("Distribution of "+a.Y, p.cfg.Width, p.cfg.Height,
		chart.XAxis{Name: a.Y, Range: xs.rangeOf()},
		chart.YAxis{Name: "count", Range: ys.rangeOf()})
	c.Series = []chart.Series{anchor(xs, ys)}
	c.Elements = []chart.Renderable{binsElement(a.Bins, xs, ys)}
	return c, nil
}

func (p *PNGRenderer) histogramKDE(a charts.HistogramKDEArgs) (chart.Chart, error) {
	xs, ys, ok := binSpans(a.Bins)
	if !ok {
		return chart.Chart{}, ErrEmptySeries
	}
	for _, v := range a.CurveY {
		if v*1.05 > ys.max {
			ys.max = v * 1.05
		}
	}
	title := fmt.Sprintf("Distribution of %s (values in [%s, %s])", a.Y, formatTick(a.ClipLow), formatTick(a.ClipHigh))
	c := newChart(title, p.cfg.Width, p.cfg.Height,
		chart.XAxis{Name: a.Y, Range: xs.rangeOf()},
		chart.YAxis{Name: "count", Range: ys.rangeOf()})
	c.Series = []chart.Series{anchor(xs, ys)}
	// bins go under the curve, elements draw after series
	c.Elements = []chart.Renderable{binsElement(a.Bins, xs, ys)}
	if len(a.CurveX) > 1 {
		c.Elements = append(c.Elements, curveElement(a.CurveX, a.CurveY, xs, ys))
	}
	return c, nil
}

func curveElement(px, py []float64, xs, ys span) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, _ chart.Style) {
		r.SetStrokeColor(kdeStroke)
		r.SetStrokeWidth(2)
		r.MoveTo(xs.toX(cb, px[0]), ys.toY(cb, py[0]))
		for i := 1; i < len(px); i++ {
			r.LineTo(xs.toX(cb, px[i]), ys.toY(cb, py[i]))
		}
		r.Stroke()
	}
}

func formatTick(v float64) string {
	if math.Abs(v) >= 1000 || v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func (p *PNGRenderer) boxplot(a charts.BoxplotArgs) (chart.Chart, error) {
	if len(a.Boxes) == 0 {
		return chart.Chart{}, ErrEmptySeries
	}
	names := make([]string, len(a.Boxes))
	ys := span{math.Inf(1), math.Inf(-1)}
	for i, b := range a.Boxes {
		names[i] = b.Name
		ys.min = math.Min(ys.min, b.Min)
		ys.max = math.Max(ys.max, b.Max)
	}
	ys = ys.padded(0.05)

	title := "Box plot of " + a.Y
	xName := ""
	if a.Group != "" {
		title += " by " + a.Group
		xName = a.Group
	}
	xAxis, xs := categoryAxis(xName, names)
	c := newChart(title, p.cfg.Width, p.cfg.Height, xAxis, chart.YAxis{Name: a.Y, Range: ys.rangeOf()})
	c.Series = []chart.Series{anchor(xs, ys)}
	c.Elements = []chart.Renderable{boxesElement(a.Boxes, xs, ys, palette(len(a.Boxes)))}
	return c, nil
}

// boxesElement draws quartile boxes, median lines, whiskers and outliers
func boxesElement(boxes []charts.NamedBox, xs, ys span, colors []drawing.Color) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, _ chart.Style) {
		const half, capHalf = 0.3, 0.15
		dark := drawing.Color{R: 60, G: 60, B: 60, A: 255}
		for i, b := range boxes {
			center := float64(i)
			x0, x1 := xs.toX(cb, center-half), xs.toX(cb, center+half)
			cx := xs.toX(cb, center)
			c0, c1 := xs.toX(cb, center-capHalf), xs.toX(cb, center+capHalf)

			line(r, cx, ys.toY(cb, b.WhiskerLow), cx, ys.toY(cb, b.Q1), dark, 1)
			line(r, cx, ys.toY(cb, b.Q3), cx, ys.toY(cb, b.WhiskerHigh), dark, 1)
			line(r, c0, ys.toY(cb, b.WhiskerLow), c1, ys.toY(cb, b.WhiskerLow), dark, 1)
			line(r, c0, ys.toY(cb, b.WhiskerHigh), c1, ys.toY(cb, b.WhiskerHigh), dark, 1)

			q1, q3 := ys.toY(cb, b.Q1), ys.toY(cb, b.Q3)
			if q1 == q3 {
				q1++
			}
			fillRect(r, x0, q3, x1, q1, withAlpha(colors[i], 200), dark)
			med := ys.toY(cb, b.Median)
			line(r, x0, med, x1, med, dark, 2)

			for _, o := range b.Outliers {
				r.SetFillColor(drawing.ColorTransparent)
				r.SetStrokeColor(dark)
				r.SetStrokeWidth(1)
				r.Circle(3, cx, ys.toY(cb, o))
				r.Stroke()
			}
		}
	}
}
