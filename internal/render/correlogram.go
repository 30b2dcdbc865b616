package render

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tabviz/internal/charts"
)

var (
	corrNegative = colorful.Color{R: 0.13, G: 0.40, B: 0.67}
	corrNeutral  = colorful.Color{R: 0.97, G: 0.97, B: 0.97}
	corrPositive = colorful.Color{R: 0.70, G: 0.09, B: 0.17}
	corrMissing  = drawing.Color{R: 210, G: 210, B: 210, A: 255}
)

// divergingColor maps a coefficient in [-1, 1] onto a blue-white-red scale
func divergingColor(v float64) drawing.Color {
	if math.IsNaN(v) {
		return corrMissing
	}
	v = math.Max(-1, math.Min(1, v))
	if v < 0 {
		return toDrawing(corrNeutral.BlendLab(corrNegative, -v).Clamped(), 255)
	}
	return toDrawing(corrNeutral.BlendLab(corrPositive, v).Clamped(), 255)
}

func (p *PNGRenderer) correlogram(a charts.CorrelogramArgs) (chart.Chart, error) {
	n := len(a.Columns)
	if n == 0 || len(a.Matrix) != n {
		return chart.Chart{}, ErrEmptySeries
	}
	xAxis, xs := categoryAxis("", a.Columns)

	// row 0 sits at the top
	yTicks := make([]chart.Tick, n)
	for i, name := range a.Columns {
		yTicks[i] = chart.Tick{Value: float64(n - 1 - i), Label: name}
	}
	ys := span{-0.5, float64(n) - 0.5}
	c := newChart("Correlation matrix", p.cfg.Width, p.cfg.Height, xAxis,
		chart.YAxis{Ticks: yTicks, Range: ys.rangeOf()})
	c.Series = []chart.Series{anchor(xs, ys)}
	c.Elements = []chart.Renderable{heatmapElement(a.Matrix, xs, ys)}
	return c, nil
}

// heatmapElement fills one annotated cell per matrix entry
func heatmapElement(m [][]float64, xs, ys span) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, defaults chart.Style) {
		n := len(m)
		r.SetFont(defaults.Font)
		r.SetFontSize(10)
		for i := range m {
			row := float64(n - 1 - i)
			y0, y1 := ys.toY(cb, row+0.5), ys.toY(cb, row-0.5)
			for j, v := range m[i] {
				x0, x1 := xs.toX(cb, float64(j)-0.5), xs.toX(cb, float64(j)+0.5)
				fillRect(r, x0, y0, x1, y1, divergingColor(v), drawing.ColorWhite)

				label := "n/a"
				if !math.IsNaN(v) {
					label = fmt.Sprintf("%.2f", v)
				}
				text := drawing.ColorBlack
				if math.Abs(v) > 0.6 {
					text = drawing.ColorWhite
				}
				box := r.MeasureText(label)
				r.SetFontColor(text)
				r.Text(label, (x0+x1-box.Width())/2, (y0+y1+box.Height())/2)
			}
		}
	}
}
