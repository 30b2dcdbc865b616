package render

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// span is a numeric axis range
type span struct {
	min, max float64
}

// padded widens the span by a fraction of its length and guarantees a
// non-zero width
func (s span) padded(frac float64) span {
	if s.max <= s.min {
		return span{s.min - 0.5, s.max + 0.5}
	}
	d := (s.max - s.min) * frac
	return span{s.min - d, s.max + d}
}

func (s span) withZero() span {
	return span{math.Min(s.min, 0), math.Max(s.max, 0)}
}

func (s span) rangeOf() *chart.ContinuousRange {
	return &chart.ContinuousRange{Min: s.min, Max: s.max}
}

// toX maps a data value to a pixel column inside the canvas
func (s span) toX(cb chart.Box, v float64) int {
	return cb.Left + int(math.Round((v-s.min)/(s.max-s.min)*float64(cb.Width())))
}

// toY maps a data value to a pixel row inside the canvas
func (s span) toY(cb chart.Box, v float64) int {
	return cb.Bottom - int(math.Round((v-s.min)/(s.max-s.min)*float64(cb.Height())))
}

// palette returns n evenly spaced hues of equal lightness
func palette(n int) []drawing.Color {
	out := make([]drawing.Color, n)
	for i := range out {
		h := math.Mod(float64(i)*360/math.Max(float64(n), 1)+210, 360)
		out[i] = toDrawing(colorful.Hcl(h, 0.55, 0.6).Clamped(), 255)
	}
	return out
}

func withAlpha(c drawing.Color, a uint8) drawing.Color {
	c.A = a
	return c
}

func toDrawing(c colorful.Color, alpha uint8) drawing.Color {
	r, g, b := c.RGB255()
	return drawing.Color{R: r, G: g, B: b, A: alpha}
}

// categoryAxis puts one tick per label at integer positions
func categoryAxis(name string, labels []string) (chart.XAxis, span) {
	ticks := make([]chart.Tick, len(labels))
	for i, l := range labels {
		ticks[i] = chart.Tick{Value: float64(i), Label: l}
	}
	s := span{-0.5, float64(len(labels)) - 0.5}
	axis := chart.XAxis{Name: name, Ticks: ticks, Range: s.rangeOf()}
	if len(labels) > 6 {
		axis.TickStyle = chart.Style{TextRotationDegrees: 45}
	}
	return axis, s
}

// anchor is an invisible series that pins both axis ranges; charts drawn
// with custom elements still need one series
func anchor(x, y span) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Style:   chart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1},
		XValues: []float64{x.min, x.max},
		YValues: []float64{y.min, y.max},
	}
}

func newChart(title string, width, height int, x chart.XAxis, y chart.YAxis) chart.Chart {
	return chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 30, Bottom: 30}},
		XAxis:      x,
		YAxis:      y,
	}
}

func fillRect(r chart.Renderer, x0, y0, x1, y1 int, fill, stroke drawing.Color) {
	r.SetFillColor(fill)
	r.SetStrokeColor(stroke)
	r.SetStrokeWidth(1)
	r.MoveTo(x0, y0)
	r.LineTo(x1, y0)
	r.LineTo(x1, y1)
	r.LineTo(x0, y1)
	r.LineTo(x0, y0)
	r.Close()
	r.FillStroke()
}

func line(r chart.Renderer, x0, y0, x1, y1 int, color drawing.Color, width float64) {
	r.SetStrokeColor(color)
	r.SetStrokeWidth(width)
	r.MoveTo(x0, y0)
	r.LineTo(x1, y1)
	r.Stroke()
}

// legendElement draws a colour key in the top right corner of the canvas
func legendElement(names []string, colors []drawing.Color) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, defaults chart.Style) {
		if len(names) < 2 {
			return
		}
		r.SetFont(defaults.Font)
		r.SetFontSize(9)
		r.SetFontColor(drawing.ColorBlack)

		widest := 0
		for _, n := range names {
			if w := r.MeasureText(n).Width(); w > widest {
				widest = w
			}
		}
		const row, swatch, pad = 14, 9, 6
		left := cb.Right - widest - swatch - 3*pad
		top := cb.Top + pad
		fillRect(r, left, top, cb.Right-pad, top+len(names)*row+pad,
			drawing.Color{R: 255, G: 255, B: 255, A: 220}, drawing.Color{R: 200, G: 200, B: 200, A: 255})
		for i, n := range names {
			y := top + pad + i*row
			fillRect(r, left+pad, y, left+pad+swatch, y+swatch, colors[i%len(colors)], colors[i%len(colors)])
			r.SetFontColor(drawing.ColorBlack)
			r.Text(n, left+2*pad+swatch, y+swatch)
		}
	}
}
