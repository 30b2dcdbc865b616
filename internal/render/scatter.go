package render

import (
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"tabviz/internal/charts"
)

func (p *PNGRenderer) scatter(a charts.ScatterArgs) (chart.Chart, error) {
	xs := span{math.Inf(1), math.Inf(-1)}
	ys := span{math.Inf(1), math.Inf(-1)}
	points := 0
	for _, s := range a.Series {
		for i := range s.X {
			xs.min, xs.max = math.Min(xs.min, s.X[i]), math.Max(xs.max, s.X[i])
			ys.min, ys.max = math.Min(ys.min, s.Y[i]), math.Max(ys.max, s.Y[i])
			points++
		}
	}
	if points == 0 {
		return chart.Chart{}, ErrEmptySeries
	}
	xs, ys = xs.padded(0.03), ys.padded(0.05)

	xAxis := chart.XAxis{Name: a.X, Range: xs.rangeOf()}
	if a.XIsTime {
		xAxis.ValueFormatter = unixDateFormatter
	}
	title := a.Y + " vs " + a.X
	if a.Group != "" {
		title += " by " + a.Group
	}
	c := newChart(title, p.cfg.Width, p.cfg.Height, xAxis, chart.YAxis{Name: a.Y, Range: ys.rangeOf()})

	colors := palette(len(a.Series))
	for i, s := range a.Series {
		if len(s.X) == 0 {
			continue
		}
		c.Series = append(c.Series, chart.ContinuousSeries{
			Name: s.Name,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    withAlpha(colors[i], 170),
				DotWidth:    3,
			},
			XValues: s.X,
			YValues: s.Y,
		})
	}
	if a.Group != "" {
		c.Elements = []chart.Renderable{chart.Legend(&c)}
	}
	return c, nil
}

// unixDateFormatter labels ticks holding unix seconds as calendar dates
func unixDateFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return time.Unix(int64(f), 0).UTC().Format("2006-01-02")
}
