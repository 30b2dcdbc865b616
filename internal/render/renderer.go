// Package render turns resolved chart requests into PNG images. Each chart
// kind has its own drawing function; the dispatcher is an exhaustive switch
// over the kinds known to the charts package.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"tabviz/internal/charts"
)

// ErrEmptySeries is returned when a chart has nothing to draw
var ErrEmptySeries = errors.New("no data to plot")

// RenderError wraps a failure of the drawing layer
type RenderError struct {
	Kind charts.Kind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Config controls the image size
type Config struct {
	Width  int
	Height int
}

// DefaultConfig returns the default image size
func DefaultConfig() Config {
	return Config{Width: 1000, Height: 600}
}

// Renderer draws a resolved chart request
type Renderer interface {
	Render(ctx context.Context, res *charts.Resolution) ([]byte, error)
}

// PNGRenderer renders charts as PNG images
type PNGRenderer struct {
	cfg    Config
	logger *slog.Logger
}

// NewPNGRenderer creates a renderer, zero sizes fall back to the defaults
func NewPNGRenderer(cfg Config, logger *slog.Logger) *PNGRenderer {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PNGRenderer{cfg: cfg, logger: logger.With("component", "png_renderer")}
}

// Config returns the effective image size
func (p *PNGRenderer) Config() Config {
	return p.cfg
}

// Render draws the resolution. Every failure comes back as *RenderError.
func (p *PNGRenderer) Render(ctx context.Context, res *charts.Resolution) (out []byte, err error) {
	if res == nil || res.Args == nil {
		return nil, &RenderError{Err: errors.New("nothing to render")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		// the drawing library panics on some degenerate inputs
		if rec := recover(); rec != nil {
			out, err = nil, &RenderError{Kind: res.Kind, Err: fmt.Errorf("panic: %v", rec)}
		}
		if err != nil {
			p.logger.ErrorContext(ctx, "chart render failed", "kind", res.Kind.String(), "error", err)
			return
		}
		p.logger.DebugContext(ctx, "chart rendered",
			"kind", res.Kind.String(),
			"bytes", len(out),
			"duration_ms", time.Since(start).Milliseconds())
	}()

	var c chart.Chart
	switch a := res.Args.(type) {
	case charts.BarArgs:
		c, err = p.bar(a)
	case charts.LineArgs:
		c, err = p.line(a)
	case charts.HistogramArgs:
		c, err = p.histogram(a)
	case charts.HistogramKDEArgs:
		c, err = p.histogramKDE(a)
	case charts.BoxplotArgs:
		c, err = p.boxplot(a)
	case charts.ScatterArgs:
		c, err = p.scatter(a)
	case charts.CorrelogramArgs:
		c, err = p.correlogram(a)
	default:
		err = fmt.Errorf("no renderer for %T", res.Args)
	}
	if err != nil {
		return nil, &RenderError{Kind: res.Kind, Err: err}
	}

	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, &RenderError{Kind: res.Kind, Err: err}
	}
	return buf.Bytes(), nil
}
