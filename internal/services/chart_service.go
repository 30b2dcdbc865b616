package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tabviz/internal/cache"
	"tabviz/internal/charts"
	"tabviz/internal/infrastructure"
	"tabviz/internal/render"
	"tabviz/internal/session"
)

// Render outcomes recorded in metrics
const (
	OutcomeRendered = "rendered"
	OutcomeCached   = "cached"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// ChartCache stores rendered images keyed by dataset fingerprint and request
type ChartCache interface {
	Get(key uint64) ([]byte, bool, error)
	Put(key uint64, image []byte) error
}

// ChartDeps are the collaborators of a ChartService. Cache and Metrics are
// optional.
type ChartDeps struct {
	Store    *session.Store
	Resolver *charts.Resolver
	Renderer render.Renderer
	Cache    ChartCache
	Metrics  *infrastructure.BusinessMetrics
	Logger   *slog.Logger

	// Variant identifies the settings that change a rendered image for the
	// same dataset and request. It is mixed into every cache key.
	Variant []byte
}

// ChartVariant serializes the shaping constants and image size for
// ChartDeps.Variant
func ChartVariant(shaping charts.ResolverConfig, size render.Config) []byte {
	b, _ := json.Marshal(struct {
		Shaping charts.ResolverConfig `json:"shaping"`
		Size    render.Config         `json:"size"`
	}{shaping, size})
	return b
}

// ChartImage is a rendered chart
type ChartImage struct {
	Kind       charts.Kind
	PNG        []byte
	SnapshotID string
	Cached     bool
}

// ChartService resolves chart requests against the current snapshot and
// renders them
type ChartService struct {
	store    *session.Store
	resolver *charts.Resolver
	renderer render.Renderer
	cache    ChartCache
	variant  []byte
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewChartService creates a chart service
func NewChartService(deps ChartDeps) (*ChartService, error) {
	if deps.Store == nil || deps.Resolver == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("%w: store, resolver and renderer are required", ErrInvalidInput)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChartService{
		store:    deps.Store,
		resolver: deps.Resolver,
		renderer: deps.Renderer,
		cache:    deps.Cache,
		variant:  append([]byte(nil), deps.Variant...),
		metrics:  deps.Metrics,
		logger:   logger.With("component", "chart_service"),
	}, nil
}

// Render produces the PNG for req. Validation failures return ErrInvalidChart
// before anything is rendered; renderer failures return ErrRenderFailed.
func (s *ChartService) Render(ctx context.Context, req charts.Request) (*ChartImage, error) {
	start := time.Now()

	snap, err := s.store.Require()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDataset, err)
	}

	key := cache.Key(snap.Fingerprint, s.variant, req.CacheKey())
	if img, ok := s.cached(ctx, key); ok {
		kind, _ := charts.ParseKind(req.Kind)
		infrastructure.RecordChartRender(ctx, s.metrics, kind.String(), OutcomeCached, time.Since(start))
		return &ChartImage{Kind: kind, PNG: img, SnapshotID: snap.ID.String(), Cached: true}, nil
	}

	res, err := s.resolver.Resolve(ctx, req, snap.Frame)
	if err != nil {
		var verr *charts.ValidationError
		if errors.As(err, &verr) {
			infrastructure.RecordChartRender(ctx, s.metrics, req.Kind, OutcomeRejected, time.Since(start))
			s.logger.InfoContext(ctx, "chart request rejected",
				slog.String("kind", req.Kind),
				slog.String("field", verr.Field),
				slog.String("reason", verr.Message))
			return nil, fmt.Errorf("%w: %w", ErrInvalidChart, err)
		}
		return nil, err
	}

	img, err := s.renderer.Render(ctx, res)
	if err != nil {
		var rerr *render.RenderError
		if errors.As(err, &rerr) {
			infrastructure.RecordChartRender(ctx, s.metrics, res.Kind.String(), OutcomeFailed, time.Since(start))
			s.logger.ErrorContext(ctx, "chart rendering failed",
				slog.String("kind", res.Kind.String()),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(key, img); err != nil {
			s.logger.WarnContext(ctx, "failed to cache chart", slog.String("error", err.Error()))
		}
	}

	elapsed := time.Since(start)
	infrastructure.RecordChartRender(ctx, s.metrics, res.Kind.String(), OutcomeRendered, elapsed)
	s.logger.DebugContext(ctx, "chart rendered",
		slog.String("kind", res.Kind.String()),
		slog.String("snapshot_id", snap.ID.String()),
		slog.Int("rows", res.View.NumRows()),
		slog.Int("bytes", len(img)),
		slog.Duration("duration", elapsed))

	return &ChartImage{Kind: res.Kind, PNG: img, SnapshotID: snap.ID.String()}, nil
}

// Resolve validates and shapes a request without rendering it
func (s *ChartService) Resolve(ctx context.Context, req charts.Request) (*charts.Resolution, error) {
	snap, err := s.store.Require()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDataset, err)
	}
	res, err := s.resolver.Resolve(ctx, req, snap.Frame)
	if err != nil {
		if errors.Is(err, charts.ErrInvalidRequest) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidChart, err)
		}
		return nil, err
	}
	return res, nil
}

func (s *ChartService) cached(ctx context.Context, key uint64) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	img, ok, err := s.cache.Get(key)
	if err != nil {
		s.logger.WarnContext(ctx, "chart cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	return img, ok
}
