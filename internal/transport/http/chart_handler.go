package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tabviz/internal/charts"
	apierrors "tabviz/internal/errors"
	custommw "tabviz/internal/middleware"
	api "tabviz/pkg/contracts/api/v1"
)

// ChartHandler serves chart rendering under /api/charts
type ChartHandler struct {
	service      ChartServiceInterface
	validator    *custommw.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewChartHandler creates a chart handler
func NewChartHandler(service ChartServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ChartHandler {
	return &ChartHandler{
		service:      service,
		validator:    custommw.NewValidationMiddleware(logger, errorHandler),
		logger:       logger.With(slog.String("component", "chart_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the chart routes
func (h *ChartHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/kinds", h.Kinds)
	r.With(custommw.ContentTypeValidator("application/json"), h.validator.ValidateRequest).
		Post("/", h.Render)
	return r
}

// Render handles POST /api/charts. The response body is the PNG image.
func (h *ChartHandler) Render(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var req api.ChartRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	img, err := h.service.Render(r.Context(), charts.Request{
		Kind:        req.Kind,
		XColumn:     req.XColumn,
		YColumn:     req.YColumn,
		Aggregation: req.Aggregation,
		GroupColumn: req.GroupColumn,
		XBucket:     req.XBucket,
		GroupBucket: req.GroupBucket,
		GroupValues: req.GroupValues,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "chart request failed",
			slog.String("request_id", reqID),
			slog.String("kind", req.Kind),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "chart rendered",
		slog.String("request_id", reqID),
		slog.String("kind", img.Kind.String()),
		slog.Bool("cached", img.Cached),
		slog.Int("bytes", len(img.PNG)),
	)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img.PNG)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Dataset-Snapshot", img.SnapshotID)
	w.Header().Set("X-Chart-Cache", strconv.FormatBool(img.Cached))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img.PNG); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write chart",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
	}
}

// Kinds handles GET /api/charts/kinds and lists what a request may name
func (h *ChartHandler) Kinds(w http.ResponseWriter, r *http.Request) {
	kinds := make([]string, 0, len(charts.Kinds()))
	for _, k := range charts.Kinds() {
		kinds = append(kinds, k.String())
	}
	render.JSON(w, r, envelope{
		"status": "success",
		"data": map[string]interface{}{
			"kinds":        kinds,
			"aggregations": charts.Aggregations(),
			"buckets":      charts.Buckets(),
		},
	})
}
