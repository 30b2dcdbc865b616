package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"tabviz/internal/services"
)

// HealthHandler serves the unauthenticated health, version and stats routes
type HealthHandler struct {
	service HealthServiceInterface
	logger  *slog.Logger
}

func NewHealthHandler(service HealthServiceInterface, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, h.service.HealthCheck(r.Context()))
}

// ReadinessCheck handles GET /api/health/ready
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, h.service.ReadinessCheck(r.Context()))
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, h.service.LivenessCheck(r.Context()))
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}

// Stats handles GET /api/stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, h.service.SystemStats(r.Context()))
}

// writeStatus answers 503 for a not_ready report so orchestrators stop
// routing traffic to this instance.
func (h *HealthHandler) writeStatus(w http.ResponseWriter, r *http.Request, status services.HealthStatus) {
	if status.Status == "not_ready" {
		h.logger.WarnContext(r.Context(), "readiness check failed", slog.Any("services", status.Services))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}
