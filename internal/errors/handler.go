package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem type URIs (RFC 7807)
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypeUnauthorized     = "/errors/unauthorized"
	TypeForbidden        = "/errors/forbidden"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"

	TypeNoDataset         = "/errors/dataset/not-loaded"
	TypeDatasetUnreadable = "/errors/dataset/unreadable"
	TypeCleaningFailed    = "/errors/dataset/cleaning-failed"
	TypeColumnNotFound    = "/errors/dataset/column-not-found"
	TypeInvalidChart      = "/errors/chart/invalid-request"
	TypeRenderFailed      = "/errors/chart/render-failed"
)

// codeTypes pins error codes whose problem type differs from what their
// status alone would give.
var codeTypes = map[string]string{
	CodeNoDataset:         TypeNoDataset,
	CodeDatasetUnreadable: TypeDatasetUnreadable,
	CodeCleaningFailed:    TypeCleaningFailed,
	CodeColumnNotFound:    TypeColumnNotFound,
	CodeInvalidChart:      TypeInvalidChart,
	CodeRenderFailed:      TypeRenderFailed,
}

var statusTypes = map[int]string{
	http.StatusBadRequest:            TypeValidation,
	http.StatusUnauthorized:          TypeUnauthorized,
	http.StatusForbidden:             TypeForbidden,
	http.StatusNotFound:              TypeNotFound,
	http.StatusMethodNotAllowed:      TypeMethodNotAllowed,
	http.StatusConflict:              TypeConflict,
	http.StatusRequestEntityTooLarge: TypePayloadTooLarge,
	http.StatusUnsupportedMediaType:  TypeUnsupportedMedia,
	http.StatusUnprocessableEntity:   TypeValidation,
	http.StatusTooManyRequests:       TypeRateLimit,
	http.StatusServiceUnavailable:    TypeServiceDown,
	http.StatusGatewayTimeout:        TypeTimeout,
}

// ProblemType returns the problem type URI for an error code and status
func ProblemType(code string, status int) string {
	if t, ok := codeTypes[code]; ok {
		return t
	}
	if t, ok := statusTypes[status]; ok {
		return t
	}
	return TypeInternal
}

// ErrorHandler renders every handler error as RFC 7807 problem details
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and writes its problem details. A nil err writes
// nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.toProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", stackTrace())
	}
	_ = render.Render(w, r, problem)
}

func (h *ErrorHandler) toProblem(err error, r *http.Request) *ProblemDetails {
	var apiErr *APIError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &apiErr):
		problem := NewProblemDetails(apiErr.StatusCode, ProblemType(apiErr.ErrorCode, apiErr.StatusCode),
			http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path).
			WithExtension("error_code", apiErr.ErrorCode)
		if apiErr.Details != nil {
			problem.WithExtension("details", apiErr.Details)
		}
		return problem
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", r.URL.Path)
	case errors.As(err, &tooLarge):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			fmt.Sprintf("The request body exceeds %d bytes", tooLarge.Limit), r.URL.Path)
	}
	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request", r.URL.Path)
}

// NotFound is the router's 404 handler
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	_ = render.Render(w, r, problem)
}

// MethodNotAllowed is the router's 405 handler
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	_ = render.Render(w, r, problem)
}

func stackTrace() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}
