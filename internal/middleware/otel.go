package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"tabviz/internal/infrastructure"
)

// OTelMiddleware opens a server span per request and records the HTTP
// request instruments
type OTelMiddleware struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewOTelMiddleware creates the request instrumentation middleware
func NewOTelMiddleware(providers *infrastructure.OTelProviders, metrics *infrastructure.BusinessMetrics) (*OTelMiddleware, error) {
	if providers == nil || metrics == nil {
		return nil, errors.New("otel middleware needs providers and metrics")
	}
	logger := providers.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &OTelMiddleware{
		tracer:  providers.Tracer,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Handler returns the middleware handler function. The span starts under
// the raw path and is renamed to the chi route once routing is done.
func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := m.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPathKey.String(r.URL.Path),
				semconv.ServerAddressKey.String(r.Host),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
				semconv.HTTPRequestBodySizeKey.Int64(r.ContentLength),
				semconv.ClientAddressKey.String(r.RemoteAddr),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			ctx = infrastructure.WithTraceID(ctx, sc.TraceID().String())
		}
		r = r.WithContext(ctx)

		m.metrics.HTTPActiveRequests.Add(ctx, 1)
		defer m.metrics.HTTPActiveRequests.Add(ctx, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(rec.status),
			semconv.HTTPResponseBodySizeKey.Int64(rec.bytes),
		)
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", route),
			attribute.Int("status_code", rec.status),
		)
		m.metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
		m.metrics.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), attrs)

		m.logger.DebugContext(ctx, "request traced",
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Duration("duration", elapsed),
			slog.Int64("bytes", rec.bytes))
	})
}

// statusRecorder remembers the status code and body size of a response
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int64
	written bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.written = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// WebSocketTraceMiddleware wraps the websocket upgrade in its own span. The
// span ends with the upgrade handler, which returns once the client leaves.
func WebSocketTraceMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	tracer := otel.Tracer(infrastructure.InstrumentationName + ".websocket")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "websocket.upgrade",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRouteKey.String("/ws"),
					attribute.String("websocket.origin", r.Header.Get("Origin")),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				ctx = infrastructure.WithTraceID(ctx, sc.TraceID().String())
			}
			logger.DebugContext(ctx, "websocket upgrade requested",
				slog.String("origin", r.Header.Get("Origin")))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type metricsKey struct{}

// BusinessMetricsMiddleware makes the business metrics reachable from
// request handlers
func BusinessMetricsMiddleware(metrics *infrastructure.BusinessMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), metricsKey{}, metrics)))
		})
	}
}

// GetBusinessMetricsFromContext returns the metrics installed by
// BusinessMetricsMiddleware, or nil
func GetBusinessMetricsFromContext(ctx context.Context) *infrastructure.BusinessMetrics {
	metrics, _ := ctx.Value(metricsKey{}).(*infrastructure.BusinessMetrics)
	return metrics
}

// ChartTraceHandler wraps the chart endpoints in an internal span carrying
// the request and PNG sizes. Server errors also count as system errors.
func ChartTraceHandler(handler http.HandlerFunc) http.HandlerFunc {
	tracer := otel.Tracer(infrastructure.InstrumentationName + ".charts")
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "chart.request",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.Int64("chart.request_bytes", r.ContentLength)),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r.WithContext(ctx))

		span.SetAttributes(
			attribute.Int("chart.status_code", rec.status),
			attribute.Int64("chart.png_bytes", rec.bytes),
		)
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
			RecordSystemError(ctx, http.StatusText(rec.status), "charts")
		}
	}
}

// RecordSystemError counts an internal failure of component
func RecordSystemError(ctx context.Context, errorType, component string) {
	metrics := GetBusinessMetricsFromContext(ctx)
	if metrics == nil {
		return
	}
	metrics.SystemErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
		attribute.String("component", component),
	))
}
