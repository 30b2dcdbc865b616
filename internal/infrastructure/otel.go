package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"tabviz/internal/config"
	"tabviz/pkg/contracts"
)

// InstrumentationName names the tracer and meter of every tabviz component
const InstrumentationName = "tabviz"

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // stdout, none
	MetricExporter string // prometheus, none
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// NewOTelConfig derives the OpenTelemetry settings from the server config
func NewOTelConfig(cfg *config.Config) *OTelConfig {
	return &OTelConfig{
		ServiceName:    InstrumentationName,
		ServiceVersion: contracts.Version,
		Environment:    cfg.Server.Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}
}

// OTelProviders holds the OpenTelemetry providers. Tracer and Meter are
// always usable; they are the global no-op ones when a signal is disabled.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics and installs them globally
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		return nil, errors.New("opentelemetry config is required")
	}
	if logger == nil {
		logger = GetLogger()
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	p := &OTelProviders{Logger: logger}
	if cfg.EnableTracing {
		if err := p.startTracing(cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	if cfg.EnableMetrics {
		if err := p.startMetrics(cfg, res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer(InstrumentationName)
	}
	if p.Meter == nil {
		p.Meter = otel.Meter(InstrumentationName)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized",
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing", p.TracerProvider != nil),
		slog.Bool("metrics", p.MeterProvider != nil))
	return p, nil
}

func (p *OTelProviders) startTracing(cfg *OTelConfig, res *resource.Resource) error {
	switch cfg.TraceExporter {
	case "none":
		return nil
	case "stdout":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	p.TracerProvider = tp
	p.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	return nil
}

func (p *OTelProviders) startMetrics(cfg *OTelConfig, res *resource.Resource) error {
	switch cfg.MetricExporter {
	case "none":
		return nil
	case "prometheus":
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	p.MeterProvider = mp
	p.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	p.PrometheusHTTP = promhttp.Handler()
	return nil
}

// Shutdown flushes and stops the providers that were started
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// BusinessMetrics holds the HTTP, dataset and chart instruments
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	DatasetLoadsTotal metric.Int64Counter
	CleaningDuration  metric.Float64Histogram
	DatasetRows       metric.Int64Histogram
	CleaningWarnings  metric.Int64Counter

	ChartsRenderedTotal metric.Int64Counter
	ChartRenderDuration metric.Float64Histogram
	ChartCacheHits      metric.Int64Counter
	ChartCacheMisses    metric.Int64Counter
	ChartRejections     metric.Int64Counter

	SystemErrors metric.Int64Counter
}

// instruments creates meter instruments and keeps the first error
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.keep(name, err)
	return c
}

func (in *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.keep(name, err)
	return c
}

func (in *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	in.keep(name, err)
	return h
}

func (in *instruments) sizes(name, desc string) metric.Int64Histogram {
	h, err := in.meter.Int64Histogram(name, metric.WithDescription(desc))
	in.keep(name, err)
	return h
}

func (in *instruments) keep(name string, err error) {
	if err != nil && in.err == nil {
		in.err = fmt.Errorf("failed to create instrument %s: %w", name, err)
	}
}

// CreateBusinessMetrics creates the tabviz instruments on meter
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	in := &instruments{meter: meter}
	m := &BusinessMetrics{
		HTTPRequestsTotal:   in.counter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration: in.seconds("http_request_duration_seconds", "HTTP request duration in seconds"),
		HTTPActiveRequests:  in.gauge("http_active_requests", "Number of in-flight HTTP requests"),

		DatasetLoadsTotal: in.counter("dataset_loads_total", "Total number of dataset loads"),
		CleaningDuration:  in.seconds("dataset_cleaning_duration_seconds", "Dataset parse and clean duration in seconds"),
		DatasetRows:       in.sizes("dataset_rows", "Rows in the cleaned dataset"),
		CleaningWarnings:  in.counter("dataset_cleaning_warnings_total", "Total number of cleaning log warnings"),

		ChartsRenderedTotal: in.counter("charts_rendered_total", "Total number of chart requests served"),
		ChartRenderDuration: in.seconds("chart_render_duration_seconds", "Chart resolve and render duration in seconds"),
		ChartCacheHits:      in.counter("chart_cache_hits_total", "Total number of chart cache hits"),
		ChartCacheMisses:    in.counter("chart_cache_misses_total", "Total number of chart cache misses"),
		ChartRejections:     in.counter("chart_rejections_total", "Total number of chart requests rejected by validation"),

		SystemErrors: in.counter("system_errors_total", "Total number of internal errors"),
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// RecordDatasetLoad records metrics for one dataset load
func RecordDatasetLoad(ctx context.Context, metrics *BusinessMetrics, origin string, duration time.Duration, rows int, warnings int, err error) {
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("dataset.origin", origin),
		attribute.String("status", status),
	)
	metrics.DatasetLoadsTotal.Add(ctx, 1, attrs)
	metrics.CleaningDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		metrics.SystemErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("component", "dataset"),
			attribute.String("error.type", fmt.Sprintf("%T", err))))
		return
	}
	metrics.DatasetRows.Record(ctx, int64(rows))
	if warnings > 0 {
		metrics.CleaningWarnings.Add(ctx, int64(warnings))
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("dataset.loaded", trace.WithAttributes(
			attribute.String("dataset.origin", origin),
			attribute.Int("dataset.rows", rows),
			attribute.Float64("duration_seconds", duration.Seconds()),
		))
	}
}

// RecordChartRender records metrics for one chart request. outcome is one of
// rendered, cached, rejected or failed.
func RecordChartRender(ctx context.Context, metrics *BusinessMetrics, kind, outcome string, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("chart.kind", kind),
		attribute.String("outcome", outcome),
	)
	metrics.ChartsRenderedTotal.Add(ctx, 1, attrs)
	metrics.ChartRenderDuration.Record(ctx, duration.Seconds(), attrs)

	kindAttr := metric.WithAttributes(attribute.String("chart.kind", kind))
	switch outcome {
	case "cached":
		metrics.ChartCacheHits.Add(ctx, 1, kindAttr)
	case "rendered":
		metrics.ChartCacheMisses.Add(ctx, 1, kindAttr)
	case "rejected":
		metrics.ChartRejections.Add(ctx, 1, kindAttr)
	case "failed":
		metrics.SystemErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "render")))
	}
}
