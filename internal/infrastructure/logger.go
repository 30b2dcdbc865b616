package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"tabviz/internal/config"
)

var (
	loggerMu  sync.Mutex
	appLogger *slog.Logger
	logFile   *os.File
)

type traceIDKey struct{}

// InitializeLogger builds the process logger from cfg and installs it as the
// slog default. Only the first successful call takes effect.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if appLogger != nil {
		return appLogger, nil
	}

	out, file, err := logOutput(cfg)
	if err != nil {
		return nil, err
	}
	logFile = file
	appLogger = NewLogger(cfg, out)
	slog.SetDefault(appLogger)
	return appLogger, nil
}

// GetLogger returns the process logger, or slog.Default before
// InitializeLogger ran.
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if appLogger == nil {
		return slog.Default()
	}
	return appLogger
}

// NewLogger builds a standalone logger writing to out. The CLI uses it to
// log to stderr without touching the process logger.
func NewLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Development,
		Level:     levelFor(cfg.Level),
	}

	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(traceHandler{h})
}

// CloseLogFile releases the log file opened for "file" and "both" outputs
// and forgets the process logger.
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	appLogger = nil
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// WithTraceID stores the request trace id in ctx
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID returns the trace id stored by WithTraceID, falling back to
// the active OpenTelemetry span.
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok && id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func logOutput(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stdout, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}
	if output == "both" {
		return io.MultiWriter(os.Stdout, file), file, nil
	}
	return file, file, nil
}

// traceHandler adds trace_id to every record whose context carries one
type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}

func levelFor(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
