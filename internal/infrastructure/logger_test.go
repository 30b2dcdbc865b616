package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"tabviz/internal/config"
)

func decodeLine(t *testing.T, line []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(line), &entry), string(line))
	return entry
}

func resetLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		CloseLogFile()
		slog.SetDefault(prev)
	})
}

func TestInitializeLogger_File(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "logs", "tabviz.log")

	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	})
	require.NoError(t, err)
	assert.Same(t, logger, GetLogger())

	again, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "stdout"})
	require.NoError(t, err)
	assert.Same(t, logger, again, "first logger wins")

	logger.Info("dataset loaded", "rows", 6)
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	entry := decodeLine(t, content)
	assert.Equal(t, "dataset loaded", entry["msg"])
	assert.EqualValues(t, 6, entry["rows"])
}

func TestInitializeLogger_BadPath(t *testing.T) {
	resetLogger(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := InitializeLogger(config.LoggingConfig{
		Output:   "file",
		FilePath: filepath.Join(blocker, "tabviz.log"),
	})
	assert.Error(t, err)
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	require.NoError(t, CloseLogFile())
	assert.Same(t, slog.Default(), GetLogger())
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.InfoContext(WithTraceID(context.Background(), "req-42"), "chart rendered")
	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, "req-42", entry["trace_id"])

	buf.Reset()
	logger.InfoContext(context.Background(), "no trace")
	entry = decodeLine(t, buf.Bytes())
	assert.NotContains(t, entry, "trace_id")

	buf.Reset()
	logger.With("component", "cleaner").WithGroup("cleaning").
		InfoContext(WithTraceID(context.Background(), "req-43"), "done", "dropped", 2)
	entry = decodeLine(t, buf.Bytes())
	assert.Equal(t, "cleaner", entry["component"])
	assert.Contains(t, entry, "cleaning")
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Equal(t, "abc", GetTraceID(WithTraceID(context.Background(), "abc")))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx), "falls back to the span")
	assert.Equal(t, "explicit", GetTraceID(WithTraceID(ctx, "explicit")))
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level      string
		debugShown bool
		infoShown  bool
		warnShown  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warning", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(config.LoggingConfig{Level: tt.level, Format: "text"}, &buf)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")

			out := buf.String()
			assert.Equal(t, tt.debugShown, strings.Contains(out, "msg=d"))
			assert.Equal(t, tt.infoShown, strings.Contains(out, "msg=i"))
			assert.Equal(t, tt.warnShown, strings.Contains(out, "msg=w"))
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(config.LoggingConfig{Format: "TEXT"}, &buf).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "time="))

	buf.Reset()
	NewLogger(config.LoggingConfig{Format: "json", Development: true}, &buf).Info("hello")
	entry := decodeLine(t, buf.Bytes())
	assert.Contains(t, entry, "source")
}
