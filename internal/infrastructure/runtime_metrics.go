package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics records Go runtime gauges for the server process
type RuntimeMetrics struct {
	goroutines    metric.Int64Gauge
	heapInUse     metric.Int64Gauge
	memorySystem  metric.Int64Gauge
	gcCount       metric.Int64Counter
	gcPause       metric.Float64Histogram
	processUptime metric.Float64Gauge

	lastNumGC uint32
}

// RuntimeStats is one runtime sample
type RuntimeStats struct {
	Goroutines   int64
	HeapInUse    int64
	MemorySystem int64
	GCCount      uint32
	LastGCPause  time.Duration
	Uptime       time.Duration
	Timestamp    time.Time
}

// NewRuntimeMetrics registers the runtime instruments on meter
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	rm := &RuntimeMetrics{}
	var err error

	if rm.goroutines, err = meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	); err != nil {
		return nil, err
	}

	if rm.heapInUse, err = meter.Int64Gauge(
		"system_memory_heap_inuse_bytes",
		metric.WithDescription("Heap bytes in use"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if rm.memorySystem, err = meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if rm.gcCount, err = meter.Int64Counter(
		"system_gc_total",
		metric.WithDescription("Completed GC cycles"),
	); err != nil {
		return nil, err
	}

	if rm.gcPause, err = meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Most recent GC pause per sample"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if rm.processUptime, err = meter.Float64Gauge(
		"system_uptime_seconds",
		metric.WithDescription("Process uptime"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return rm, nil
}

// Collect samples the runtime and records the gauges
func (rm *RuntimeMetrics) Collect(ctx context.Context, startTime time.Time) *RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &RuntimeStats{
		Goroutines:   int64(runtime.NumGoroutine()),
		HeapInUse:    int64(memStats.HeapInuse),
		MemorySystem: int64(memStats.Sys),
		GCCount:      memStats.NumGC,
		LastGCPause:  time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256]),
		Uptime:       time.Since(startTime),
		Timestamp:    time.Now(),
	}

	rm.goroutines.Record(ctx, stats.Goroutines)
	rm.heapInUse.Record(ctx, stats.HeapInUse)
	rm.memorySystem.Record(ctx, stats.MemorySystem)
	rm.processUptime.Record(ctx, stats.Uptime.Seconds())

	if delta := stats.GCCount - rm.lastNumGC; delta > 0 {
		rm.gcCount.Add(ctx, int64(delta))
		rm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}
	rm.lastNumGC = stats.GCCount

	return stats
}

// RuntimeMetricsCollector samples runtime metrics on an interval
type RuntimeMetricsCollector struct {
	metrics   *RuntimeMetrics
	startTime time.Time
	interval  time.Duration

	mu       sync.Mutex
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRuntimeMetricsCollector creates a collector sampling every interval
func NewRuntimeMetricsCollector(meter metric.Meter, interval time.Duration) (*RuntimeMetricsCollector, error) {
	metrics, err := NewRuntimeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &RuntimeMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start samples until ctx is done or Stop is called. It blocks.
func (c *RuntimeMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Sample(ctx)

	for {
		select {
		case <-ticker.C:
			c.Sample(ctx)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sample records one sample now
func (c *RuntimeMetricsCollector) Sample(ctx context.Context) *RuntimeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics.Collect(ctx, c.startTime)
}

// Stop ends Start. Calling it more than once is safe.
func (c *RuntimeMetricsCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
