package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"tabviz/internal/session"
	"tabviz/pkg/contracts"
)

// ClientCounter reports connected WebSocket clients
type ClientCounter interface {
	ClientCount() int
}

// CacheSizer reports the number of cached charts
type CacheSizer interface {
	Len() int
}

// HealthDeps are the components a HealthService inspects. Any of them may
// be nil.
type HealthDeps struct {
	DataDir string
	Store   *session.Store
	Hub     ClientCounter
	Cache   CacheSizer
	Logger  *slog.Logger
}

const (
	statusReady    = "ready"
	statusNotReady = "not_ready"
)

// HealthService answers the health, readiness, version and stats endpoints
type HealthService struct {
	deps      HealthDeps
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the body of every health endpoint
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth is one component's entry in a readiness report
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// VersionReport is returned by GET /api/version
type VersionReport struct {
	contracts.VersionInfo
	StartTime     time.Time `json:"start_time"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// SystemStats is returned by GET /api/stats
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	DatasetLoaded    bool    `json:"dataset_loaded"`
	DatasetVersion   uint64  `json:"dataset_version"`
	DatasetRows      int     `json:"dataset_rows"`
	DatasetColumns   int     `json:"dataset_columns"`
	CachedCharts     int     `json:"cached_charts"`
	WebSocketClients int     `json:"websocket_clients"`
	Goroutines       int     `json:"goroutines"`
}

func NewHealthService(deps HealthDeps) *HealthService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		deps:      deps,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck reports that the process is serving
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return hs.status("ok")
}

// ReadinessCheck runs every component check. The overall status is
// not_ready as soon as one component is.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	checks := map[string]func() ServiceHealth{
		"dataset":     hs.checkDataset,
		"websocket":   hs.checkWebSocket,
		"chart_cache": hs.checkCache,
		"data":        hs.checkDataDir,
	}

	status := hs.status(statusReady)
	status.Services = make(map[string]ServiceHealth, len(checks))
	for name, check := range checks {
		sh := check()
		status.Services[name] = sh
		if sh.Status != statusReady {
			status.Status = statusNotReady
		}
	}

	if status.Status != statusReady {
		hs.logger.DebugContext(ctx, "readiness degraded", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck reports process uptime and goroutine count
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	status := hs.status("alive")
	status.Runtime = map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"goroutines": runtime.NumGoroutine(),
	}
	return status
}

// Version describes the running binary
func (hs *HealthService) Version() VersionReport {
	return VersionReport{
		VersionInfo:   contracts.GetVersionInfo(),
		StartTime:     hs.startTime,
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
	}
}

// SystemStats summarizes the session and its consumers
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}
	if store := hs.deps.Store; store != nil {
		stats.DatasetVersion = store.Version()
		if snap := store.Current(); snap != nil {
			stats.DatasetLoaded = true
			stats.DatasetRows = snap.Frame.NumRows()
			stats.DatasetColumns = snap.Frame.NumColumns()
		}
	}
	if hs.deps.Cache != nil {
		stats.CachedCharts = hs.deps.Cache.Len()
	}
	if hs.deps.Hub != nil {
		stats.WebSocketClients = hs.deps.Hub.ClientCount()
	}
	return stats
}

func (hs *HealthService) status(s string) HealthStatus {
	return HealthStatus{Status: s, Timestamp: time.Now(), Version: contracts.Version}
}

// checkDataset reports the current snapshot. An empty session is still
// ready; dataset endpoints answer 409 until something is loaded.
func (hs *HealthService) checkDataset() ServiceHealth {
	if hs.deps.Store == nil {
		return ServiceHealth{Status: statusNotReady, Message: "session store not initialized"}
	}
	snap := hs.deps.Store.Current()
	if snap == nil {
		return ServiceHealth{Status: statusReady, Message: "no dataset loaded"}
	}
	return ServiceHealth{
		Status:  statusReady,
		Message: fmt.Sprintf("%s: %d rows, %d columns", snap.Source, snap.Frame.NumRows(), snap.Frame.NumColumns()),
		Uptime:  time.Since(snap.LoadedAt).Round(time.Second).String(),
	}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.deps.Hub == nil {
		return ServiceHealth{Status: statusReady, Message: "websocket events disabled"}
	}
	return ServiceHealth{Status: statusReady, Message: fmt.Sprintf("%d clients connected", hs.deps.Hub.ClientCount())}
}

func (hs *HealthService) checkCache() ServiceHealth {
	if hs.deps.Cache == nil {
		return ServiceHealth{Status: statusReady, Message: "chart cache disabled"}
	}
	return ServiceHealth{Status: statusReady, Message: fmt.Sprintf("%d charts cached", hs.deps.Cache.Len())}
}

func (hs *HealthService) checkDataDir() ServiceHealth {
	dir := hs.deps.DataDir
	if dir == "" {
		return ServiceHealth{Status: statusReady, Message: "no data directory configured"}
	}
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return ServiceHealth{Status: statusNotReady, Message: fmt.Sprintf("data directory not accessible: %v", err)}
	case !info.IsDir():
		return ServiceHealth{Status: statusNotReady, Message: fmt.Sprintf("data path is not a directory: %s", dir)}
	}
	return ServiceHealth{Status: statusReady, Message: "data directory is accessible"}
}
