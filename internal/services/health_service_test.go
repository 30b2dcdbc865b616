package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabviz/internal/session"
	"tabviz/pkg/contracts"
)

func TestHealthService_Readiness(t *testing.T) {
	dir := t.TempDir()
	notDir := filepath.Join(dir, "ventas.csv")
	require.NoError(t, os.WriteFile(notDir, []byte("a\n1\n"), 0o644))

	tests := []struct {
		name       string
		deps       HealthDeps
		wantStatus string
		failing    string
	}{
		{"empty session is ready", HealthDeps{Store: session.NewStore(), DataDir: dir}, "ready", ""},
		{"missing store", HealthDeps{DataDir: dir}, "not_ready", "dataset"},
		{"missing data dir", HealthDeps{Store: session.NewStore(), DataDir: filepath.Join(dir, "nope")}, "not_ready", "data"},
		{"data path is a file", HealthDeps{Store: session.NewStore(), DataDir: notDir}, "not_ready", "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.deps.Logger = quietLogger()
			status := NewHealthService(tt.deps).ReadinessCheck(context.Background())

			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Len(t, status.Services, 4)
			if tt.failing != "" {
				assert.Equal(t, "not_ready", status.Services[tt.failing].Status)
			}
		})
	}
}

func TestHealthService_StatsWithDataset(t *testing.T) {
	store := session.NewStore()
	publish(store, session.NewSnapshot("ventas.csv", 1, chartFrame(), nil))

	hub := &MockWebSocketHub{}
	hub.On("ClientCount").Return(3)
	cache := &MockChartCache{}
	cache.On("Len").Return(5)

	hs := NewHealthService(HealthDeps{Store: store, Hub: hub, Cache: cache, Logger: quietLogger()})

	stats := hs.SystemStats(context.Background())
	assert.True(t, stats.DatasetLoaded)
	assert.Equal(t, 4, stats.DatasetRows)
	assert.Equal(t, 3, stats.DatasetColumns)
	assert.Equal(t, store.Version(), stats.DatasetVersion)
	assert.Equal(t, 5, stats.CachedCharts)
	assert.Equal(t, 3, stats.WebSocketClients)

	ready := hs.ReadinessCheck(context.Background())
	assert.Contains(t, ready.Services["dataset"].Message, "ventas.csv: 4 rows, 3 columns")
	assert.Equal(t, "3 clients connected", ready.Services["websocket"].Message)
}

func TestHealthService_VersionAndLiveness(t *testing.T) {
	hs := NewHealthService(HealthDeps{})

	v := hs.Version()
	assert.Equal(t, contracts.Version, v.Version)
	assert.Equal(t, contracts.APIVersion, v.APIVersion)
	assert.GreaterOrEqual(t, v.UptimeSeconds, 0.0)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")
	assert.Equal(t, "ok", hs.HealthCheck(context.Background()).Status)
}
