package http

import (
	"context"
	"io"

	"tabviz/internal/charts"
	"tabviz/internal/dataprocessing"
	"tabviz/internal/files"
	"tabviz/internal/services"
	"tabviz/internal/storage"
)

// DatasetServiceInterface defines the dataset operations exposed over HTTP
type DatasetServiceInterface interface {
	LoadPath(ctx context.Context, path string) (*services.DatasetSummary, error)
	Upload(ctx context.Context, name string, size int64, r io.Reader) (*services.DatasetSummary, error)
	Summary(ctx context.Context) (*services.DatasetSummary, error)

	// Introspection
	Columns(ctx context.Context) ([]dataprocessing.ColumnInfo, error)
	DTypes(ctx context.Context) (map[string]string, error)
	NullPercentages(ctx context.Context) (map[string]float64, error)
	UniqueCounts(ctx context.Context) (map[string]int, error)
	UniqueValues(ctx context.Context, n int) (map[string][]any, error)
	Describe(ctx context.Context) ([]dataprocessing.ColumnSummary, error)
	Preview(ctx context.Context, n int) ([]map[string]any, error)
	ColumnValues(ctx context.Context, column, bucket string) ([]string, error)
	CleaningLog(ctx context.Context) (*services.CleaningReport, error)

	CastTypes(ctx context.Context, dtypes map[string]string) (*services.DatasetSummary, error)
	Export(ctx context.Context, bom *bool) (*services.CSVExport, error)
	History(ctx context.Context, limit int) ([]storage.LoadRecord, error)
	AvailableFiles(ctx context.Context) ([]files.DatasetFile, error)
}

// ChartServiceInterface defines the chart operations exposed over HTTP
type ChartServiceInterface interface {
	Render(ctx context.Context, req charts.Request) (*services.ChartImage, error)
}

// HealthServiceInterface defines the health operations exposed over HTTP
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() services.VersionReport
	SystemStats(ctx context.Context) services.SystemStats
}
