package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tabviz/internal/charts"
	"tabviz/internal/dataprocessing"
	"tabviz/internal/files"
	apierrors "tabviz/internal/errors"
	"tabviz/internal/services"
	"tabviz/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newErrorHandler() *apierrors.ErrorHandler {
	return apierrors.NewErrorHandler(quietLogger(), false)
}

// decodeBody unmarshals a JSON response into a generic map
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// MockDatasetService is a mock implementation of DatasetServiceInterface
type MockDatasetService struct {
	mock.Mock
}

func (m *MockDatasetService) LoadPath(ctx context.Context, path string) (*services.DatasetSummary, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DatasetSummary), args.Error(1)
}

func (m *MockDatasetService) Upload(ctx context.Context, name string, size int64, r io.Reader) (*services.DatasetSummary, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(name, string(data))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DatasetSummary), args.Error(1)
}

func (m *MockDatasetService) Summary(ctx context.Context) (*services.DatasetSummary, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DatasetSummary), args.Error(1)
}

func (m *MockDatasetService) Columns(ctx context.Context) ([]dataprocessing.ColumnInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dataprocessing.ColumnInfo), args.Error(1)
}

func (m *MockDatasetService) DTypes(ctx context.Context) (map[string]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockDatasetService) NullPercentages(ctx context.Context) (map[string]float64, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockDatasetService) UniqueCounts(ctx context.Context) (map[string]int, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockDatasetService) UniqueValues(ctx context.Context, n int) (map[string][]any, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]any), args.Error(1)
}

func (m *MockDatasetService) Describe(ctx context.Context) ([]dataprocessing.ColumnSummary, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dataprocessing.ColumnSummary), args.Error(1)
}

func (m *MockDatasetService) Preview(ctx context.Context, n int) ([]map[string]any, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockDatasetService) ColumnValues(ctx context.Context, column, bucket string) ([]string, error) {
	args := m.Called(column, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDatasetService) CleaningLog(ctx context.Context) (*services.CleaningReport, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CleaningReport), args.Error(1)
}

func (m *MockDatasetService) CastTypes(ctx context.Context, dtypes map[string]string) (*services.DatasetSummary, error) {
	args := m.Called(dtypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DatasetSummary), args.Error(1)
}

func (m *MockDatasetService) Export(ctx context.Context, bom *bool) (*services.CSVExport, error) {
	args := m.Called(bom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CSVExport), args.Error(1)
}

func (m *MockDatasetService) History(ctx context.Context, limit int) ([]storage.LoadRecord, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.LoadRecord), args.Error(1)
}

func (m *MockDatasetService) AvailableFiles(ctx context.Context) ([]files.DatasetFile, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]files.DatasetFile), args.Error(1)
}

// MockChartService is a mock implementation of ChartServiceInterface
type MockChartService struct {
	mock.Mock
}

func (m *MockChartService) Render(ctx context.Context, req charts.Request) (*services.ChartImage, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ChartImage), args.Error(1)
}

// MockHealthService is a mock implementation of HealthServiceInterface
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) Version() services.VersionReport {
	return m.Called().Get(0).(services.VersionReport)
}

func (m *MockHealthService) SystemStats(ctx context.Context) services.SystemStats {
	return m.Called().Get(0).(services.SystemStats)
}
