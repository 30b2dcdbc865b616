package http

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tabviz/internal/dataset"
	"tabviz/internal/exporter"
	"tabviz/internal/files"
	"tabviz/internal/services"
	"tabviz/internal/storage"
)

func sampleSummary() *services.DatasetSummary {
	return &services.DatasetSummary{
		ID:          "3c1f7a52-8d0e-4b7e-9a55-1f2e3d4c5b6a",
		Source:      "ventas.csv",
		Fingerprint: "9f86d081884c7d65",
		Rows:        4,
		Columns:     3,
		ColumnNames: []string{"fecha", "valor", "region"},
		DTypes:      map[string]string{"fecha": "datetime", "valor": "float64", "region": "string"},
		LoadedAt:    time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
	}
}

func noDataset() error {
	return fmt.Errorf("%w: session is empty", services.ErrNoDataset)
}

func serveDataset(h *DatasetHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDatasetHandler_Load(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		setupMock      func(*MockDatasetService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "loads path",
			body: `{"path":"/data/ventas.csv"}`,
			setupMock: func(m *MockDatasetService) {
				m.On("LoadPath", "/data/ventas.csv").Return(sampleSummary(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing path",
			body:           `{}`,
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:           "malformed json",
			body:           `{"path":`,
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_JSON",
		},
		{
			name:           "wrong content type",
			body:           `{"path":"/data/ventas.csv"}`,
			contentType:    "text/plain",
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedCode:   "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name: "unreadable file",
			body: `{"path":"/data/missing.csv"}`,
			setupMock: func(m *MockDatasetService) {
				m.On("LoadPath", "/data/missing.csv").
					Return(nil, fmt.Errorf("%w: file not found", services.ErrDatasetUnreadable))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "DATASET_UNREADABLE",
		},
		{
			name: "cleaning failure",
			body: `{"path":"/data/ventas.csv"}`,
			setupMock: func(m *MockDatasetService) {
				m.On("LoadPath", "/data/ventas.csv").
					Return(nil, fmt.Errorf("%w: context canceled", services.ErrCleaningFailed))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "CLEANING_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDatasetService{}
			tt.setupMock(svc)
			h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

			req := jsonRequest(http.MethodPost, "/load", tt.body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := serveDataset(h, req)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			if tt.expectedCode == "" {
				assert.Equal(t, "success", body["status"])
				data := body["data"].(map[string]interface{})
				assert.Equal(t, "ventas.csv", data["source"])
				assert.Equal(t, float64(4), data["rows"])
			} else {
				assert.Equal(t, tt.expectedCode, body["error_code"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func multipartUpload(t *testing.T, field, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDatasetHandler_Upload(t *testing.T) {
	content := "fecha,valor\n2024-01-05,10\n"

	t.Run("uploads file", func(t *testing.T) {
		svc := &MockDatasetService{}
		svc.On("Upload", "ventas.csv", content).Return(sampleSummary(), nil)
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

		rec := serveDataset(h, multipartUpload(t, "file", "ventas.csv", content))

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("missing file field", func(t *testing.T) {
		svc := &MockDatasetService{}
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

		rec := serveDataset(h, multipartUpload(t, "archivo", "ventas.csv", content))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("body over the limit", func(t *testing.T) {
		svc := &MockDatasetService{}
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 16)

		big := strings.Repeat("x", 2<<20)
		rec := serveDataset(h, multipartUpload(t, "file", "ventas.csv", big))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("service rejects oversized declared size", func(t *testing.T) {
		svc := &MockDatasetService{}
		svc.On("Upload", "ventas.csv", content).
			Return(nil, fmt.Errorf("%w: file too large", services.ErrDatasetUnreadable))
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

		rec := serveDataset(h, multipartUpload(t, "file", "ventas.csv", content))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "DATASET_UNREADABLE", decodeBody(t, rec)["error_code"])
	})
}

func TestDatasetHandler_NoDataset(t *testing.T) {
	routes := []struct {
		path   string
		method string
		setup  func(*MockDatasetService)
	}{
		{"/", "Summary", func(m *MockDatasetService) { m.On("Summary").Return(nil, noDataset()) }},
		{"/columns", "Columns", func(m *MockDatasetService) { m.On("Columns").Return(nil, noDataset()) }},
		{"/dtypes", "DTypes", func(m *MockDatasetService) { m.On("DTypes").Return(nil, noDataset()) }},
		{"/nulls", "NullPercentages", func(m *MockDatasetService) { m.On("NullPercentages").Return(nil, noDataset()) }},
		{"/unique-counts", "UniqueCounts", func(m *MockDatasetService) { m.On("UniqueCounts").Return(nil, noDataset()) }},
		{"/unique-values", "UniqueValues", func(m *MockDatasetService) { m.On("UniqueValues", 20).Return(nil, noDataset()) }},
		{"/describe", "Describe", func(m *MockDatasetService) { m.On("Describe").Return(nil, noDataset()) }},
		{"/preview", "Preview", func(m *MockDatasetService) { m.On("Preview", 10).Return(nil, noDataset()) }},
		{"/log", "CleaningLog", func(m *MockDatasetService) { m.On("CleaningLog").Return(nil, noDataset()) }},
		{"/export", "Export", func(m *MockDatasetService) { m.On("Export", (*bool)(nil)).Return(nil, noDataset()) }},
		{"/columns/region/values", "ColumnValues", func(m *MockDatasetService) {
			m.On("ColumnValues", "region", "").Return(nil, noDataset())
		}},
	}

	for _, rt := range routes {
		t.Run(rt.method, func(t *testing.T) {
			svc := &MockDatasetService{}
			rt.setup(svc)
			h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

			rec := serveDataset(h, httptest.NewRequest(http.MethodGet, rt.path, nil))

			assert.Equal(t, http.StatusConflict, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "NO_DATASET", body["error_code"])
			assert.Equal(t, float64(http.StatusConflict), body["status"])
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_Introspection(t *testing.T) {
	svc := &MockDatasetService{}
	svc.On("DTypes").Return(map[string]string{"valor": "float64"}, nil)
	svc.On("NullPercentages").Return(map[string]float64{"valor": 25}, nil)
	svc.On("UniqueCounts").Return(map[string]int{"region": 2}, nil)
	svc.On("UniqueValues", 5).Return(map[string][]any{"region": {"n", "s"}}, nil)
	svc.On("Preview", 2).Return([]map[string]any{{"valor": 10.0}, {"valor": 20.0}}, nil)
	h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

	rec := serveDataset(h, httptest.NewRequest(http.MethodGet, "/dtypes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "float64", decodeBody(t, rec)["data"].(map[string]interface{})["valor"])

	rec = serveDataset(h, httptest.NewRequest(http.MethodGet, "/nulls", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(25), decodeBody(t, rec)["data"].(map[string]interface{})["valor"])

	rec = serveDataset(h, httptest.NewRequest(http.MethodGet, "/unique-counts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["data"].(map[string]interface{})["region"])

	rec = serveDataset(h, httptest.NewRequest(http.MethodGet, "/unique-values?n=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["n"])
	assert.Equal(t, []interface{}{"n", "s"}, body["data"].(map[string]interface{})["region"])

	rec = serveDataset(h, httptest.NewRequest(http.MethodGet, "/preview?n=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	svc.AssertExpectations(t)
}

func TestDatasetHandler_QueryValidation(t *testing.T) {
	tests := []string{
		"/unique-values?n=0",
		"/unique-values?n=abc",
		"/preview?n=-1",
		"/preview?n=5000",
		"/history?limit=0",
		"/export?bom=maybe",
	}

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			svc := &MockDatasetService{}
			h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

			rec := serveDataset(h, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
			assert.Empty(t, svc.Calls)
		})
	}
}

func TestDatasetHandler_ColumnValues(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockDatasetService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:   "bucketed dates",
			target: "/columns/fecha/values?bucket=monthly",
			setupMock: func(m *MockDatasetService) {
				m.On("ColumnValues", "fecha", "monthly").Return([]string{"2024-01", "2024-02"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "escaped column name",
			target: "/columns/fecha%20alta/values",
			setupMock: func(m *MockDatasetService) {
				m.On("ColumnValues", "fecha alta", "").Return([]string{"2024-01-05"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "unknown column",
			target: "/columns/ciudad/values",
			setupMock: func(m *MockDatasetService) {
				m.On("ColumnValues", "ciudad", "").
					Return(nil, fmt.Errorf("%w: ciudad", services.ErrColumnNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "COLUMN_NOT_FOUND",
		},
		{
			name:   "unknown bucket",
			target: "/columns/fecha/values?bucket=weekly",
			setupMock: func(m *MockDatasetService) {
				m.On("ColumnValues", "fecha", "weekly").
					Return(nil, fmt.Errorf("%w: unknown bucket \"weekly\"", services.ErrInvalidInput))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_PARAMETER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDatasetService{}
			tt.setupMock(svc)
			h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

			rec := serveDataset(h, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeBody(t, rec)["error_code"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_CastTypes(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockDatasetService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "casts columns",
			body: `{"dtype_map":{"valor":"int64","fecha":"string"}}`,
			setupMock: func(m *MockDatasetService) {
				m.On("CastTypes", map[string]string{"valor": "int64", "fecha": "string"}).
					Return(sampleSummary(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "empty mapping",
			body:           `{"dtype_map":{}}`,
			setupMock:      func(m *MockDatasetService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name: "unsupported target type",
			body: `{"dtype_map":{"valor":"complex128"}}`,
			setupMock: func(m *MockDatasetService) {
				m.On("CastTypes", map[string]string{"valor": "complex128"}).
					Return(nil, fmt.Errorf("%w: unsupported type complex128", services.ErrInvalidCast))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_TYPE_MAPPING",
		},
		{
			name: "unknown column",
			body: `{"dtype_map":{"ciudad":"string"}}`,
			setupMock: func(m *MockDatasetService) {
				m.On("CastTypes", map[string]string{"ciudad": "string"}).
					Return(nil, fmt.Errorf("%w: ciudad", services.ErrColumnNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "COLUMN_NOT_FOUND",
		},
		{
			name: "no dataset",
			body: `{"dtype_map":{"valor":"int64"}}`,
			setupMock: func(m *MockDatasetService) {
				m.On("CastTypes", map[string]string{"valor": "int64"}).Return(nil, noDataset())
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "NO_DATASET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDatasetService{}
			tt.setupMock(svc)
			h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

			rec := serveDataset(h, jsonRequest(http.MethodPost, "/types", tt.body))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeBody(t, rec)["error_code"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDatasetHandler_Export(t *testing.T) {
	frame := dataset.MustFrame(
		dataset.NewCategorical("region", []string{"n", "s"}, nil),
		dataset.NewNumeric("valor", []float64{1.5, 2}, nil),
	)

	t.Run("streams csv", func(t *testing.T) {
		svc := &MockDatasetService{}
		svc.On("Export", (*bool)(nil)).
			Return(services.NewCSVExport("ventas_clean.csv", frame, exporter.WriteOptions{}), nil)
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

		rec := serveDataset(h, httptest.NewRequest(http.MethodGet, "/export", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="ventas_clean.csv"`)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "region,valor\n"))
		assert.Contains(t, rec.Body.String(), "n,1.5")
	})

	t.Run("bom override", func(t *testing.T) {
		svc := &MockDatasetService{}
		svc.On("Export", mock.MatchedBy(func(b *bool) bool { return b != nil && *b })).
			Return(services.NewCSVExport("ventas_clean.csv", frame, exporter.WriteOptions{BOMPrefix: true}), nil)
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

		rec := serveDataset(h, httptest.NewRequest(http.MethodGet, "/export?bom=true", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\xEF\xBB\xBF")))
		svc.AssertExpectations(t)
	})
}

func TestDatasetHandler_History(t *testing.T) {
	records := []storage.LoadRecord{
		{ID: "b", Source: "ventas.csv", Rows: 4, Columns: 3, LoadedAt: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)},
		{ID: "a", Source: "ventas.csv", Rows: 3, Columns: 3, LoadedAt: time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)},
	}

	t.Run("default limit", func(t *testing.T) {
		svc := &MockDatasetService{}
		svc.On("History", DefaultHistoryLimit).Return(records, nil)
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

		rec := serveDataset(h, httptest.NewRequest(http.MethodGet, "/history", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(2), body["count"])
		first := body["data"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "b", first["id"])
	})

	t.Run("store unavailable", func(t *testing.T) {
		svc := &MockDatasetService{}
		svc.On("History", 5).Return(nil, fmt.Errorf("%w: %w", services.ErrServiceUnavailable, errors.New("database is locked")))
		h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

		rec := serveDataset(h, httptest.NewRequest(http.MethodGet, "/history?limit=5", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestDatasetHandler_Files(t *testing.T) {
	svc := &MockDatasetService{}
	svc.On("AvailableFiles").Return([]files.DatasetFile{
		{Name: "uploads/ventas.csv", Format: "csv", Size: 120, Modified: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)},
	}, nil)
	h := NewDatasetHandler(svc, quietLogger(), newErrorHandler(), 1<<20)

	rec := serveDataset(h, httptest.NewRequest(http.MethodGet, "/files", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	first := body["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "uploads/ventas.csv", first["name"])
	assert.Equal(t, "csv", first["format"])
	svc.AssertExpectations(t)
}
