package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"no dataset", NoDatasetError(), http.StatusConflict, TypeNoDataset},
		{"wrapped cleaning failure", fmt.Errorf("load: %w", CleaningFailedError(stderrors.New("cancelled"))), http.StatusUnprocessableEntity, TypeCleaningFailed},
		{"chart validation", InvalidChartError("kind", "unsupported"), http.StatusBadRequest, TypeInvalidChart},
		{"render failure", RenderFailedError(stderrors.New("empty")), http.StatusInternalServerError, TypeRenderFailed},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"body limit", &http.MaxBytesError{Limit: 1024}, http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"plain not found text stays internal", stderrors.New("column not found"), http.StatusInternalServerError, TypeInternal},
		{"unknown", stderrors.New("boom"), http.StatusInternalServerError, TypeInternal},
	}

	h := NewErrorHandler(quietLogger(), false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/charts", nil)

			h.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/charts", body["instance"])
			assert.Contains(t, body, "trace_id")
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	w := httptest.NewRecorder()
	NewErrorHandler(quietLogger(), false).HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Empty(t, w.Body.String())
}

func TestErrorHandler_DetailsAndStack(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/dataset/columns/x/values", nil)

	NewErrorHandler(quietLogger(), true).HandleError(w, r, ColumnNotFoundError(stderrors.New(`"x"`)))

	body := decodeProblem(t, w)
	assert.Equal(t, CodeColumnNotFound, body["error_code"])
	assert.Equal(t, `"x"`, body["details"])
	assert.Contains(t, body, "stack")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(quietLogger(), false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/charts", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, decodeProblem(t, w)["detail"], "DELETE")
}

func TestErrorHandler_StatusDrivenType(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/dataset/load", nil)

	NewErrorHandler(quietLogger(), false).HandleError(w, r,
		New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "expected application/json"))

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, TypeUnsupportedMedia, body["type"])
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", body["error_code"])
}
