package errors

import (
	"net/http"
)

// Dataset and chart error codes
const (
	CodeNoDataset         = "NO_DATASET"
	CodeDatasetUnreadable = "DATASET_UNREADABLE"
	CodeCleaningFailed    = "CLEANING_FAILED"
	CodeColumnNotFound    = "COLUMN_NOT_FOUND"
	CodeInvalidCast       = "INVALID_TYPE_MAPPING"
	CodeInvalidChart      = "INVALID_CHART_REQUEST"
	CodeRenderFailed      = "RENDER_FAILED"
)

// NoDatasetError is returned by every endpoint that needs a loaded dataset
func NoDatasetError() *APIError {
	return New(http.StatusConflict, CodeNoDataset, "no dataset loaded")
}

// DatasetUnreadableError reports a dataset that could not be opened or parsed
func DatasetUnreadableError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeDatasetUnreadable, "Dataset could not be read", err.Error())
}

// CleaningFailedError reports a cleaning run that did not complete
func CleaningFailedError(err error) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, CodeCleaningFailed, "cleaning failed", err.Error())
}

// ColumnNotFoundError reports a reference to a column the dataset lacks
func ColumnNotFoundError(err error) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeColumnNotFound, "Column not found", err.Error())
}

// InvalidCastError reports an unusable dtype mapping
func InvalidCastError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidCast, "Invalid type mapping", err.Error())
}

// InvalidChartError reports a chart request rejected before rendering
func InvalidChartError(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidChart, "Invalid chart request", ValidationError{
		Field:   field,
		Message: message,
	})
}

// RenderFailedError reports a renderer failure
func RenderFailedError(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, CodeRenderFailed, "Chart rendering failed", err.Error())
}
