// Package api contains the request contracts of the tabviz HTTP API.
// Version v1 represents the current stable API version.
package api

// Dataset API Requests

// LoadDatasetRequest loads a CSV or Excel file from the server filesystem
type LoadDatasetRequest struct {
	Path string `json:"path" validate:"required,max=4096"`
}

// CastTypesRequest converts columns of the current dataset to new storage
// types. Values are float64, int64, datetime64, datetime, string or object.
type CastTypesRequest struct {
	DTypeMap map[string]string `json:"dtype_map" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

// Chart API Requests

// ChartRequest describes one chart. Column and kind checks happen against
// the loaded dataset, so only the shape is validated here.
type ChartRequest struct {
	Kind        string `json:"kind" validate:"required,max=32"`
	XColumn     string `json:"x_column,omitempty" validate:"omitempty,column"`
	YColumn     string `json:"y_column,omitempty" validate:"omitempty,column"`
	Aggregation string `json:"aggregation,omitempty" validate:"omitempty,max=32"`
	GroupColumn string `json:"group_column,omitempty" validate:"omitempty,column"`
	XBucket     string `json:"x_bucket,omitempty" validate:"omitempty,max=32"`
	GroupBucket string `json:"group_bucket,omitempty" validate:"omitempty,max=32"`
	GroupValues []any  `json:"group_values,omitempty" validate:"omitempty,max=1000"`
}

// Client API Requests

// ClientLogRequest is a log entry forwarded by the browser UI
type ClientLogRequest struct {
	Level   string                 `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Message string                 `json:"message" validate:"required,max=2048"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Source  string                 `json:"source,omitempty" validate:"omitempty,max=128"`
}
