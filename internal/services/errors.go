package services

import "errors"

// Service errors, wrapped with %w around the underlying cause
var (
	// Dataset errors
	ErrDatasetUnreadable = errors.New("dataset unreadable")
	ErrCleaningFailed    = errors.New("cleaning failed")
	ErrNoDataset         = errors.New("no dataset loaded")
	ErrColumnNotFound    = errors.New("column not found")
	ErrInvalidCast       = errors.New("invalid type mapping")

	// Chart errors
	ErrInvalidChart = errors.New("invalid chart request")
	ErrRenderFailed = errors.New("chart rendering failed")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
