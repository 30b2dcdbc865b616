// Package services implements the business logic between the HTTP handlers
// and the cleaning and chart engines.
//
// # Services
//
//	DatasetService  loads files, runs the cleaning pipeline, publishes
//	                snapshots and answers introspection queries
//	ChartService    resolves chart requests against the current snapshot,
//	                renders PNGs and consults the chart cache
//	HealthService   health, readiness, version and runtime statistics
//
// # Snapshots
//
// Every successful load, upload or type cast builds a complete snapshot and
// swaps it into the session store in one step. Readers always see either the
// previous snapshot or the new one, never a partially cleaned frame. A failed
// load keeps the previous snapshot.
//
// # Errors
//
// Services return the sentinel errors in errors.go wrapped with context.
// Handlers map them to problem details, for example ErrNoDataset to 404 and
// ErrInvalidChart to 400.
//
// # Optional collaborators
//
// Load history, the websocket event broadcaster, the chart cache and the
// business metrics may be nil. Failures in history or cache are logged and
// never fail the request.
package services
