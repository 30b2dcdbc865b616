// Package app wires the tabviz server together and manages its lifecycle.
//
// # Initialization
//
// NewApplication loads the configuration and logger, then New builds the
// rest in dependency order:
//
//	1. OpenTelemetry providers, business and runtime metrics
//	2. Cleaner, column classifier, chart resolver and PNG renderer
//	3. Session store, websocket hub, chart cache and load history
//	4. Dataset, chart and health services
//	5. Dataset file watcher when data.watch is set
//	6. Router and HTTP server
//
// # Routes
//
//	GET  /ws                     dataset events
//	GET  /metrics                Prometheus scrape endpoint
//	     /api/health[/ready|/live], /api/version, /api/stats
//	POST /api/logs               browser log forwarding
//	     /api/dataset/...        load, upload, introspection, cast, export
//	     /api/charts             chart rendering
//
// Dataset and chart routes require X-API-Key when security.api_keys is set.
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
package app
