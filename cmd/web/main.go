// Command web serves the tabviz HTTP API, metrics and dataset events.
// Configuration comes from tabviz.yaml next to the binary and TABVIZ_*
// environment variables.
package main

import (
	"log/slog"
	"os"

	"tabviz/internal/app"
)

func main() {
	server, err := app.NewApplication()
	if err != nil {
		slog.Error("tabviz server could not start", slog.Any("error", err))
		os.Exit(1)
	}
	if err := server.Run(); err != nil {
		slog.Error("tabviz server stopped with an error", slog.Any("error", err))
		os.Exit(1)
	}
}
