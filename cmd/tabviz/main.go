package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tabviz/internal/app"
	"tabviz/internal/config"
	"tabviz/internal/infrastructure"
	"tabviz/internal/services"
	"tabviz/pkg/contracts"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tabviz",
		Short: "Clean tabular files and render charts from the command line",
		Long: `tabviz runs the same cleaning pipeline and chart engine as the tabviz
server against a local CSV or Excel file, without starting the server.

Examples:
  tabviz clean ventas.csv --out ventas_limpio.csv
  tabviz profile ventas.xlsx --sheet 2024
  tabviz chart ventas.csv --kind bar --x region --y monto --agg sum --out ventas.png
`,
		Version:       contracts.VersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to tabviz.yaml (defaults to $TABVIZ_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr: debug, info, warn or error")

	root.AddCommand(newCleanCmd(opts))
	root.AddCommand(newProfileCmd(opts))
	root.AddCommand(newChartCmd(opts))

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// engine builds the offline pipeline. Server-only parts (websocket, load
// history, chart cache and telemetry export) are switched off.
func (o *rootOptions) engine(cmd *cobra.Command, mutate func(*config.Config)) (*app.Application, error) {
	if o.configPath != "" {
		if err := os.Setenv("TABVIZ_CONFIG", o.configPath); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.WebSocket.Enabled = false
	cfg.Data.HistoryEnabled = false
	cfg.Data.Watch = false
	cfg.Charts.CacheEnabled = false
	cfg.Telemetry.EnableTracing = false
	cfg.Telemetry.EnableMetrics = false
	cfg.Logging.Level = o.logLevel
	cfg.Logging.Format = "text"
	if mutate != nil {
		mutate(cfg)
	}

	logger := infrastructure.NewLogger(cfg.Logging, errWriter(cmd))
	return app.New(cfg, logger)
}

// loadFile publishes path, resolved against the working directory rather
// than the data directory
func loadFile(cmd *cobra.Command, a *app.Application, path string) (*services.DatasetSummary, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return a.DatasetService.LoadPath(cmd.Context(), abs)
}

func errWriter(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stderr
	}
	return cmd.ErrOrStderr()
}
