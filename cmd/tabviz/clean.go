package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tabviz/internal/config"
	"tabviz/internal/exporter"
	"tabviz/internal/validation"
)

type cleanOptions struct {
	*rootOptions
	out         string
	bom         bool
	delimiter   string
	sheet       string
	numeric     string
	categorical string
	threshold   float64
	dateColumns []string
	quiet       bool
}

func newCleanCmd(root *rootOptions) *cobra.Command {
	opts := &cleanOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "clean <file>",
		Short: "Clean a CSV or Excel file and write the result as CSV",
		Long: `Run the cleaning pipeline over a file and write the cleaned table as CSV.
The cleaning log is printed to stderr.

Examples:
  tabviz clean ventas.csv > limpio.csv
  tabviz clean ventas.xlsx --sheet 2024 --numeric zero --out limpio.csv
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.out, "out", "o", "", "output file (defaults to stdout)")
	flags.BoolVar(&opts.bom, "bom", false, "prefix the output with a UTF-8 byte order mark")
	addSourceFlags(cmd, &opts.delimiter, &opts.sheet)
	flags.StringVar(&opts.numeric, "numeric", "", "numeric null strategy: mean, zero, drop or none")
	flags.StringVar(&opts.categorical, "categorical", "", "categorical null strategy: fill, drop or none")
	flags.Float64Var(&opts.threshold, "null-threshold", -1, "drop columns whose null fraction exceeds this value")
	flags.StringSliceVar(&opts.dateColumns, "date-columns", nil, "columns to parse as dates in addition to the name patterns")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the cleaning log")

	return cmd
}

func addSourceFlags(cmd *cobra.Command, delimiter, sheet *string) {
	cmd.Flags().StringVarP(delimiter, "delimiter", "d", "", "CSV delimiter (detected when empty)")
	cmd.Flags().StringVar(sheet, "sheet", "", "Excel sheet name (first sheet when empty)")
}

func sourceOverrides(delimiter, sheet string) func(*config.Config) {
	return func(cfg *config.Config) {
		if delimiter != "" {
			cfg.Data.Delimiter = delimiter
		}
		if sheet != "" {
			cfg.Data.Sheet = sheet
		}
	}
}

func (o *cleanOptions) run(cmd *cobra.Command, path string) error {
	if o.out != "" {
		// fail before the dataset is read, not after
		if err := validation.NewFileValidator(nil, 0).ValidateOutputDirectory(filepath.Dir(o.out)); err != nil {
			return err
		}
	}

	a, err := o.engine(cmd, func(cfg *config.Config) {
		sourceOverrides(o.delimiter, o.sheet)(cfg)
		if o.numeric != "" {
			cfg.Cleaning.NumericStrategy = o.numeric
		}
		if o.categorical != "" {
			cfg.Cleaning.CategoricalStrategy = o.categorical
		}
		if o.threshold >= 0 {
			cfg.Cleaning.NullThreshold = o.threshold
		}
		if len(o.dateColumns) > 0 {
			cfg.Cleaning.DateColumns = o.dateColumns
		}
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	summary, err := loadFile(cmd, a, path)
	if err != nil {
		return err
	}

	export, err := a.DatasetService.Export(ctx, &o.bom)
	if err != nil {
		return err
	}

	if o.out != "" {
		err = export.SaveTo(exporter.NewCSVWriter(""), o.out)
	} else {
		err = export.Write(cmd.OutOrStdout())
	}
	if err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	if !o.quiet {
		stderr := cmd.ErrOrStderr()
		fmt.Fprintf(stderr, "%s: %d rows, %d columns\n", summary.Source, summary.Rows, summary.Columns)
		if len(summary.Messages) > 0 {
			fmt.Fprintln(stderr, strings.Join(summary.Messages, "\n"))
		}
	}
	return nil
}
