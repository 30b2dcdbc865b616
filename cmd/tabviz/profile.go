package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type profileOptions struct {
	*rootOptions
	delimiter string
	sheet     string
	asJSON    bool
	log       bool
}

// profileReport is the --json output
type profileReport struct {
	Source   string      `json:"source"`
	Rows     int         `json:"rows"`
	Columns  interface{} `json:"columns"`
	Describe interface{} `json:"describe"`
	Log      []string    `json:"log"`
}

func newProfileCmd(root *rootOptions) *cobra.Command {
	opts := &profileOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "profile <file>",
		Short: "Print column types, null percentages and unique counts",
		Long: `Clean a file and print one line per column: storage type, semantic type,
non-null count, null percentage and number of unique values.

Examples:
  tabviz profile ventas.csv
  tabviz profile ventas.csv --json
  tabviz profile ventas.csv --log
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	addSourceFlags(cmd, &opts.delimiter, &opts.sheet)
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print columns, statistics and the cleaning log as JSON")
	cmd.Flags().BoolVar(&opts.log, "log", false, "print the cleaning log after the column table")

	return cmd
}

func (o *profileOptions) run(cmd *cobra.Command, path string) error {
	a, err := o.engine(cmd, sourceOverrides(o.delimiter, o.sheet))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	summary, err := loadFile(cmd, a, path)
	if err != nil {
		return err
	}
	columns, err := a.DatasetService.Columns(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if o.asJSON {
		describe, err := a.DatasetService.Describe(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(profileReport{
			Source:   summary.Source,
			Rows:     summary.Rows,
			Columns:  columns,
			Describe: describe,
			Log:      summary.Messages,
		})
	}

	nulls, err := a.DatasetService.NullPercentages(ctx)
	if err != nil {
		return err
	}
	unique, err := a.DatasetService.UniqueCounts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d rows, %d columns\n\n", summary.Source, summary.Rows, summary.Columns)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tDTYPE\tSEMANTIC\tNON-NULL\tNULL %\tUNIQUE")
	for _, c := range columns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%d\n", c.Name, c.DType, c.Semantic, c.NonNull, nulls[c.Name], unique[c.Name])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if o.log && len(summary.Messages) > 0 {
		fmt.Fprintln(out)
		for _, msg := range summary.Messages {
			fmt.Fprintln(out, msg)
		}
	}
	return nil
}
