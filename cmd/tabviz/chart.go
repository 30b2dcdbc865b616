package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tabviz/internal/charts"
	"tabviz/internal/config"
)

type chartOptions struct {
	*rootOptions
	delimiter   string
	sheet       string
	out         string
	width       int
	height      int
	kind        string
	x           string
	y           string
	agg         string
	group       string
	xBucket     string
	groupBucket string
	groupValues []string
}

func newChartCmd(root *rootOptions) *cobra.Command {
	opts := &chartOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "chart <file>",
		Short: "Render a chart from a cleaned file as PNG",
		Long: `Clean a file, resolve a chart request against it and write the PNG.

Kinds: bar, line, histogram, histogram_kde, boxplot, correlogram, scatter.

Examples:
  tabviz chart ventas.csv --kind bar --x region --y monto --agg sum --out ventas.png
  tabviz chart ventas.csv --kind line --x fecha --x-bucket monthly --y monto --agg mean \
      --group region --group-values Norte,Sur --out tendencia.png
  tabviz chart ventas.csv --kind correlogram --out corr.png
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	flags := cmd.Flags()
	addSourceFlags(cmd, &opts.delimiter, &opts.sheet)
	flags.StringVarP(&opts.out, "out", "o", "chart.png", "output PNG file")
	flags.IntVar(&opts.width, "width", 0, "image width in pixels (config default when 0)")
	flags.IntVar(&opts.height, "height", 0, "image height in pixels (config default when 0)")
	flags.StringVarP(&opts.kind, "kind", "k", "", "chart kind")
	flags.StringVar(&opts.x, "x", "", "X column")
	flags.StringVar(&opts.y, "y", "", "Y column")
	flags.StringVar(&opts.agg, "agg", "", "aggregation: count, mean or sum")
	flags.StringVar(&opts.group, "group", "", "group column")
	flags.StringVar(&opts.xBucket, "x-bucket", "", "date bucket for X: daily, monthly or yearly")
	flags.StringVar(&opts.groupBucket, "group-bucket", "", "date bucket for the group column")
	flags.StringSliceVar(&opts.groupValues, "group-values", nil, "group labels to keep")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func (o *chartOptions) request() charts.Request {
	req := charts.Request{
		Kind:        o.kind,
		XColumn:     o.x,
		YColumn:     o.y,
		Aggregation: o.agg,
		GroupColumn: o.group,
		XBucket:     o.xBucket,
		GroupBucket: o.groupBucket,
	}
	for _, v := range o.groupValues {
		req.GroupValues = append(req.GroupValues, v)
	}
	return req
}

func (o *chartOptions) run(cmd *cobra.Command, path string) error {
	a, err := o.engine(cmd, func(cfg *config.Config) {
		sourceOverrides(o.delimiter, o.sheet)(cfg)
		if o.width > 0 {
			cfg.Charts.Width = o.width
		}
		if o.height > 0 {
			cfg.Charts.Height = o.height
		}
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := loadFile(cmd, a, path); err != nil {
		return err
	}

	img, err := a.ChartService.Render(ctx, o.request())
	if err != nil {
		return err
	}

	if err := os.WriteFile(o.out, img.PNG, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", o.out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s chart to %s (%d bytes)\n", img.Kind, o.out, len(img.PNG))
	return nil
}
