package charts

import (
	"context"
	"log/slog"
	"math"

	"tabviz/internal/dataprocessing"
	"tabviz/internal/dataset"
	"tabviz/internal/stats"
)

// ResolverConfig holds the shaping constants
type ResolverConfig struct {
	TopN          int
	HistogramBins int
	KDEBins       int
	KDEPoints     int
	ClipLow       float64
	ClipHigh      float64
}

// DefaultResolverConfig returns the shaping constants used by default
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		TopN:          10,
		HistogramBins: 30,
		KDEBins:       20,
		KDEPoints:     200,
		ClipLow:       1,
		ClipHigh:      99,
	}
}

// Resolver validates chart requests and shapes a private view of the
// dataset for the renderer of the requested kind
type Resolver struct {
	cfg        ResolverConfig
	classifier *dataprocessing.ColumnClassifier
	logger     *slog.Logger
}

// NewResolver creates a resolver. The classifier decides which columns are
// treated as dates.
func NewResolver(cfg ResolverConfig, classifier *dataprocessing.ColumnClassifier, logger *slog.Logger) *Resolver {
	def := DefaultResolverConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = def.HistogramBins
	}
	if cfg.KDEBins <= 0 {
		cfg.KDEBins = def.KDEBins
	}
	if cfg.KDEPoints < 2 {
		cfg.KDEPoints = def.KDEPoints
	}
	if cfg.ClipHigh <= cfg.ClipLow {
		cfg.ClipLow, cfg.ClipHigh = def.ClipLow, def.ClipHigh
	}
	if classifier == nil {
		classifier = dataprocessing.NewColumnClassifier(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, classifier: classifier, logger: logger.With("component", "chart_resolver")}
}

// plan is a validated request
type plan struct {
	kind        Kind
	agg         Aggregation
	xBucket     Bucket
	groupBucket Bucket
	x, y, group string
	// kind of the group column before bucketing
	groupKind dataset.Kind
}

// Config returns the effective shaping constants
func (r *Resolver) Config() ResolverConfig {
	return r.cfg
}

// Resolve validates the request against frame and returns the shaped view
// and arguments. frame is never modified.
func (r *Resolver) Resolve(ctx context.Context, req Request, frame *dataset.Frame) (*Resolution, error) {
	p, err := r.validate(req, frame)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := frame
	if p.group != "" {
		view, err = r.applyGroupFilter(view, &p, req.GroupValues)
		if err != nil {
			return nil, err
		}
	}

	res := &Resolution{Kind: p.kind, Request: req}
	switch p.kind {
	case KindBar, KindLine:
		res.View, res.Args, err = r.shapeAggregate(view, p)
	case KindHistogram:
		res.View, res.Args = view, r.shapeHistogram(view, p)
	case KindHistogramKDE:
		res.View, res.Args = view, r.shapeHistogramKDE(view, p)
	case KindBoxplot:
		res.View, res.Args = view, r.shapeBoxplot(view, p)
	case KindScatter:
		res.View, res.Args = view, r.shapeScatter(view, p)
	case KindCorrelogram:
		res.View, res.Args = view, shapeCorrelogram(view)
	default:
		return nil, invalid("kind", "unsupported chart kind %q", req.Kind)
	}
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "chart request resolved",
		"kind", p.kind.String(),
		"rows", res.View.NumRows(),
		"x", p.x, "y", p.y, "group", p.group)
	return res, nil
}

func (r *Resolver) validate(req Request, frame *dataset.Frame) (plan, error) {
	var p plan
	var ok bool

	if p.kind, ok = ParseKind(req.Kind); !ok {
		return p, invalid("kind", "unsupported chart kind %q", req.Kind)
	}

	var err error
	if p.xBucket, err = ParseBucket(req.XBucket); err != nil {
		return p, invalid("x_bucket", "%v", err)
	}
	if p.groupBucket, err = ParseBucket(req.GroupBucket); err != nil {
		return p, invalid("group_bucket", "%v", err)
	}

	p.x, p.y, p.group = req.XColumn, req.YColumn, req.GroupColumn

	switch p.kind {
	case KindBar, KindLine:
		if req.Aggregation == "" {
			return p, invalid("aggregation", "is required for %s charts", p.kind)
		}
		if p.agg, ok = ParseAggregation(req.Aggregation); !ok {
			return p, invalid("aggregation", "unsupported aggregation %q", req.Aggregation)
		}
		if p.x == "" {
			return p, invalid("x_column", "is required for %s charts", p.kind)
		}
		if p.agg == AggCount {
			p.y = ""
		} else if p.y == "" {
			return p, invalid("y_column", "is required for %s aggregation", p.agg)
		}
	case KindHistogram, KindHistogramKDE, KindBoxplot:
		if p.y == "" {
			return p, invalid("y_column", "is required for %s charts", p.kind)
		}
		p.x = ""
	case KindScatter:
		if p.x == "" {
			return p, invalid("x_column", "is required for scatter charts")
		}
		if p.y == "" {
			return p, invalid("y_column", "is required for scatter charts")
		}
	case KindCorrelogram:
		p.x, p.y, p.group = "", "", ""
	}

	for _, ref := range []struct{ field, name string }{
		{"x_column", p.x}, {"y_column", p.y}, {"group_column", p.group},
	} {
		if ref.name != "" && !frame.Has(ref.name) {
			return p, invalid(ref.field, "column %q does not exist", ref.name)
		}
	}

	if p.y != "" {
		col, _ := frame.Column(p.y)
		if col.Kind != dataset.Numeric {
			return p, invalid("y_column", "column %q is not numeric", p.y)
		}
	}
	if p.kind == KindScatter {
		col, _ := frame.Column(p.x)
		if k := r.classifier.Classify(p.x, col); k != dataset.Numeric && k != dataset.Date {
			return p, invalid("x_column", "column %q must be numeric or a date", p.x)
		}
	}
	if p.group != "" {
		if _, err := selectionLabels(req.GroupValues); err != nil {
			return p, invalid("group_values", "%v", err)
		}
	}
	if p.kind == KindCorrelogram && len(frame.NumericColumns()) < 2 {
		return p, invalid("", "correlogram needs at least two numeric columns")
	}
	return p, nil
}

// semantic returns the column as the classifier sees it, parsing dates
// that are still stored as text
func (r *Resolver) semantic(col *dataset.Column) *dataset.Column {
	if col.Kind == dataset.Date || r.classifier.Classify(col.Name, col) != dataset.Date {
		return col
	}
	parsed, err := dataprocessing.ParseTimestamps(col)
	if err != nil {
		return col
	}
	return parsed
}

// applyGroupFilter buckets the group column and keeps only rows whose
// group label is selected
func (r *Resolver) applyGroupFilter(view *dataset.Frame, p *plan, selection []any) (*dataset.Frame, error) {
	col, _ := view.Column(p.group)
	sem := r.semantic(col)
	p.groupKind = sem.Kind
	bucketed := p.groupBucket.Apply(sem)
	if bucketed != col {
		next, err := view.Replace(p.group, bucketed)
		if err != nil {
			return nil, err
		}
		view = next
	}
	if len(selection) == 0 {
		return view, nil
	}

	labels, err := selectionLabels(selection)
	if err != nil {
		return nil, invalid("group_values", "%v", err)
	}
	keep := make([]bool, bucketed.Len())
	for i := range keep {
		if bucketed.IsNull(i) {
			continue
		}
		_, keep[i] = labels[bucketed.Label(i)]
	}
	return view.Filter(keep), nil
}

func (r *Resolver) shapeAggregate(view *dataset.Frame, p plan) (*dataset.Frame, Args, error) {
	xcol, _ := view.Column(p.x)
	xsem := r.semantic(xcol)
	bucketed := p.xBucket.Apply(xsem)
	if bucketed != xcol {
		next, err := view.Replace(p.x, bucketed)
		if err != nil {
			return nil, nil, err
		}
		view = next
	}

	var ycol, gcol *dataset.Column
	if p.y != "" {
		ycol, _ = view.Column(p.y)
	}
	if p.group != "" {
		gcol, _ = view.Column(p.group)
	}

	name := p.y
	if p.agg == AggCount {
		name = "count"
	}
	table := aggregate(bucketed, ycol, gcol, p.agg, name)

	if gcol != nil {
		table = table.top(r.cfg.TopN).sortSeries(p.groupKind, p.groupBucket)
	} else if p.kind == KindBar {
		table = table.top(r.cfg.TopN)
	}

	// dates always read left to right in time; other bar axes stay ranked
	if p.kind == KindLine || xsem.Kind == dataset.Date {
		table = table.inAxisOrder(xsem.Kind, p.xBucket)
	}
	if p.kind == KindLine {
		return view, LineArgs{X: p.x, Y: p.y, Group: p.group, Aggregation: p.agg, Table: table}, nil
	}
	return view, BarArgs{X: p.x, Y: p.y, Group: p.group, Aggregation: p.agg, Table: table}, nil
}

func (r *Resolver) shapeHistogram(view *dataset.Frame, p plan) Args {
	col, _ := view.Column(p.y)
	return HistogramArgs{Y: p.y, Bins: stats.Histogram(col.ValidNumbers(), r.cfg.HistogramBins)}
}

func (r *Resolver) shapeHistogramKDE(view *dataset.Frame, p plan) Args {
	col, _ := view.Column(p.y)
	values := col.ValidNumbers()
	args := HistogramKDEArgs{Y: p.y}
	if len(values) == 0 {
		return args
	}

	args.ClipLow = stats.Percentile(values, r.cfg.ClipLow)
	args.ClipHigh = stats.Percentile(values, r.cfg.ClipHigh)
	kept := stats.Within(values, args.ClipLow, args.ClipHigh)
	args.Excluded = len(values) - len(kept)
	args.Bins = stats.Histogram(kept, r.cfg.KDEBins)

	lo, hi := args.Bins[0].Low, args.Bins[len(args.Bins)-1].High
	xs, ys := stats.KDE(kept, lo, hi, r.cfg.KDEPoints)
	width := (hi - lo) / float64(len(args.Bins))
	scale := float64(len(kept)) * width
	for i := range ys {
		ys[i] *= scale
	}
	args.CurveX, args.CurveY = xs, ys
	return args
}

func (r *Resolver) shapeBoxplot(view *dataset.Frame, p plan) Args {
	ycol, _ := view.Column(p.y)
	args := BoxplotArgs{Y: p.y, Group: p.group}

	if p.group == "" {
		if box, ok := stats.Box(ycol.ValidNumbers()); ok {
			args.Boxes = append(args.Boxes, NamedBox{Name: p.y, BoxSummary: box})
		}
		return args
	}

	gcol, _ := view.Column(p.group)
	values := make(map[string][]float64)
	for i := 0; i < gcol.Len(); i++ {
		if gcol.IsNull(i) || ycol.IsNull(i) {
			continue
		}
		g := gcol.Label(i)
		values[g] = append(values[g], ycol.Numbers[i])
	}
	labels := make([]string, 0, len(values))
	for g := range values {
		labels = append(labels, g)
	}
	for _, g := range axisOrder(labels, p.groupKind, p.groupBucket) {
		if box, ok := stats.Box(values[g]); ok {
			args.Boxes = append(args.Boxes, NamedBox{Name: g, BoxSummary: box})
		}
	}
	return args
}

func (r *Resolver) shapeScatter(view *dataset.Frame, p plan) Args {
	xcol, _ := view.Column(p.x)
	xcol = r.semantic(xcol)
	ycol, _ := view.Column(p.y)
	args := ScatterArgs{X: p.x, Y: p.y, Group: p.group, XIsTime: xcol.Kind == dataset.Date}

	var gcol *dataset.Column
	if p.group != "" {
		gcol, _ = view.Column(p.group)
	}

	index := make(map[string]int)
	for i := 0; i < xcol.Len(); i++ {
		if xcol.IsNull(i) || ycol.IsNull(i) || (gcol != nil && gcol.IsNull(i)) {
			continue
		}
		name := p.y
		if gcol != nil {
			name = gcol.Label(i)
		}
		s, ok := index[name]
		if !ok {
			s = len(args.Series)
			index[name] = s
			args.Series = append(args.Series, PointSeries{Name: name})
		}
		x := 0.0
		if args.XIsTime {
			x = float64(xcol.Times[i].Unix())
		} else {
			x = xcol.Numbers[i]
		}
		args.Series[s].X = append(args.Series[s].X, x)
		args.Series[s].Y = append(args.Series[s].Y, ycol.Numbers[i])
	}

	if gcol != nil {
		names := make([]string, len(args.Series))
		for i, s := range args.Series {
			names[i] = s.Name
		}
		ordered := make([]PointSeries, 0, len(args.Series))
		for _, n := range axisOrder(names, p.groupKind, p.groupBucket) {
			ordered = append(ordered, args.Series[index[n]])
		}
		args.Series = ordered
	}
	return args
}

func shapeCorrelogram(view *dataset.Frame) Args {
	cols := view.NumericColumns()
	args := CorrelogramArgs{
		Columns: make([]string, len(cols)),
		Matrix:  make([][]float64, len(cols)),
	}
	for i, a := range cols {
		args.Columns[i] = a.Name
		args.Matrix[i] = make([]float64, len(cols))
		for j, b := range cols {
			if i == j {
				args.Matrix[i][j] = selfCorrelation(a)
				continue
			}
			if j < i {
				args.Matrix[i][j] = args.Matrix[j][i]
				continue
			}
			args.Matrix[i][j] = pairwise(a, b)
		}
	}
	return args
}

func selfCorrelation(c *dataset.Column) float64 {
	v := c.ValidNumbers()
	if sd := stats.StdDev(v); math.IsNaN(sd) || sd == 0 {
		return math.NaN()
	}
	return 1
}

// pairwise correlates the rows where both columns are present
func pairwise(a, b *dataset.Column) float64 {
	var xs, ys []float64
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) || b.IsNull(i) {
			continue
		}
		xs = append(xs, a.Numbers[i])
		ys = append(ys, b.Numbers[i])
	}
	return stats.Correlation(xs, ys)
}

// GroupValues lists the selectable labels of a column after bucketing, in
// axis order. These are the labels group_values is matched against.
func (r *Resolver) GroupValues(frame *dataset.Frame, column string, bucket Bucket) ([]string, error) {
	col, ok := frame.Column(column)
	if !ok {
		return nil, invalid("group_column", "column %q does not exist", column)
	}
	sem := r.semantic(col)
	return axisOrder(bucket.Apply(sem).Distinct(), sem.Kind, bucket), nil
}
