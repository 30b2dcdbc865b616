package charts

import (
	"strings"
)

// Kind is a supported chart type
type Kind int

const (
	KindBar Kind = iota + 1
	KindLine
	KindHistogram
	KindHistogramKDE
	KindBoxplot
	KindCorrelogram
	KindScatter
)

var kindNames = map[Kind]string{
	KindBar:          "bar",
	KindLine:         "line",
	KindHistogram:    "histogram",
	KindHistogramKDE: "histogram_kde",
	KindBoxplot:      "boxplot",
	KindCorrelogram:  "correlogram",
	KindScatter:      "scatter",
}

var kindAliases = map[string]Kind{
	"bar":            KindBar,
	"barra":          KindBar,
	"line":           KindLine,
	"línea":          KindLine,
	"linea":          KindLine,
	"histogram":      KindHistogram,
	"histograma":     KindHistogram,
	"histogram_kde":  KindHistogramKDE,
	"histogram+kde":  KindHistogramKDE,
	"histograma+kde": KindHistogramKDE,
	"boxplot":        KindBoxplot,
	"box":            KindBoxplot,
	"correlogram":    KindCorrelogram,
	"correlograma":   KindCorrelogram,
	"scatter":        KindScatter,
}

// Kinds lists every supported kind in display order
func Kinds() []Kind {
	return []Kind{KindBar, KindLine, KindHistogram, KindHistogramKDE, KindBoxplot, KindCorrelogram, KindScatter}
}

// ParseKind resolves a kind name case-insensitively
func ParseKind(s string) (Kind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// String returns the canonical name
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Aggregation is the reduction applied per X value
type Aggregation string

const (
	AggCount Aggregation = "count"
	AggMean  Aggregation = "mean"
	AggSum   Aggregation = "sum"
)

// Aggregations lists the canonical aggregation names
func Aggregations() []Aggregation {
	return []Aggregation{AggCount, AggMean, AggSum}
}

// ParseAggregation accepts count, mean and sum plus their Spanish labels
func ParseAggregation(s string) (Aggregation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "count", "conteo":
		return AggCount, true
	case "mean", "media", "avg", "average":
		return AggMean, true
	case "sum", "suma":
		return AggSum, true
	default:
		return "", false
	}
}
