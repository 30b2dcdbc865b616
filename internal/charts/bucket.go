package charts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tabviz/internal/dataset"
)

// Bucket is a temporal bucket size for date columns
type Bucket string

const (
	BucketNone    Bucket = "none"
	BucketYearly  Bucket = "yearly"
	BucketMonthly Bucket = "monthly"
	BucketDaily   Bucket = "daily"
)

var bucketAliases = map[string]Bucket{
	"":        BucketNone,
	"none":    BucketNone,
	"ninguna": BucketNone,
	"yearly":  BucketYearly,
	"year":    BucketYearly,
	"anual":   BucketYearly,
	"monthly": BucketMonthly,
	"month":   BucketMonthly,
	"mensual": BucketMonthly,
	"daily":   BucketDaily,
	"day":     BucketDaily,
	"diaria":  BucketDaily,
	"diario":  BucketDaily,
}

// Buckets lists the canonical bucket names
func Buckets() []Bucket {
	return []Bucket{BucketNone, BucketYearly, BucketMonthly, BucketDaily}
}

// ParseBucket accepts the canonical names case-insensitively plus their
// Spanish labels; an empty string means none
func ParseBucket(s string) (Bucket, error) {
	if b, ok := bucketAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return b, nil
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}

// layout returns the label layout of a bucket
func (b Bucket) layout() string {
	switch b {
	case BucketYearly:
		return "2006"
	case BucketMonthly:
		return "2006-01"
	case BucketDaily:
		return "2006-01-02"
	default:
		return ""
	}
}

// Apply rewrites a date column into bucket labels. Any other column, or the
// none bucket, returns the input column itself.
func (b Bucket) Apply(col *dataset.Column) *dataset.Column {
	layout := b.layout()
	if col == nil || col.Kind != dataset.Date || layout == "" {
		return col
	}
	labels := make([]string, col.Len())
	for i, t := range col.Times {
		if col.Valid[i] {
			labels[i] = t.Format(layout)
		}
	}
	return dataset.NewCategorical(col.Name, labels, col.Valid)
}

// Key recovers the chronological sort key of a bucket label
func (b Bucket) Key(label string) (time.Time, bool) {
	layout := b.layout()
	if layout == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, label)
	return t, err == nil
}

// SortLabels orders bucket labels chronologically. Labels that do not parse
// keep their relative order after the ones that do.
func (b Bucket) SortLabels(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := b.Key(out[i])
		tj, okj := b.Key(out[j])
		switch {
		case oki && okj:
			return ti.Before(tj)
		case oki:
			return true
		default:
			return false
		}
	})
	return out
}
