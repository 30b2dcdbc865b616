package dataprocessing

import (
	"strings"

	"tabviz/internal/dataset"
)

// ColumnClassifier decides the semantic type of a column. It holds no state
// besides its configuration and has no side effects.
type ColumnClassifier struct {
	patterns   []string
	candidates map[string]struct{}
}

// NewColumnClassifier creates a classifier. Patterns are matched as
// case-insensitive substrings of the column name; candidates are exact
// column names that should be probed as timestamps regardless of name.
func NewColumnClassifier(patterns, candidates []string) *ColumnClassifier {
	c := &ColumnClassifier{candidates: make(map[string]struct{}, len(candidates))}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			c.patterns = append(c.patterns, strings.ToLower(p))
		}
	}
	for _, name := range candidates {
		c.candidates[name] = struct{}{}
	}
	return c
}

// MatchesDatePattern reports whether the name contains a configured pattern
func (c *ColumnClassifier) MatchesDatePattern(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range c.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsDateCandidate reports whether a column should be probed as a timestamp
func (c *ColumnClassifier) IsDateCandidate(name string) bool {
	if _, ok := c.candidates[name]; ok {
		return true
	}
	return c.MatchesDatePattern(name)
}

// Classify returns the semantic type of a column
func (c *ColumnClassifier) Classify(name string, col *dataset.Column) dataset.Kind {
	if col.Kind == dataset.Date {
		return dataset.Date
	}
	if c.IsDateCandidate(name) {
		if _, err := ParseTimestamps(col); err == nil {
			return dataset.Date
		}
	}
	return col.Kind
}

// ClassifyFrame classifies every column of a frame
func (c *ColumnClassifier) ClassifyFrame(f *dataset.Frame) map[string]dataset.Kind {
	out := make(map[string]dataset.Kind, f.NumColumns())
	for _, col := range f.Columns() {
		out[col.Name] = c.Classify(col.Name, col)
	}
	return out
}
