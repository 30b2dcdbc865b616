package dataset

import (
	"math"
	"strconv"
	"time"
)

// Kind is the storage kind of a column
type Kind int

const (
	// Categorical columns store text values
	Categorical Kind = iota
	// Numeric columns store float64 values
	Numeric
	// Date columns store timestamps
	Date
)

// String returns the semantic name of the kind
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Date:
		return "date"
	default:
		return "categorical"
	}
}

// StorageType returns the storage type label reported by introspection
func (k Kind) StorageType() string {
	switch k {
	case Numeric:
		return "float64"
	case Date:
		return "datetime"
	default:
		return "string"
	}
}

// DateLabelLayout is used when a raw timestamp is shown as a label
const DateLabelLayout = "2006-01-02 15:04:05"

// Column is an immutable named column. Exactly one of the value slices is
// populated, matching Kind. Valid[i] is false for missing cells.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Numbers []float64
	Times   []time.Time
	Valid   []bool
}

// NewCategorical builds a text column
func NewCategorical(name string, values []string, valid []bool) *Column {
	return &Column{Name: name, Kind: Categorical, Strings: values, Valid: validOrAll(valid, len(values))}
}

// NewNumeric builds a numeric column. NaN values are treated as missing.
func NewNumeric(name string, values []float64, valid []bool) *Column {
	v := validOrAll(valid, len(values))
	for i, x := range values {
		if math.IsNaN(x) {
			v[i] = false
		}
	}
	return &Column{Name: name, Kind: Numeric, Numbers: values, Valid: v}
}

// NewDate builds a timestamp column
func NewDate(name string, values []time.Time, valid []bool) *Column {
	return &Column{Name: name, Kind: Date, Times: values, Valid: validOrAll(valid, len(values))}
}

func validOrAll(valid []bool, n int) []bool {
	if valid != nil {
		out := make([]bool, len(valid))
		copy(out, valid)
		return out
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

// Len returns the number of rows
func (c *Column) Len() int {
	return len(c.Valid)
}

// NullCount returns the number of missing cells
func (c *Column) NullCount() int {
	n := 0
	for _, ok := range c.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// NullRatio returns the fraction of missing cells, 0 for an empty column
func (c *Column) NullRatio() float64 {
	if c.Len() == 0 {
		return 0
	}
	return float64(c.NullCount()) / float64(c.Len())
}

// IsNull reports whether row i is missing
func (c *Column) IsNull(i int) bool {
	return !c.Valid[i]
}

// Label returns the display label of row i, or "" when missing
func (c *Column) Label(i int) string {
	if !c.Valid[i] {
		return ""
	}
	switch c.Kind {
	case Numeric:
		return FormatNumber(c.Numbers[i])
	case Date:
		return c.Times[i].Format(DateLabelLayout)
	default:
		return c.Strings[i]
	}
}

// Value returns the JSON friendly value of row i, nil when missing
func (c *Column) Value(i int) any {
	if !c.Valid[i] {
		return nil
	}
	switch c.Kind {
	case Numeric:
		return c.Numbers[i]
	case Date:
		return c.Times[i].Format(time.RFC3339)
	default:
		return c.Strings[i]
	}
}

// Distinct returns the distinct non-missing labels in first-seen order
func (c *Column) Distinct() []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range c.Valid {
		if !c.Valid[i] {
			continue
		}
		l := c.Label(i)
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// DistinctCount returns the number of distinct non-missing values
func (c *Column) DistinctCount() int {
	return len(c.Distinct())
}

// ValidNumbers returns the non-missing numeric values in row order
func (c *Column) ValidNumbers() []float64 {
	if c.Kind != Numeric {
		return nil
	}
	out := make([]float64, 0, len(c.Numbers))
	for i, x := range c.Numbers {
		if c.Valid[i] {
			out = append(out, x)
		}
	}
	return out
}

// WithName returns a copy of the column under another name
func (c *Column) WithName(name string) *Column {
	cp := *c
	cp.Name = name
	return &cp
}

// Take returns a new column holding the rows whose keep flag is set
func (c *Column) Take(keep []bool) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	for i, k := range keep {
		if !k {
			continue
		}
		out.Valid = append(out.Valid, c.Valid[i])
		switch c.Kind {
		case Numeric:
			out.Numbers = append(out.Numbers, c.Numbers[i])
		case Date:
			out.Times = append(out.Times, c.Times[i])
		default:
			out.Strings = append(out.Strings, c.Strings[i])
		}
	}
	if out.Valid == nil {
		out.Valid = []bool{}
	}
	return out
}

// Head returns the first n rows
func (c *Column) Head(n int) *Column {
	if n > c.Len() {
		n = c.Len()
	}
	keep := make([]bool, c.Len())
	for i := 0; i < n; i++ {
		keep[i] = true
	}
	return c.Take(keep)
}

// FormatNumber formats a float without exponent and without trailing zeros
func FormatNumber(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
