package dataset

import (
	"fmt"
)

// Frame is an ordered set of equally long columns. Frames are treated as
// immutable: every operation that changes structure returns a new Frame that
// shares the untouched columns.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewFrame builds a frame and checks that all columns have the same length
// and unique names
func NewFrame(columns ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
		f.index[c.Name] = i
	}
	f.columns = append([]*Column(nil), columns...)
	return f, nil
}

// MustFrame is NewFrame for statically known inputs, it panics on error
func MustFrame(columns ...*Column) *Frame {
	f, err := NewFrame(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// NumRows returns the row count
func (f *Frame) NumRows() int {
	return f.rows
}

// NumColumns returns the column count
func (f *Frame) NumColumns() int {
	return len(f.columns)
}

// Columns returns the columns in order. The slice is a copy.
func (f *Frame) Columns() []*Column {
	return append([]*Column(nil), f.columns...)
}

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Has reports whether the frame has a column
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// NumericColumns returns the numeric columns in order
func (f *Frame) NumericColumns() []*Column {
	var out []*Column
	for _, c := range f.columns {
		if c.Kind == Numeric {
			out = append(out, c)
		}
	}
	return out
}

// NullCount returns the total number of missing cells
func (f *Frame) NullCount() int {
	n := 0
	for _, c := range f.columns {
		n += c.NullCount()
	}
	return n
}

// Replace returns a frame where the named column is replaced. The
// replacement keeps the position of the original and takes its name.
func (f *Frame) Replace(name string, col *Column) (*Frame, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if col.Len() != f.rows {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", name, col.Len(), f.rows)
	}
	if col.Name != name {
		col = col.WithName(name)
	}
	cols := f.Columns()
	cols[i] = col
	return NewFrame(cols...)
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(f.columns))
	for _, c := range f.columns {
		if _, ok := drop[c.Name]; !ok {
			cols = append(cols, c)
		}
	}
	out := MustFrame(cols...)
	if len(cols) == 0 {
		out.rows = f.rows
	}
	return out
}

// Filter returns a frame with only the rows whose keep flag is set
func (f *Frame) Filter(keep []bool) *Frame {
	cols := make([]*Column, len(f.columns))
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	for i, c := range f.columns {
		cols[i] = c.Take(keep)
	}
	out := MustFrame(cols...)
	out.rows = kept
	return out
}

// Head returns the first n rows
func (f *Frame) Head(n int) *Frame {
	if n > f.rows {
		n = f.rows
	}
	keep := make([]bool, f.rows)
	for i := 0; i < n; i++ {
		keep[i] = true
	}
	return f.Filter(keep)
}

// Records returns rows as maps keyed by column name, missing cells are nil
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.rows)
	for r := 0; r < f.rows; r++ {
		rec := make(map[string]any, len(f.columns))
		for _, c := range f.columns {
			rec[c.Name] = c.Value(r)
		}
		out[r] = rec
	}
	return out
}

// Row returns the display labels of row r in column order
func (f *Frame) Row(r int) []string {
	out := make([]string, len(f.columns))
	for i, c := range f.columns {
		out[i] = c.Label(r)
	}
	return out
}
