// Package dataset provides the tabular data layer of the attrition toolkit.
//
// A Table holds named, typed columns over equal-length data. Two column
// kinds exist: Numeric (float64 values) and Categorical (integer level
// codes with the level strings retained, in the manner of R factors).
// Tables are immutable once built; every transform returns a new table.
package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mathiasfls/attrition/pkg/errors"
)

// ColumnKind identifies how a column's values are interpreted.
type ColumnKind int

const (
	// Numeric columns hold continuous or integer measurements.
	Numeric ColumnKind = iota
	// Categorical columns hold level codes; Levels maps a code back to
	// its label.
	Categorical
)

// String returns the kind name used in errors and logs.
func (k ColumnKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column is a single named column. Numeric columns keep their measurements
// in Values; categorical columns keep level codes in Values and the level
// strings in Levels, so Values[i] indexes into Levels.
type Column struct {
	Name   string
	Kind   ColumnKind
	Values []float64
	Levels []string
}

// NewNumericColumn builds a numeric column over the given values.
// The slice is copied.
func NewNumericColumn(name string, values []float64) Column {
	vals := make([]float64, len(values))
	copy(vals, values)
	return Column{Name: name, Kind: Numeric, Values: vals}
}

// NewCategoricalColumn builds a categorical column from raw string values.
// Levels are the sorted unique values, so identical inputs always produce
// identical codings.
func NewCategoricalColumn(name string, values []string) Column {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		seen[v] = true
	}
	levels := make([]string, 0, len(seen))
	for v := range seen {
		levels = append(levels, v)
	}
	sort.Strings(levels)

	codes := make(map[string]int, len(levels))
	for i, l := range levels {
		codes[l] = i
	}

	vals := make([]float64, len(values))
	for i, v := range values {
		vals[i] = float64(codes[v])
	}
	return Column{Name: name, Kind: Categorical, Values: vals, Levels: levels}
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	return len(c.Values)
}

// Level decodes row i of a categorical column into its level string.
// Numeric columns and out-of-range codes return the empty string.
func (c Column) Level(i int) string {
	if c.Kind != Categorical || i < 0 || i >= len(c.Values) {
		return ""
	}
	code := int(c.Values[i])
	if code < 0 || code >= len(c.Levels) {
		return ""
	}
	return c.Levels[code]
}

// LevelIndex returns the code for a level string, or -1 when the level is
// not part of the column.
func (c Column) LevelIndex(level string) int {
	for i, l := range c.Levels {
		if l == level {
			return i
		}
	}
	return -1
}

// Variance returns the sample variance of the column values (level codes
// for categorical columns). Columns with fewer than two rows have zero
// variance.
func (c Column) Variance() float64 {
	n := len(c.Values)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range c.Values {
		mean += v
	}
	mean /= float64(n)

	ss := 0.0
	for _, v := range c.Values {
		d := v - mean
		ss += d * d
	}
	return ss / float64(n-1)
}

func (c Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	out.Values = make([]float64, len(c.Values))
	copy(out.Values, c.Values)
	if c.Levels != nil {
		out.Levels = make([]string, len(c.Levels))
		copy(out.Levels, c.Levels)
	}
	return out
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	name    string
	columns []Column
	index   map[string]int
}

// NewTable builds a table from columns. All columns must share one length
// and carry distinct names.
func NewTable(name string, columns ...Column) (*Table, error) {
	t := &Table{name: name, index: make(map[string]int, len(columns))}
	rows := -1
	for _, col := range columns {
		if _, dup := t.index[col.Name]; dup {
			return nil, errors.NewValueError("dataset.NewTable", "duplicate column name "+col.Name)
		}
		if rows >= 0 && col.Len() != rows {
			return nil, errors.NewDimensionError("dataset.NewTable", rows, col.Len(), 0)
		}
		rows = col.Len()
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col.clone())
	}
	return t, nil
}

// Name returns the table's name, used in error messages.
func (t *Table) Name() string {
	return t.name
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.columns)
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column. A missing name is a MissingColumnError
// so that misspelled configuration surfaces immediately.
func (t *Table) Column(name string) (Column, error) {
	idx, ok := t.index[name]
	if !ok {
		return Column{}, errors.NewMissingColumnError(t.name, name)
	}
	return t.columns[idx], nil
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) Column {
	return t.columns[i]
}

// DropColumns returns a new table without the named columns. Naming an
// absent column is an error.
func (t *Table) DropColumns(names ...string) (*Table, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !t.HasColumn(n) {
			return nil, errors.NewMissingColumnError(t.name, n)
		}
		drop[n] = true
	}
	kept := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	return NewTable(t.name, kept...)
}

// SelectColumns returns a new table containing only the named columns, in
// the given order.
func (t *Table) SelectColumns(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewTable(t.name, cols...)
}

// ReplaceColumn returns a new table with the named column swapped for col.
// The replacement keeps the original position and must match the row count.
func (t *Table) ReplaceColumn(name string, col Column) (*Table, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, errors.NewMissingColumnError(t.name, name)
	}
	if col.Len() != t.NumRows() {
		return nil, errors.NewDimensionError("dataset.ReplaceColumn", t.NumRows(), col.Len(), 0)
	}
	cols := make([]Column, len(t.columns))
	copy(cols, t.columns)
	cols[idx] = col
	return NewTable(t.name, cols...)
}

// Matrix encodes the table as a dense numeric matrix: numeric columns keep
// their values, categorical columns contribute their level codes.
func (t *Table) Matrix() *mat.Dense {
	rows, cols := t.NumRows(), t.NumCols()
	if rows == 0 || cols == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(rows, cols, nil)
	for j, c := range t.columns {
		for i, v := range c.Values {
			m.Set(i, j, v)
		}
	}
	return m
}

// SelectRows returns a new table containing the given rows, in order.
// Indices may repeat; an out-of-range index is an error.
func (t *Table) SelectRows(indices []int) (*Table, error) {
	rows := t.NumRows()
	for _, idx := range indices {
		if idx < 0 || idx >= rows {
			return nil, errors.NewValueError("dataset.SelectRows", "row index out of range")
		}
	}
	cols := make([]Column, len(t.columns))
	for j, c := range t.columns {
		nc := Column{Name: c.Name, Kind: c.Kind, Values: make([]float64, len(indices))}
		if c.Levels != nil {
			nc.Levels = make([]string, len(c.Levels))
			copy(nc.Levels, c.Levels)
		}
		for i, idx := range indices {
			nc.Values[i] = c.Values[idx]
		}
		cols[j] = nc
	}
	return NewTable(t.name, cols...)
}

// LabelVector turns a categorical column into a 0/1 target vector where
// rows at the positive level are 1. The positive level must exist in the
// column, otherwise every target would silently be zero.
func (t *Table) LabelVector(name, positive string) (*mat.VecDense, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if col.Kind != Categorical {
		return nil, errors.NewValueError("dataset.LabelVector", "column "+name+" is not categorical")
	}
	posCode := col.LevelIndex(positive)
	if posCode < 0 {
		return nil, errors.NewValueError("dataset.LabelVector", "positive level "+positive+" not present in column "+name)
	}
	y := mat.NewVecDense(col.Len(), nil)
	for i, v := range col.Values {
		if int(v) == posCode {
			y.SetVec(i, 1)
		}
	}
	return y, nil
}

// AlignFeedback validates that a slice of free-text documents lines up
// with the table row for row, the contract under which feedback text and
// attrition labels are joined.
func AlignFeedback(t *Table, texts []string) error {
	if len(texts) != t.NumRows() {
		return errors.NewDimensionError("dataset.AlignFeedback", t.NumRows(), len(texts), 0)
	}
	return nil
}

// VectorToLevels decodes a 0/1 prediction vector back into level strings.
func VectorToLevels(y *mat.VecDense, negative, positive string) []string {
	out := make([]string, y.Len())
	for i := 0; i < y.Len(); i++ {
		if math.Abs(y.AtVec(i)-1) < 0.5 {
			out[i] = positive
		} else {
			out[i] = negative
		}
	}
	return out
}
