// Package table holds the tabular results returned by catalog queries.
package table

import (
	"fmt"
	"slices"
)

// Kind tells which field of a Value is meaningful.
type Kind uint8

const (
	Null Kind = iota
	Float
	Int
)

// Value is a single cell: null, a float, or an integer identifier.
type Value struct {
	Kind Kind
	F    float64
	I    int64
}

// NullValue returns a missing cell.
func NullValue() Value { return Value{} }

// FloatValue wraps a float cell.
func FloatValue(f float64) Value { return Value{Kind: Float, F: f} }

// IntValue wraps an identifier cell.
func IntValue(i int64) Value { return Value{Kind: Int, I: i} }

// IsNull reports whether the cell is missing.
func (v Value) IsNull() bool { return v.Kind == Null }

// Float64 returns the cell as a float; ok is false for null cells.
func (v Value) Float64() (f float64, ok bool) {
	switch v.Kind {
	case Float:
		return v.F, true
	case Int:
		return float64(v.I), true
	default:
		return 0, false
	}
}

// Row is one record, positionally aligned with Table.Columns.
type Row []Value

// Table is an ordered set of rows sharing one column layout.
type Table struct {
	Columns []string
	// IDColumn names the integer identifier column, if any.
	IDColumn string
	Rows     []Row
}

// New returns an empty table with the given layout.
func New(columns []string, idColumn string) *Table {
	return &Table{Columns: slices.Clone(columns), IDColumn: idColumn}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of a column or -1.
func (t *Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Column returns all values of one column.
func (t *Table) Column(name string) ([]Value, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.Columns, t.IDColumn)
	out.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = slices.Clone(row)
	}
	return out
}

// Rename changes a column name in place.
func (t *Table) Rename(from, to string) error {
	idx := t.Index(from)
	if idx < 0 {
		return fmt.Errorf("unknown column %q", from)
	}
	if t.Has(to) {
		return fmt.Errorf("column %q already exists", to)
	}
	t.Columns[idx] = to
	if t.IDColumn == from {
		t.IDColumn = to
	}
	return nil
}

// AddColumn appends a column filled with nulls and returns its index.
func (t *Table) AddColumn(name string) (int, error) {
	if t.Has(name) {
		return -1, fmt.Errorf("column %q already exists", name)
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], NullValue())
	}
	return len(t.Columns) - 1, nil
}

// Concat appends the rows of every table in order. All tables must share
// the same columns.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to concatenate")
	}

	first := tables[0]
	out := New(first.Columns, first.IDColumn)
	for i, t := range tables {
		if !slices.Equal(t.Columns, first.Columns) {
			return nil, fmt.Errorf("table %d columns %v do not match %v", i, t.Columns, first.Columns)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}
