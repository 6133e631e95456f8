// Package mapper hydrates flat result rows into entity graphs.
package mapper

import (
	"fmt"
	"slices"
)

// Value is the content of one result column: a scalar, or the ordered values
// of every joined table exposing a column with that name.
type Value struct {
	scalar   any
	collided []any
}

// Scalar wraps a single column value.
func Scalar(v any) Value {
	return Value{scalar: v}
}

// Collided wraps the values of a column shared by several joined tables, in
// join order.
func Collided(vs ...any) Value {
	return Value{collided: slices.Clone(vs)}
}

// IsCollided reports whether several tables contributed to the column.
func (v Value) IsCollided() bool { return v.collided != nil }

// Values returns the collided values, or the scalar as a one-element slice.
func (v Value) Values() []any {
	if v.IsCollided() {
		return slices.Clone(v.collided)
	}
	return []any{v.scalar}
}

// Slot returns the value at position i. A scalar answers every slot since it
// was contributed by the only table exposing the column.
func (v Value) Slot(i int) (any, bool) {
	if !v.IsCollided() {
		return v.scalar, true
	}
	if i < 0 || i >= len(v.collided) {
		return nil, false
	}
	return v.collided[i], true
}

// First returns slot 0.
func (v Value) First() any {
	out, _ := v.Slot(0)
	return out
}

func (v Value) String() string {
	if v.IsCollided() {
		return fmt.Sprint(v.collided)
	}
	return fmt.Sprint(v.scalar)
}

// Row is an ordered mapping from column name to Value, decoded from one
// physical result row.
type Row struct {
	columns []string
	values  map[string]Value
}

// RowFromColumns pairs column names with scanned values. Repeated column
// names become a single Collided value holding each occurrence in order.
func RowFromColumns(columns []string, values []any) (Row, error) {
	if len(columns) != len(values) {
		return Row{}, fmt.Errorf("row has %d columns but %d values", len(columns), len(values))
	}

	grouped := make(map[string][]any, len(columns))
	r := Row{values: make(map[string]Value, len(columns))}
	for i, col := range columns {
		if _, seen := grouped[col]; !seen {
			r.columns = append(r.columns, col)
		}
		grouped[col] = append(grouped[col], values[i])
	}
	for col, vs := range grouped {
		if len(vs) == 1 {
			r.values[col] = Scalar(vs[0])
		} else {
			r.values[col] = Collided(vs...)
		}
	}
	return r, nil
}

// NewRow builds a row from already decoded values, keeping the order of
// columns.
func NewRow(columns []string, values map[string]Value) Row {
	r := Row{values: make(map[string]Value, len(columns))}
	for _, col := range columns {
		v, ok := values[col]
		if !ok {
			continue
		}
		if _, dup := r.values[col]; !dup {
			r.columns = append(r.columns, col)
		}
		r.values[col] = v
	}
	return r
}

// Columns returns the distinct column names in result order.
func (r Row) Columns() []string { return slices.Clone(r.columns) }

// Get returns the value of column.
func (r Row) Get(column string) (Value, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Len returns the number of distinct columns.
func (r Row) Len() int { return len(r.columns) }
