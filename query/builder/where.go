package builder

import (
	"github.com/expreql/expreql/query/ast"
)

// WhereBuilder collects the conditions of one predicate segment
type WhereBuilder struct {
	conditions []ast.Condition
}

// Conditions starts a condition group for WhereGroup or WhereOr
func Conditions() *WhereBuilder {
	return &WhereBuilder{}
}

func (w *WhereBuilder) add(field, op string, value any) *WhereBuilder {
	w.conditions = append(w.conditions, ast.Condition{Column: field, Operator: op, Value: value})
	return w
}

// Equals adds an equality condition
func (w *WhereBuilder) Equals(field string, value any) *WhereBuilder {
	return w.add(field, "=", value)
}

// NotEquals adds a not-equals condition
func (w *WhereBuilder) NotEquals(field string, value any) *WhereBuilder {
	return w.add(field, "!=", value)
}

// GreaterThan adds a greater-than condition
func (w *WhereBuilder) GreaterThan(field string, value any) *WhereBuilder {
	return w.add(field, ">", value)
}

// LessThan adds a less-than condition
func (w *WhereBuilder) LessThan(field string, value any) *WhereBuilder {
	return w.add(field, "<", value)
}

// GreaterOrEqual adds a greater-or-equal condition
func (w *WhereBuilder) GreaterOrEqual(field string, value any) *WhereBuilder {
	return w.add(field, ">=", value)
}

// LessOrEqual adds a less-or-equal condition
func (w *WhereBuilder) LessOrEqual(field string, value any) *WhereBuilder {
	return w.add(field, "<=", value)
}

// Like adds a LIKE condition
func (w *WhereBuilder) Like(field string, pattern string) *WhereBuilder {
	return w.add(field, "LIKE", pattern)
}

// NotLike adds a NOT LIKE condition
func (w *WhereBuilder) NotLike(field string, pattern string) *WhereBuilder {
	return w.add(field, "NOT LIKE", pattern)
}

// Build returns the collected conditions
func (w *WhereBuilder) Build() []ast.Condition {
	out := make([]ast.Condition, len(w.conditions))
	copy(out, w.conditions)
	return out
}
