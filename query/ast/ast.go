// Package ast defines the query AST (Abstract Syntax Tree).
package ast

import (
	"fmt"
	"slices"
	"strings"

	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/schema"
)

// StatementKind represents the type of statement a QuerySpec compiles to
type StatementKind string

const (
	StatementSelect StatementKind = "SELECT"
	StatementInsert StatementKind = "INSERT"
	StatementUpdate StatementKind = "UPDATE"
	StatementDelete StatementKind = "DELETE"
)

// QuerySpec is the mutable state assembled by a query builder.
type QuerySpec struct {
	Kind      StatementKind
	Root      *schema.EntityType // nil for raw table queries
	Table     string             // used when Root is nil
	Fields    []Field
	Values    Assignments
	Predicate PredicateTree
	Joins     JoinTree
	OrderBy   *OrderBy
	GroupBy   string
	Limit     *int
	Offset    *int
}

// TableName returns the target table of the statement.
func (q *QuerySpec) TableName() string {
	if q.Root != nil {
		return q.Root.Table()
	}
	return q.Table
}

// PrimaryKey returns the primary key column used to refetch written rows.
func (q *QuerySpec) PrimaryKey() string {
	if q.Root != nil {
		return q.Root.PrimaryKey()
	}
	return "id"
}

// Clone returns a deep copy of the spec. Values bound in conditions and
// assignments are shared.
func (q *QuerySpec) Clone() *QuerySpec {
	c := *q
	c.Fields = slices.Clone(q.Fields)
	c.Values = slices.Clone(q.Values)
	c.Predicate = q.Predicate.Clone()
	c.Joins = q.Joins.Clone()
	if q.OrderBy != nil {
		ob := *q.OrderBy
		c.OrderBy = &ob
	}
	if q.Limit != nil {
		n := *q.Limit
		c.Limit = &n
	}
	if q.Offset != nil {
		n := *q.Offset
		c.Offset = &n
	}
	return &c
}

// Connective represents logical connectives between conditions
type Connective string

const (
	And Connective = "AND"
	Or  Connective = "OR"
)

// ParseConnective accepts AND or OR in any case.
func ParseConnective(s string) (Connective, error) {
	switch c := Connective(strings.ToUpper(strings.TrimSpace(s))); c {
	case And, Or:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", query.ErrUnsupportedConnective, s)
}

// operators lists the comparison operators a condition may use.
var operators = map[string]struct{}{
	"=": {}, "!=": {}, "<>": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
	"LIKE": {}, "NOT LIKE": {},
}

// ParseOperator normalizes op and reports whether it is supported.
func ParseOperator(op string) (string, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(op), " "))
	if _, ok := operators[norm]; !ok {
		return "", fmt.Errorf("%w: unsupported operator %q", query.ErrInvalidPredicateShape, op)
	}
	return norm, nil
}

// Condition represents a single filter condition
type Condition struct {
	Column   string
	Operator string
	Value    any
}

// Equals builds a "column = value" condition.
func Equals(column string, value any) Condition {
	return Condition{Column: column, Operator: "=", Value: value}
}

// Op builds a condition with an explicit operator.
func Op(column, operator string, value any) (Condition, error) {
	if column == "" {
		return Condition{}, fmt.Errorf("%w: empty column", query.ErrInvalidPredicateShape)
	}
	op, err := ParseOperator(operator)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Column: column, Operator: op, Value: value}, nil
}

// Tuple builds a condition from a positional tuple: (column, value) or
// (column, operator, value).
func Tuple(args ...any) (Condition, error) {
	if len(args) != 2 && len(args) != 3 {
		return Condition{}, fmt.Errorf("%w: condition needs 2 or 3 elements, got %d",
			query.ErrInvalidPredicateShape, len(args))
	}
	column, ok := args[0].(string)
	if !ok || column == "" {
		return Condition{}, fmt.Errorf("%w: column must be a non-empty string, got %v",
			query.ErrInvalidPredicateShape, args[0])
	}
	if len(args) == 2 {
		return Equals(column, args[1]), nil
	}
	op, ok := args[1].(string)
	if !ok {
		return Condition{}, fmt.Errorf("%w: operator must be a string, got %v",
			query.ErrInvalidPredicateShape, args[1])
	}
	return Op(column, op, args[2])
}

// Segment is a run of conditions joined by one connective.
type Segment struct {
	Connective Connective
	Conditions []Condition
}

// PredicateTree is an ordered sequence of segments. Each segment's
// connective also joins it to the segment that follows.
type PredicateTree []Segment

// Add validates conds and appends them as one segment. An empty operator
// defaults to "=".
func (p *PredicateTree) Add(conn Connective, conds ...Condition) error {
	if conn != And && conn != Or {
		return fmt.Errorf("%w: %q", query.ErrUnsupportedConnective, conn)
	}
	if len(conds) == 0 {
		return fmt.Errorf("%w: empty condition group", query.ErrInvalidPredicateShape)
	}
	seg := Segment{Connective: conn, Conditions: make([]Condition, len(conds))}
	for i, c := range conds {
		if c.Operator == "" {
			c.Operator = "="
		}
		norm, err := Op(c.Column, c.Operator, c.Value)
		if err != nil {
			return err
		}
		seg.Conditions[i] = norm
	}
	*p = append(*p, seg)
	return nil
}

// Empty reports whether the tree holds no segment.
func (p PredicateTree) Empty() bool { return len(p) == 0 }

// Clone returns a copy with its own segment slices.
func (p PredicateTree) Clone() PredicateTree {
	if p == nil {
		return nil
	}
	out := make(PredicateTree, len(p))
	for i, seg := range p {
		out[i] = Segment{Connective: seg.Connective, Conditions: slices.Clone(seg.Conditions)}
	}
	return out
}

// JoinNode is one entity to join. Children are joined on Entity rather than
// on the root.
type JoinNode struct {
	Entity   *schema.EntityType
	Children JoinTree
}

// JoinTree is an ordered sequence of join nodes.
type JoinTree []JoinNode

// Leaf joins et directly on its parent.
func Leaf(et *schema.EntityType) JoinNode {
	return JoinNode{Entity: et}
}

// Nested joins et on its parent, then joins children on et.
func Nested(et *schema.EntityType, children ...JoinNode) JoinNode {
	return JoinNode{Entity: et, Children: children}
}

// Edge is a parent/child pair from a join tree.
type Edge struct {
	Parent *schema.EntityType
	Child  *schema.EntityType
}

// Edges walks the tree depth first and returns every parent/child pair in
// join order.
func (t JoinTree) Edges(root *schema.EntityType) []Edge {
	var out []Edge
	var walk func(parent *schema.EntityType, nodes JoinTree)
	walk = func(parent *schema.EntityType, nodes JoinTree) {
		for _, n := range nodes {
			out = append(out, Edge{Parent: parent, Child: n.Entity})
			walk(n.Entity, n.Children)
		}
	}
	walk(root, t)
	return out
}

// Flatten returns root followed by every joined type in join order.
func (t JoinTree) Flatten(root *schema.EntityType) []*schema.EntityType {
	out := []*schema.EntityType{root}
	for _, e := range t.Edges(root) {
		out = append(out, e.Child)
	}
	return out
}

// Clone returns a deep copy of the tree.
func (t JoinTree) Clone() JoinTree {
	if t == nil {
		return nil
	}
	out := make(JoinTree, len(t))
	for i, n := range t {
		out[i] = JoinNode{Entity: n.Entity, Children: n.Children.Clone()}
	}
	return out
}

// Field is a projected column or an aggregate call.
type Field struct {
	Column string
	Func   string
	Arg    string
	Alias  string
}

// Col projects a column verbatim.
func Col(name string) Field {
	return Field{Column: name}
}

// Aggregate projects fn(arg), optionally aliased.
func Aggregate(fn, arg, alias string) Field {
	return Field{Func: fn, Arg: arg, Alias: alias}
}

// IsAggregate reports whether the field is a function call.
func (f Field) IsAggregate() bool { return f.Func != "" }

// Direction represents sort direction
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc or desc in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Asc, Desc:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", query.ErrUnsupportedOrderDirection, s)
}

// OrderBy represents ordering
type OrderBy struct {
	Column    string
	Direction Direction
}

// Assignment is one column written by INSERT or UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// Assignments keeps column writes in the order they were supplied.
type Assignments []Assignment

// Set replaces the value of an existing column or appends a new one.
func (a *Assignments) Set(column string, value any) {
	for i := range *a {
		if (*a)[i].Column == column {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Assignment{Column: column, Value: value})
}

// Columns returns the assigned columns in order.
func (a Assignments) Columns() []string {
	out := make([]string, len(a))
	for i, as := range a {
		out[i] = as.Column
	}
	return out
}

// Args returns the assigned values in column order.
func (a Assignments) Args() []any {
	out := make([]any, len(a))
	for i, as := range a {
		out[i] = as.Value
	}
	return out
}
