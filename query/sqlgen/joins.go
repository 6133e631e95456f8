// Package sqlgen provides JOIN clause generation for relations.
package sqlgen

import (
	"fmt"
)

// JoinType represents the kind of JOIN
type JoinType string

const (
	LeftJoin  JoinType = "LEFT"
	InnerJoin JoinType = "INNER"
)

// Join represents a JOIN clause
type Join struct {
	Type      JoinType
	Table     string // Table to join
	Condition string // JOIN condition (e.g., "exercises.id = questions.exercises_id")
}

// NewJoin builds a join whose condition equates leftTable.leftColumn with
// table.rightColumn.
func NewJoin(typ JoinType, leftTable, leftColumn, table, rightColumn string) Join {
	return Join{
		Type:      typ,
		Table:     table,
		Condition: fmt.Sprintf("%s.%s = %s.%s", leftTable, leftColumn, table, rightColumn),
	}
}

// String renders the clause, e.g. "LEFT JOIN questions ON exercises.id = questions.exercises_id"
func (j Join) String() string {
	typ := j.Type
	if typ == "" {
		typ = LeftJoin
	}
	return fmt.Sprintf("%s JOIN %s ON %s", typ, j.Table, j.Condition)
}
