// Package sqlgen provides WHERE clause structures.
package sqlgen

import (
	"github.com/expreql/expreql/query/ast"
)

// WhereClause represents a rendered WHERE condition and its parameters
type WhereClause struct {
	SQL  string
	Args []any
}

// NewWhereClause renders tree into a WHERE clause
func NewWhereClause(tree ast.PredicateTree) (*WhereClause, error) {
	sql, args, err := buildWhere(tree)
	if err != nil {
		return nil, err
	}
	return &WhereClause{SQL: sql, Args: args}, nil
}

// IsEmpty returns true if the WHERE clause is empty
func (w *WhereClause) IsEmpty() bool {
	return w == nil || w.SQL == ""
}

// String returns the clause including the WHERE keyword, or "" when empty
func (w *WhereClause) String() string {
	if w.IsEmpty() {
		return ""
	}
	return "WHERE " + w.SQL
}
