// Package query holds the error taxonomy shared by the query compiler, the
// executor and the result hydrator.
package query

import (
	"errors"
	"fmt"
)

// Builder-time errors.
var (
	// ErrInvalidPredicateShape is returned when a where condition has the wrong arity
	// or an empty column/operator.
	ErrInvalidPredicateShape = errors.New("invalid predicate shape")

	// ErrUnsupportedConnective is returned for a connective other than AND/OR.
	ErrUnsupportedConnective = errors.New("unsupported connective")

	// ErrUnsupportedOrderDirection is returned for an order keyword other than ASC/DESC.
	ErrUnsupportedOrderDirection = errors.New("unsupported order direction")

	// ErrUnresolvedAssociation is returned when a join is requested between two
	// entity types that declare no relation to each other.
	ErrUnresolvedAssociation = errors.New("unresolved association")

	// ErrBuilderSealed is returned by mutators called after Build.
	ErrBuilderSealed = errors.New("query builder already built")

	// ErrMissingTable is returned when neither an entity nor a table was given.
	ErrMissingTable = errors.New("no table or entity selected")

	// ErrEmptyFields is returned by INSERT and UPDATE without any assignment.
	ErrEmptyFields = errors.New("no fields to write")
)

// Schema errors.
var (
	ErrUnknownEntity = errors.New("unknown entity type")
	ErrInvalidEntity = errors.New("invalid entity type")
)

// Execution and hydration errors.
var (
	// ErrDanglingJoinRow marks a joined row whose foreign key matches no known
	// parent. It is recorded as a skip, never returned by Execute.
	ErrDanglingJoinRow = errors.New("dangling join row")

	// ErrMissingPrimaryKey is returned when result rows do not carry the primary
	// key column of an entity type that must be hydrated.
	ErrMissingPrimaryKey = errors.New("primary key column missing from result")

	ErrStatementPreparationFailed = errors.New("statement preparation failed")
	ErrStatementExecutionFailed   = errors.New("statement execution failed")

	// ErrNotFound is returned by single-record lookups that match nothing.
	ErrNotFound = errors.New("record not found")
)

// QueryError represents a query failure with context.
type QueryError struct {
	Operation string
	Table     string
	SQL       string
	Detail    string
	Cause     error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := e.Operation
	if e.Table != "" {
		msg = fmt.Sprintf("%s on %s", e.Operation, e.Table)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a new QueryError.
func NewQueryError(op, table string, cause error) *QueryError {
	return &QueryError{
		Operation: op,
		Table:     table,
		Cause:     cause,
	}
}

// AssociationError is returned when no relation links Parent to Child.
type AssociationError struct {
	Parent string
	Child  string
}

// Error implements the error interface.
func (e *AssociationError) Error() string {
	return fmt.Sprintf("%s: no has_one, has_many or belongs_to relation from %s to %s",
		ErrUnresolvedAssociation, e.Parent, e.Child)
}

// Is reports whether target is ErrUnresolvedAssociation.
func (e *AssociationError) Is(target error) bool {
	return target == ErrUnresolvedAssociation
}
