package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind tells whether an event comes from Query or Exec.
type EventKind string

const (
	EventQuery EventKind = "query"
	EventExec  EventKind = "exec"
)

// QueryEvent represents a statement execution event
type QueryEvent struct {
	ID           string // unique per statement, shared by its log lines
	Kind         EventKind
	Query        string
	Args         []any
	RowsAffected int64 // rows returned for queries
	Duration     time.Duration
	Error        error
	Start        time.Time
	End          time.Time
}

// Middleware is a function that intercepts statements. It must call next
// exactly once to run the statement.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

func newEvent(kind EventKind, sql string, args []any) *QueryEvent {
	return &QueryEvent{ID: uuid.NewString(), Kind: kind, Query: sql, Args: args}
}
