// Package executor runs compiled statements against a database handle and
// decodes their rows.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/expreql/expreql/internal/debug"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/mapper"
	"github.com/expreql/expreql/query/sqlgen"
)

// Conn prepares statements. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Conn interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// ExecResult is what the engine reports after a write.
type ExecResult struct {
	RowsAffected int64
	LastInsertID int64
	// HasLastInsertID is false when the driver reports no id or id 0.
	HasLastInsertID bool
}

// Result is the outcome of executing one statement.
type Result struct {
	Kind ast.StatementKind

	// SELECT
	Entities mapper.ResultGraph
	Skipped  []mapper.SkippedRow

	// INSERT, and UPDATE when the engine reports a last-insert id: the row
	// read back after the write.
	Entity *mapper.Entity

	RowsAffected int64
	LastInsertID int64
}

// Executor executes statements one at a time on a connection handle
type Executor struct {
	conn        Conn
	middlewares []Middleware
}

// NewExecutor creates a new statement executor
func NewExecutor(conn Conn, middlewares ...Middleware) *Executor {
	return &Executor{
		conn:        conn,
		middlewares: middlewares,
	}
}

// Use adds a middleware to the chain
func (e *Executor) Use(middleware ...Middleware) {
	e.middlewares = append(e.middlewares, middleware...)
}

// Conn returns the underlying connection handle
func (e *Executor) Conn() Conn { return e.conn }

// Query prepares q, binds its arguments positionally and decodes every row.
func (e *Executor) Query(ctx context.Context, q *sqlgen.Query) ([]mapper.Row, error) {
	var rows []mapper.Row
	event := newEvent(EventQuery, q.SQL, q.Args)

	err := e.run(ctx, event, func(stmt *sql.Stmt) error {
		rs, err := stmt.QueryContext(ctx, q.Args...)
		if err != nil {
			return executionError(q, err)
		}
		defer rs.Close()

		rows, err = decodeRows(rs)
		if err != nil {
			return executionError(q, err)
		}
		event.RowsAffected = int64(len(rows))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Exec prepares q, binds its arguments positionally and runs it.
func (e *Executor) Exec(ctx context.Context, q *sqlgen.Query) (ExecResult, error) {
	var out ExecResult
	event := newEvent(EventExec, q.SQL, q.Args)

	err := e.run(ctx, event, func(stmt *sql.Stmt) error {
		res, err := stmt.ExecContext(ctx, q.Args...)
		if err != nil {
			return executionError(q, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			out.RowsAffected = n
		}
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			out.LastInsertID = id
			out.HasLastInsertID = true
		}
		event.RowsAffected = out.RowsAffected
		return nil
	})
	if err != nil {
		return ExecResult{}, err
	}
	return out, nil
}

// run prepares the statement and passes it to fn inside the middleware
// chain. The statement is closed before run returns.
func (e *Executor) run(ctx context.Context, event *QueryEvent, fn func(*sql.Stmt) error) error {
	if e.conn == nil {
		return &query.QueryError{
			Operation: "prepare",
			SQL:       event.Query,
			Cause:     errors.Join(query.ErrStatementPreparationFailed, errors.New("no connection")),
		}
	}

	log := debug.With("id", event.ID, "sql", event.Query)
	exec := func() error {
		log.Debug("preparing statement", "args", event.Args)
		stmt, err := e.conn.PrepareContext(ctx, event.Query)
		if err != nil {
			return preparationError(event.Query, err)
		}
		defer stmt.Close()
		return fn(stmt)
	}

	err := e.chain(ctx, event, exec)
	if err != nil {
		log.Error("statement failed", "error", err)
		return err
	}
	log.Debug("statement done", "rows", event.RowsAffected, "duration", event.Duration)
	return nil
}

// chain runs exec through every middleware in registration order
func (e *Executor) chain(ctx context.Context, event *QueryEvent, exec func() error) error {
	event.Start = time.Now()
	finish := func() error {
		err := exec()
		event.End = time.Now()
		event.Duration = event.End.Sub(event.Start)
		event.Error = err
		return err
	}
	if len(e.middlewares) == 0 {
		return finish()
	}

	var next func() error
	index := 0
	next = func() error {
		if index >= len(e.middlewares) {
			return finish()
		}
		middleware := e.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}
	return next()
}
