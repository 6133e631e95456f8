// Package builder provides a fluent query builder API.
package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/compiler"
	"github.com/expreql/expreql/query/executor"
	"github.com/expreql/expreql/query/mapper"
	"github.com/expreql/expreql/query/sqlgen"
	"github.com/expreql/expreql/schema"
)

// State is the lifecycle stage of a QueryBuilder.
type State int

const (
	StateEmpty State = iota
	StateConfigured
	StateBuilt
	StateExecuted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateConfigured:
		return "configured"
	case StateBuilt:
		return "built"
	case StateExecuted:
		return "executed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// QueryBuilder assembles a QuerySpec, compiles it and runs it. Mutators
// record the first error they hit and turn every later call into a no-op;
// Err, Build and Execute report it. Once built, the statement is fixed: a
// later mutator only records ErrBuilderSealed for Err. A QueryBuilder is not safe for
// concurrent use.
type QueryBuilder struct {
	exec     *executor.Executor
	compiler *compiler.Compiler

	spec  *ast.QuerySpec
	state State
	err   error
	built *sqlgen.Query
}

// New creates a builder that runs statements on exec. Joins are resolved
// against registry; a nil registry reads relations from the entity types.
func New(exec *executor.Executor, registry *schema.Registry) *QueryBuilder {
	return &QueryBuilder{
		exec:     exec,
		compiler: compiler.NewCompiler(registry),
		spec:     &ast.QuerySpec{Kind: ast.StatementSelect},
	}
}

// mutate runs fn unless the builder already failed or was built. Errors
// returned by fn are latched with op as context.
func (q *QueryBuilder) mutate(op string, fn func() error) *QueryBuilder {
	if q.err != nil {
		return q
	}
	if q.state >= StateBuilt {
		q.err = fmt.Errorf("%s: %w", op, query.ErrBuilderSealed)
		return q
	}
	if err := fn(); err != nil {
		q.err = fmt.Errorf("%s: %w", op, err)
		return q
	}
	q.state = StateConfigured
	return q
}

// Entity targets the table of a registered entity type.
func (q *QueryBuilder) Entity(et *schema.EntityType) *QueryBuilder {
	return q.mutate("entity", func() error {
		if et == nil {
			return query.ErrUnknownEntity
		}
		q.spec.Root = et
		q.spec.Table = ""
		return nil
	})
}

// Table targets a table without a registered entity. Such queries cannot
// join and their rows are returned flat.
func (q *QueryBuilder) Table(name string) *QueryBuilder {
	return q.mutate("table", func() error {
		if name == "" {
			return query.ErrMissingTable
		}
		if len(q.spec.Joins) > 0 {
			return fmt.Errorf("%w: joins need an entity root", query.ErrUnresolvedAssociation)
		}
		q.spec.Root = nil
		q.spec.Table = name
		return nil
	})
}

// Fields projects columns verbatim. Qualified names such as
// "exercises.title" are allowed.
func (q *QueryBuilder) Fields(columns ...string) *QueryBuilder {
	return q.mutate("fields", func() error {
		for _, c := range columns {
			if c == "" {
				return fmt.Errorf("%w: empty field name", query.ErrInvalidPredicateShape)
			}
			q.spec.Fields = append(q.spec.Fields, ast.Col(c))
		}
		return nil
	})
}

// Columns projects fields, including aggregates built with Count, Sum, Avg,
// Min and Max.
func (q *QueryBuilder) Columns(fields ...ast.Field) *QueryBuilder {
	return q.mutate("columns", func() error {
		for _, f := range fields {
			if f.Column == "" && f.Func == "" {
				return fmt.Errorf("%w: empty field", query.ErrInvalidPredicateShape)
			}
		}
		q.spec.Fields = append(q.spec.Fields, fields...)
		return nil
	})
}

// Where adds a one-condition AND segment from (column, value) or
// (column, operator, value).
func (q *QueryBuilder) Where(column string, args ...any) *QueryBuilder {
	return q.mutate("where", func() error {
		cond, err := ast.Tuple(append([]any{column}, args...)...)
		if err != nil {
			return err
		}
		return q.spec.Predicate.Add(ast.And, cond)
	})
}

// WhereEquals adds "column = value".
func (q *QueryBuilder) WhereEquals(column string, value any) *QueryBuilder {
	return q.mutate("where", func() error {
		if column == "" {
			return fmt.Errorf("%w: empty column", query.ErrInvalidPredicateShape)
		}
		return q.spec.Predicate.Add(ast.And, ast.Equals(column, value))
	})
}

// WhereOp adds "column operator value".
func (q *QueryBuilder) WhereOp(column, operator string, value any) *QueryBuilder {
	return q.mutate("where", func() error {
		cond, err := ast.Op(column, operator, value)
		if err != nil {
			return err
		}
		return q.spec.Predicate.Add(ast.And, cond)
	})
}

// WhereGroup adds a segment whose conditions are joined with AND.
func (q *QueryBuilder) WhereGroup(conds ...ast.Condition) *QueryBuilder {
	return q.mutate("where", func() error {
		return q.spec.Predicate.Add(ast.And, conds...)
	})
}

// WhereOr adds a segment whose conditions are joined with OR.
func (q *QueryBuilder) WhereOr(conds ...ast.Condition) *QueryBuilder {
	return q.mutate("where_or", func() error {
		return q.spec.Predicate.Add(ast.Or, conds...)
	})
}

// WhereTuples adds a segment from positional tuples joined by connective,
// which must be AND or OR.
func (q *QueryBuilder) WhereTuples(connective string, tuples ...[]any) *QueryBuilder {
	return q.mutate("where", func() error {
		conn, err := ast.ParseConnective(connective)
		if err != nil {
			return err
		}
		conds := make([]ast.Condition, 0, len(tuples))
		for _, t := range tuples {
			c, err := ast.Tuple(t...)
			if err != nil {
				return err
			}
			conds = append(conds, c)
		}
		return q.spec.Predicate.Add(conn, conds...)
	})
}

// OrderBy sets the ordering. direction is ASC or DESC in any case.
func (q *QueryBuilder) OrderBy(column, direction string) *QueryBuilder {
	return q.mutate("order_by", func() error {
		dir, err := ast.ParseDirection(direction)
		if err != nil {
			return err
		}
		if column == "" {
			return fmt.Errorf("%w: empty order column", query.ErrInvalidPredicateShape)
		}
		q.spec.OrderBy = &ast.OrderBy{Column: column, Direction: dir}
		return nil
	})
}

// GroupBy sets the grouping column.
func (q *QueryBuilder) GroupBy(column string) *QueryBuilder {
	return q.mutate("group_by", func() error {
		if column == "" {
			return fmt.Errorf("%w: empty group column", query.ErrInvalidPredicateShape)
		}
		q.spec.GroupBy = column
		return nil
	})
}

// Limit caps the number of rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	return q.mutate("limit", func() error {
		if n < 0 {
			return fmt.Errorf("%w: negative limit %d", query.ErrInvalidPredicateShape, n)
		}
		q.spec.Limit = &n
		return nil
	})
}

// Offset skips rows.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	return q.mutate("offset", func() error {
		if n < 0 {
			return fmt.Errorf("%w: negative offset %d", query.ErrInvalidPredicateShape, n)
		}
		q.spec.Offset = &n
		return nil
	})
}

// Join appends nodes to the join tree. Every edge is resolved immediately so
// an undeclared relation fails here rather than at Build.
func (q *QueryBuilder) Join(nodes ...ast.JoinNode) *QueryBuilder {
	return q.mutate("join", func() error {
		if q.spec.Root == nil {
			return fmt.Errorf("%w: joins need an entity root", query.ErrUnresolvedAssociation)
		}
		if _, err := q.compiler.Resolver().Resolve(q.spec.Root, nodes); err != nil {
			return err
		}
		q.spec.Joins = append(q.spec.Joins, nodes...)
		return nil
	})
}

// Insert turns the statement into an INSERT of the assigned values.
func (q *QueryBuilder) Insert() *QueryBuilder {
	return q.kind("insert", ast.StatementInsert)
}

// Update turns the statement into an UPDATE of the assigned values.
func (q *QueryBuilder) Update() *QueryBuilder {
	return q.kind("update", ast.StatementUpdate)
}

// Delete turns the statement into a DELETE.
func (q *QueryBuilder) Delete() *QueryBuilder {
	return q.kind("delete", ast.StatementDelete)
}

func (q *QueryBuilder) kind(op string, kind ast.StatementKind) *QueryBuilder {
	return q.mutate(op, func() error {
		q.spec.Kind = kind
		return nil
	})
}

// Set assigns a column for INSERT or UPDATE. Columns keep the order of their
// first assignment.
func (q *QueryBuilder) Set(column string, value any) *QueryBuilder {
	return q.mutate("set", func() error {
		if column == "" {
			return fmt.Errorf("%w: empty column", query.ErrEmptyFields)
		}
		q.spec.Values.Set(column, value)
		return nil
	})
}

// Values assigns several columns in order.
func (q *QueryBuilder) Values(values ...ast.Assignment) *QueryBuilder {
	return q.mutate("values", func() error {
		for _, v := range values {
			if v.Column == "" {
				return fmt.Errorf("%w: empty column", query.ErrEmptyFields)
			}
			q.spec.Values.Set(v.Column, v.Value)
		}
		return nil
	})
}

// Err returns the first error recorded by a mutator.
func (q *QueryBuilder) Err() error { return q.err }

// State returns the lifecycle stage.
func (q *QueryBuilder) State() State { return q.state }

// Spec returns a copy of the assembled spec.
func (q *QueryBuilder) Spec() *ast.QuerySpec { return q.spec.Clone() }

// Build compiles the statement without executing it. Calling Build again
// returns the same statement, even when a later mutator was rejected.
func (q *QueryBuilder) Build() (*sqlgen.Query, error) {
	if q.built != nil {
		return q.built, nil
	}
	if q.err != nil {
		return nil, q.err
	}
	if q.spec.TableName() == "" {
		return nil, query.ErrMissingTable
	}

	built, err := q.compiler.Compile(q.spec)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	q.built = built
	q.state = StateBuilt
	return built, nil
}

// Execute builds the statement if needed, runs it and returns its result.
// SELECT rows are hydrated into entities; INSERT, and UPDATE when the
// engine reports a last-insert id, read the written row back. A builder runs
// at most once.
func (q *QueryBuilder) Execute(ctx context.Context) (*executor.Result, error) {
	if q.state == StateExecuted {
		return nil, fmt.Errorf("execute: %w: statement already executed", query.ErrBuilderSealed)
	}
	built, err := q.Build()
	if err != nil {
		return nil, err
	}
	if q.exec == nil {
		return nil, &query.QueryError{
			Operation: "execute",
			Table:     q.spec.TableName(),
			SQL:       built.SQL,
			Cause:     errors.Join(query.ErrStatementPreparationFailed, errors.New("no executor")),
		}
	}
	q.state = StateExecuted

	switch q.spec.Kind {
	case ast.StatementInsert, ast.StatementUpdate:
		return q.write(ctx, built)
	case ast.StatementDelete:
		res, err := q.exec.Exec(ctx, built)
		if err != nil {
			return nil, err
		}
		return &executor.Result{Kind: ast.StatementDelete, RowsAffected: res.RowsAffected}, nil
	default:
		return q.read(ctx, built)
	}
}

func (q *QueryBuilder) read(ctx context.Context, built *sqlgen.Query) (*executor.Result, error) {
	rows, err := q.exec.Query(ctx, built)
	if err != nil {
		return nil, err
	}
	hydrated, err := mapper.NewHydrator(q.spec.Root, q.spec.Joins).Hydrate(rows)
	if err != nil {
		return nil, query.NewQueryError("hydrate", q.spec.TableName(), err)
	}
	return &executor.Result{
		Kind:     ast.StatementSelect,
		Entities: hydrated.Entities,
		Skipped:  hydrated.Skipped,
	}, nil
}

// write runs an INSERT or UPDATE then refetches the written row by primary
// key. The key is the reported last-insert id, or for INSERT the assigned
// primary key value when the engine reports none.
func (q *QueryBuilder) write(ctx context.Context, built *sqlgen.Query) (*executor.Result, error) {
	res, err := q.exec.Exec(ctx, built)
	if err != nil {
		return nil, err
	}
	out := &executor.Result{
		Kind:         q.spec.Kind,
		RowsAffected: res.RowsAffected,
		LastInsertID: res.LastInsertID,
	}

	var id any
	switch {
	case res.HasLastInsertID:
		id = res.LastInsertID
	case q.spec.Kind == ast.StatementInsert:
		for _, as := range q.spec.Values {
			if as.Column == q.spec.PrimaryKey() {
				id = as.Value
			}
		}
	}
	if id == nil {
		return out, nil
	}

	rows, err := q.exec.Query(ctx, q.compiler.Refetch(q.spec, id))
	if err != nil {
		return nil, err
	}
	hydrated, err := mapper.NewHydrator(q.spec.Root, nil).Hydrate(rows)
	if err != nil {
		return nil, query.NewQueryError("refetch", q.spec.TableName(), err)
	}
	if len(hydrated.Entities) > 0 {
		out.Entity = hydrated.Entities[0]
	}
	return out, nil
}
