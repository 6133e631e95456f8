package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expreql/expreql/internal/testutil"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/executor"
)

func TestBuildSelect(t *testing.T) {
	fx := testutil.NewEntities()

	tests := []struct {
		name  string
		build func(q *QueryBuilder) *QueryBuilder
		sql   string
		args  []any
	}{
		{
			name: "single AND segment has no parentheses",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Table("furnitures").
					Fields("name", "price", "dimensions").
					WhereTuples("AND", []any{"id", 12}, []any{"price", "<=", 50})
			},
			sql:  "SELECT name, price, dimensions FROM furnitures WHERE id = ? AND price <= ?",
			args: []any{12, 50},
		},
		{
			name: "or segment after and segment",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Table("furnitures").
					Where("price", "<=", 50).
					WhereOr(ast.Equals("availability", "in_stock"), ast.Equals("availability", "ordered"))
			},
			sql:  "SELECT * FROM furnitures WHERE price <= ? AND (availability = ? OR availability = ?)",
			args: []any{50, "in_stock", "ordered"},
		},
		{
			name: "condition group builder",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Table("furnitures").
					WhereEquals("category", "chair").
					WhereGroup(Conditions().GreaterOrEqual("price", 10).Like("name", "Ek%").Build()...)
			},
			sql:  "SELECT * FROM furnitures WHERE category = ? AND (price >= ? AND name LIKE ?)",
			args: []any{"chair", 10, "Ek%"},
		},
		{
			name: "limit",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Table("furnitures").Limit(100)
			},
			sql: "SELECT * FROM furnitures LIMIT 100",
		},
		{
			name: "offset",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Table("furnitures").Offset(100)
			},
			sql: "SELECT * FROM furnitures OFFSET 100",
		},
		{
			name: "aggregates and ordering",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Table("furnitures").
					Columns(ast.Col("category"), Count("total"), Avg("price", "")).
					OrderBy("category", "asc").
					GroupBy("category")
			},
			sql: "SELECT category, COUNT(*) AS total, AVG(price) FROM furnitures ORDER BY category ASC GROUP BY category",
		},
		{
			name: "single join",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Entity(fx.Exercise).
					Join(ast.Leaf(fx.Question)).
					WhereEquals(fx.Exercise.Field("id"), 8)
			},
			sql:  "SELECT * FROM exercises LEFT JOIN questions ON exercises.id = questions.exercises_id WHERE exercises.id = ?",
			args: []any{8},
		},
		{
			name: "nested join substitutes parent",
			build: func(q *QueryBuilder) *QueryBuilder {
				return q.Entity(fx.Exercise).
					Join(ast.Leaf(fx.Question), ast.Nested(fx.Fulfillment, ast.Leaf(fx.Response))).
					WhereEquals("exercises.id", 8)
			},
			sql: "SELECT * FROM exercises" +
				" LEFT JOIN questions ON exercises.id = questions.exercises_id" +
				" LEFT JOIN fulfillments ON exercises.id = fulfillments.exercises_id" +
				" LEFT JOIN responses ON fulfillments.id = responses.fulfillments_id" +
				" WHERE exercises.id = ?",
			args: []any{8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.build(New(nil, fx.Registry))
			require.NoError(t, q.Err())

			built, err := q.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.sql, built.SQL)
			assert.Equal(t, tt.args, built.Args)
		})
	}
}

func TestBuildWrites(t *testing.T) {
	t.Run("insert keeps assignment order", func(t *testing.T) {
		built, err := New(nil, nil).Table("books").Insert().Set("title", "T").Set("isbn", "I").Build()
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO `books` (`title`, `isbn`) VALUES (?,?)", built.SQL)
		assert.Equal(t, []any{"T", "I"}, built.Args)
	})

	t.Run("update", func(t *testing.T) {
		built, err := New(nil, nil).Table("books").Update().
			Values(ast.Assignment{Column: "title", Value: "U"}, ast.Assignment{Column: "isbn", Value: "V"}).
			WhereEquals("id", 4).
			Build()
		require.NoError(t, err)
		assert.Equal(t, "UPDATE books SET title = ?, isbn = ? WHERE id = ?", built.SQL)
		assert.Equal(t, []any{"U", "V", 4}, built.Args)
	})

	t.Run("delete", func(t *testing.T) {
		built, err := New(nil, nil).Table("books").Delete().Where("id", 4).Build()
		require.NoError(t, err)
		assert.Equal(t, "DELETE FROM books WHERE id = ?", built.SQL)
	})

	t.Run("insert without values", func(t *testing.T) {
		_, err := New(nil, nil).Table("books").Insert().Build()
		assert.ErrorIs(t, err, query.ErrEmptyFields)
	})
}

func TestStateMachine(t *testing.T) {
	fx := testutil.NewEntities()

	t.Run("build is idempotent", func(t *testing.T) {
		q := New(nil, fx.Registry).Entity(fx.Book).Where("title", "Dune")
		assert.Equal(t, StateConfigured, q.State())

		first, err := q.Build()
		require.NoError(t, err)
		second, err := q.Build()
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, StateBuilt, q.State())
	})

	t.Run("mutators after build are rejected", func(t *testing.T) {
		q := New(nil, fx.Registry).Entity(fx.Book)
		first, err := q.Build()
		require.NoError(t, err)

		q.Limit(5)
		assert.ErrorIs(t, q.Err(), query.ErrBuilderSealed)
		assert.Nil(t, q.Spec().Limit)

		second, err := q.Build()
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, "SELECT * FROM books", second.SQL)
	})

	t.Run("first error is latched", func(t *testing.T) {
		q := New(nil, fx.Registry).Table("books").Where("id").Fields("title")
		require.Error(t, q.Err())
		assert.ErrorIs(t, q.Err(), query.ErrInvalidPredicateShape)
		assert.Contains(t, q.Err().Error(), "where")
		assert.Empty(t, q.Spec().Fields)

		_, err := q.Build()
		assert.ErrorIs(t, err, query.ErrInvalidPredicateShape)
	})

	t.Run("enum validation at call time", func(t *testing.T) {
		q := New(nil, nil).Table("books").WhereTuples("XOR", []any{"id", 1})
		assert.ErrorIs(t, q.Err(), query.ErrUnsupportedConnective)

		q = New(nil, nil).Table("books").OrderBy("id", "upward")
		assert.ErrorIs(t, q.Err(), query.ErrUnsupportedOrderDirection)

		q = New(nil, nil).Table("books").WhereOp("id", "IN", 1)
		assert.ErrorIs(t, q.Err(), query.ErrInvalidPredicateShape)

		q = New(nil, nil).Table("books").WhereGroup(Conditions().Equals("", 1).Build()...)
		assert.ErrorIs(t, q.Err(), query.ErrInvalidPredicateShape)
	})

	t.Run("unresolved join fails at join", func(t *testing.T) {
		q := New(nil, fx.Registry).Entity(fx.Exercise).Join(ast.Leaf(fx.Response))
		assert.ErrorIs(t, q.Err(), query.ErrUnresolvedAssociation)

		q = New(nil, fx.Registry).Table("exercises").Join(ast.Leaf(fx.Question))
		assert.ErrorIs(t, q.Err(), query.ErrUnresolvedAssociation)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := New(nil, nil).Build()
		assert.ErrorIs(t, err, query.ErrMissingTable)
	})
}

func newMock(t *testing.T) (*executor.Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return executor.NewExecutor(db), mock
}

func TestExecuteSelect(t *testing.T) {
	fx := testutil.NewEntities()
	exec, mock := newMock(t)
	ctx := context.Background()

	q := New(exec, fx.Registry).
		Entity(fx.Exercise).
		Join(ast.Leaf(fx.Question)).
		WhereEquals(fx.Exercise.Field("id"), 8)

	mock.ExpectPrepare("SELECT * FROM exercises LEFT JOIN questions ON exercises.id = questions.exercises_id WHERE exercises.id = ?").
		ExpectQuery().
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "state", "id", "label", "type", "exercises_id"}).
			AddRow(int64(8), "Sums", "open", int64(10), "1+1", "text", int64(8)).
			AddRow(int64(8), "Sums", "open", int64(11), "2+2", "text", int64(8)))

	res, err := q.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, ast.StatementSelect, res.Kind)
	require.Len(t, res.Entities, 1)
	assert.Len(t, res.Entities[0].Related("questions"), 2)
	assert.Equal(t, StateExecuted, q.State())

	_, err = q.Execute(ctx)
	assert.ErrorIs(t, err, query.ErrBuilderSealed)

	built, err := q.Build()
	require.NoError(t, err)
	assert.Contains(t, built.SQL, "LEFT JOIN questions")
}

func TestExecuteAggregate(t *testing.T) {
	fx := testutil.NewEntities()
	exec, mock := newMock(t)

	mock.ExpectPrepare("SELECT authors_id, COUNT(*) AS total FROM books GROUP BY authors_id").
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"authors_id", "total"}).
			AddRow(int64(7), int64(3)).
			AddRow(int64(8), int64(1)))

	res, err := New(exec, fx.Registry).
		Entity(fx.Book).
		Columns(ast.Col("authors_id"), Count("total")).
		GroupBy("authors_id").
		Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Entities, 2)
	assert.Same(t, fx.Book, res.Entities[0].Type)
	total, ok := res.Entities[0].Get("total")
	require.True(t, ok)
	assert.Equal(t, int64(3), total)
}

func TestExecuteWrites(t *testing.T) {
	fx := testutil.NewEntities()
	ctx := context.Background()

	t.Run("insert refetches by last insert id", func(t *testing.T) {
		exec, mock := newMock(t)
		mock.ExpectPrepare("INSERT INTO `books` (`title`, `isbn`) VALUES (?,?)").
			ExpectExec().WithArgs("T", "I").WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectPrepare("SELECT * FROM `books` WHERE `id` = ?").
			ExpectQuery().WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "isbn", "authors_id"}).
				AddRow(int64(5), "T", "I", nil))

		res, err := New(exec, fx.Registry).Entity(fx.Book).Insert().Set("title", "T").Set("isbn", "I").Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, ast.StatementInsert, res.Kind)
		assert.Equal(t, int64(5), res.LastInsertID)
		require.NotNil(t, res.Entity)
		assert.Equal(t, int64(5), res.Entity.PrimaryKey())
		title, _ := res.Entity.Get("title")
		assert.Equal(t, "T", title)
	})

	t.Run("update without reported id skips refetch", func(t *testing.T) {
		exec, mock := newMock(t)
		mock.ExpectPrepare("UPDATE books SET title = ? WHERE id = ?").
			ExpectExec().WithArgs("U", 5).WillReturnResult(sqlmock.NewResult(0, 1))

		res, err := New(exec, fx.Registry).Entity(fx.Book).Update().Set("title", "U").WhereEquals("id", 5).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.RowsAffected)
		assert.Nil(t, res.Entity)
	})

	t.Run("delete reports rows affected", func(t *testing.T) {
		exec, mock := newMock(t)
		mock.ExpectPrepare("DELETE FROM books WHERE isbn LIKE ?").
			ExpectExec().WithArgs("978%").WillReturnResult(sqlmock.NewResult(0, 3))

		res, err := New(exec, nil).Table("books").Delete().WhereOp("isbn", "like", "978%").Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.RowsAffected)
	})

	t.Run("execution failure returns no result", func(t *testing.T) {
		exec, mock := newMock(t)
		driverErr := errors.New("server has gone away")
		mock.ExpectPrepare("SELECT * FROM books").ExpectQuery().WillReturnError(driverErr)

		res, err := New(exec, fx.Registry).Entity(fx.Book).Execute(ctx)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, query.ErrStatementExecutionFailed)
		assert.ErrorIs(t, err, driverErr)
	})

	t.Run("no executor", func(t *testing.T) {
		_, err := New(nil, nil).Table("books").Execute(ctx)
		assert.ErrorIs(t, err, query.ErrStatementPreparationFailed)
	})
}
