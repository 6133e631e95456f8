package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expreql/expreql/internal/testutil"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/mapper"
)

func newClient(t *testing.T) (*Client, sqlmock.Sqlmock, *testutil.Entities) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	fx := testutil.NewEntities()
	c := NewFromDB(db, fx.Registry)
	t.Cleanup(func() {
		mock.ExpectClose()
		require.NoError(t, c.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})
	return c, mock, fx
}

func bookRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "isbn", "authors_id"})
}

func TestFindByPK(t *testing.T) {
	c, mock, fx := newClient(t)
	ctx := context.Background()

	const sql = "SELECT id, title, isbn, authors_id FROM books WHERE books.id = ?"
	mock.ExpectPrepare(sql).ExpectQuery().WithArgs(3).
		WillReturnRows(bookRows().AddRow(int64(3), "Dune", "978-0", int64(7)))
	mock.ExpectPrepare(sql).ExpectQuery().WithArgs(4).
		WillReturnRows(bookRows())

	book, err := c.FindByPK(ctx, fx.Book, 3)
	require.NoError(t, err)
	title, _ := book.Get("title")
	assert.Equal(t, "Dune", title)

	_, err = c.FindByPK(ctx, fx.Book, 4)
	assert.ErrorIs(t, err, query.ErrNotFound)
}

func TestInsertAndSave(t *testing.T) {
	c, mock, fx := newClient(t)
	ctx := context.Background()

	mock.ExpectPrepare("INSERT INTO `books` (`title`, `isbn`) VALUES (?,?)").
		ExpectExec().WithArgs("Dune", "978-0").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectPrepare("SELECT * FROM `books` WHERE `id` = ?").
		ExpectQuery().WithArgs(int64(3)).
		WillReturnRows(bookRows().AddRow(int64(3), "Dune", "978-0", nil))

	book, err := c.Insert(ctx, fx.Book,
		ast.Assignment{Column: "title", Value: "Dune"},
		ast.Assignment{Column: "isbn", Value: "978-0"},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(3), book.PrimaryKey())

	mock.ExpectPrepare("INSERT INTO `books` (`title`, `authors_id`) VALUES (?,?)").
		ExpectExec().WithArgs("Messiah", 7).WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectPrepare("SELECT * FROM `books` WHERE `id` = ?").
		ExpectQuery().WithArgs(int64(4)).
		WillReturnRows(bookRows().AddRow(int64(4), "Messiah", "", int64(7)))

	ent := mapper.NewEntity(fx.Book)
	ent.Set("authors_id", 7)
	ent.Set("title", "Messiah")
	ent.Set("rating", 5) // not a declared field
	require.NoError(t, c.Save(ctx, ent))
	assert.Equal(t, int64(4), ent.PrimaryKey())
	isbn, ok := ent.Get("isbn")
	assert.True(t, ok)
	assert.Equal(t, "", isbn)

	assert.ErrorIs(t, c.Save(ctx, mapper.NewEntity(nil)), query.ErrUnknownEntity)
}

func TestUpdateAndDelete(t *testing.T) {
	c, mock, fx := newClient(t)
	ctx := context.Background()

	mock.ExpectPrepare("UPDATE books SET title = ? WHERE books.id = ?").
		ExpectExec().WithArgs("Dune II", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("DELETE FROM books WHERE authors_id = ?").
		ExpectExec().WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))

	res, err := c.Update(fx.Book, ast.Assignment{Column: "title", Value: "Dune II"}).
		WhereEquals(fx.Book.Field("id"), 3).
		Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)

	res, err = c.Delete(fx.Book).Where("authors_id", 7).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestMiddleware(t *testing.T) {
	c, mock, fx := newClient(t)
	ctx := context.Background()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var timed []string
	var failed []error
	c.Use(
		LoggingMiddleware(logger),
		TimingMiddleware(func(q string, d time.Duration) { timed = append(timed, q) }),
		ErrorMiddleware(func(q string, err error) { failed = append(failed, err) }),
	)

	mock.ExpectPrepare("SELECT * FROM authors").ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Frank"))
	mock.ExpectPrepare("SELECT * FROM books").ExpectQuery().
		WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table 'shop.books' doesn't exist"})

	res, err := c.Select(fx.Author).Execute(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Entities, 1)

	_, err = c.Select(fx.Book).Execute(ctx)
	require.Error(t, err)
	var myErr *mysql.MySQLError
	assert.True(t, errors.As(err, &myErr))

	assert.Equal(t, []string{"SELECT * FROM authors", "SELECT * FROM books"}, timed)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0], query.ErrStatementExecutionFailed)

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"statement completed"`)
	assert.Contains(t, logs, `"msg":"statement failed"`)
	assert.Contains(t, logs, "table does not exist")
}

func TestOpenDSN(t *testing.T) {
	fx := testutil.NewEntities()
	c, err := OpenDSN("app:secret@tcp(127.0.0.1:3306)/shop?charset=utf8mb4", fx.Registry)
	require.NoError(t, err)
	assert.NotNil(t, c.DB())
	assert.Same(t, fx.Registry, c.Registry())
	require.NoError(t, c.Close())

	_, err = OpenDSN("not a dsn", nil)
	assert.Error(t, err)
}
