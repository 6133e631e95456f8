package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expreql/expreql/internal/testutil"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/sqlgen"
)

func TestParseWhere(t *testing.T) {
	tests := []struct {
		name  string
		input string
		sql   string
		args  []any
	}{
		{
			name:  "single comparison",
			input: "id = 3",
			sql:   "id = ?",
			args:  []any{int64(3)},
		},
		{
			name:  "bare terms keep their connectives",
			input: "state = 'open' or price <= 9.5 AND title LIKE 'Q%'",
			sql:   "state = ? OR price <= ? AND title LIKE ?",
			args:  []any{"open", 9.5, "Q%"},
		},
		{
			name:  "group becomes one segment",
			input: `(state = "open" OR state = 'draft') OR exercises.id > 10`,
			sql:   "(state = ? OR state = ?) OR exercises.id > ?",
			args:  []any{"open", "draft", int64(10)},
		},
		{
			name:  "not like",
			input: "title not like 'tmp%'",
			sql:   "title NOT LIKE ?",
			args:  []any{"tmp%"},
		},
		{
			name:  "single comparison group takes following connective",
			input: "(id <> 1) OR id != 2",
			sql:   "id <> ? OR id != ?",
			args:  []any{int64(1), int64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := ParseWhere(tt.input)
			require.NoError(t, err)
			where, err := sqlgen.NewWhereClause(tree)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, where.SQL)
			assert.Equal(t, tt.args, where.Args)
		})
	}
}

func TestParseWhereErrors(t *testing.T) {
	_, err := ParseWhere("id 3")
	assert.ErrorIs(t, err, query.ErrInvalidPredicateShape)

	_, err = ParseWhere("title NOT 'x'")
	assert.ErrorIs(t, err, query.ErrInvalidPredicateShape)

	_, err = ParseWhere("(a = 1 AND b = 2 OR c = 3)")
	assert.ErrorIs(t, err, query.ErrUnsupportedConnective)

	_, err = ParseWhere("(a = 1 AND b = 2) OR c = 3")
	assert.ErrorIs(t, err, query.ErrUnsupportedConnective)

	_, err = ParseWhere("a = 1 LIKE b = 2")
	assert.ErrorIs(t, err, query.ErrUnsupportedConnective)
}

func TestParseJoins(t *testing.T) {
	fx := testutil.NewEntities()

	tree, err := ParseJoins(fx.Registry, "Fulfillment(responses), questions")
	require.NoError(t, err)
	assert.Equal(t, ast.JoinTree{
		ast.Nested(fx.Fulfillment, ast.Leaf(fx.Response)),
		ast.Leaf(fx.Question),
	}, tree)

	tree, err = ParseJoins(fx.Registry, "  ")
	require.NoError(t, err)
	assert.Empty(t, tree)

	_, err = ParseJoins(fx.Registry, "questions(nope)")
	assert.ErrorIs(t, err, query.ErrUnknownEntity)

	_, err = ParseJoins(fx.Registry, "questions(")
	assert.Error(t, err)
}
