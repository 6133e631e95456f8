// Package sqlgen generates MySQL statements from query specs.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
)

// Query represents a SQL query with arguments
type Query struct {
	SQL  string
	Args []any
}

// MySQLGenerator generates MySQL SQL
type MySQLGenerator struct{}

// NewMySQLGenerator creates a MySQL generator
func NewMySQLGenerator() *MySQLGenerator {
	return &MySQLGenerator{}
}

// GenerateSelect renders SELECT fields FROM table, the joins, then WHERE,
// ORDER BY, GROUP BY, LIMIT and OFFSET in that order.
func (g *MySQLGenerator) GenerateSelect(spec *ast.QuerySpec, joins []Join) (*Query, error) {
	table := spec.TableName()
	if table == "" {
		return nil, query.ErrMissingTable
	}

	var parts []string

	// SELECT columns
	if len(spec.Fields) == 0 {
		parts = append(parts, "SELECT *")
	} else {
		cols := make([]string, len(spec.Fields))
		for i, f := range spec.Fields {
			cols[i] = renderField(f)
		}
		parts = append(parts, "SELECT "+strings.Join(cols, ", "))
	}

	// FROM table
	parts = append(parts, "FROM "+table)

	// JOIN clauses
	for _, join := range joins {
		parts = append(parts, join.String())
	}

	// WHERE clause
	where, err := NewWhereClause(spec.Predicate)
	if err != nil {
		return nil, err
	}
	if !where.IsEmpty() {
		parts = append(parts, where.String())
	}

	if spec.OrderBy != nil {
		dir := spec.OrderBy.Direction
		if dir == "" {
			dir = ast.Asc
		}
		parts = append(parts, fmt.Sprintf("ORDER BY %s %s", spec.OrderBy.Column, dir))
	}

	if spec.GroupBy != "" {
		parts = append(parts, "GROUP BY "+spec.GroupBy)
	}

	if spec.Limit != nil {
		parts = append(parts, "LIMIT "+strconv.Itoa(*spec.Limit))
	}

	if spec.Offset != nil {
		parts = append(parts, "OFFSET "+strconv.Itoa(*spec.Offset))
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: where.Args,
	}, nil
}

// GenerateInsert renders INSERT INTO `table` (`k1`, `k2`) VALUES (?,?) with
// parameters in assignment order.
func (g *MySQLGenerator) GenerateInsert(table string, values ast.Assignments) (*Query, error) {
	if table == "" {
		return nil, query.ErrMissingTable
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: insert into %s", query.ErrEmptyFields, table)
	}

	quotedCols := make([]string, len(values))
	placeholders := make([]string, len(values))
	for i, as := range values {
		quotedCols[i] = quoteIdentifierMySQL(as.Column)
		placeholders[i] = "?"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifierMySQL(table),
		strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ","),
	)

	return &Query{
		SQL:  sql,
		Args: values.Args(),
	}, nil
}

// GenerateUpdate renders UPDATE table SET k1 = ?, k2 = ? and the optional
// WHERE clause. SET values precede WHERE values.
func (g *MySQLGenerator) GenerateUpdate(table string, set ast.Assignments, where ast.PredicateTree) (*Query, error) {
	if table == "" {
		return nil, query.ErrMissingTable
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: update %s", query.ErrEmptyFields, table)
	}

	setClauses := make([]string, len(set))
	for i, as := range set {
		setClauses[i] = as.Column + " = ?"
	}
	parts := []string{fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(setClauses, ", "))}
	args := set.Args()

	w, err := NewWhereClause(where)
	if err != nil {
		return nil, err
	}
	if !w.IsEmpty() {
		parts = append(parts, w.String())
		args = append(args, w.Args...)
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}, nil
}

// GenerateDelete renders DELETE FROM table and the optional WHERE clause.
func (g *MySQLGenerator) GenerateDelete(table string, where ast.PredicateTree) (*Query, error) {
	if table == "" {
		return nil, query.ErrMissingTable
	}

	parts := []string{"DELETE FROM " + table}
	w, err := NewWhereClause(where)
	if err != nil {
		return nil, err
	}
	var args []any
	if !w.IsEmpty() {
		parts = append(parts, w.String())
		args = w.Args
	}

	return &Query{
		SQL:  strings.Join(parts, " "),
		Args: args,
	}, nil
}

// GenerateRefetch renders the lookup issued after INSERT and UPDATE to
// return the written row.
func (g *MySQLGenerator) GenerateRefetch(table, primaryKey string, id any) *Query {
	return &Query{
		SQL:  fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", quoteIdentifierMySQL(table), quoteIdentifierMySQL(primaryKey)),
		Args: []any{id},
	}
}

func renderField(f ast.Field) string {
	if !f.IsAggregate() {
		return f.Column
	}
	s := fmt.Sprintf("%s(%s)", f.Func, f.Arg)
	if f.Alias != "" {
		s += " AS " + f.Alias
	}
	return s
}

// quoteIdentifierMySQL quotes an identifier for MySQL
func quoteIdentifierMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
