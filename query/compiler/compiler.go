// Package compiler compiles query specs into SQL.
package compiler

import (
	"errors"
	"fmt"

	"github.com/expreql/expreql/internal/debug"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/sqlgen"
	"github.com/expreql/expreql/schema"
)

// ErrUnsupportedStatement is returned for a statement kind the compiler does
// not know.
var ErrUnsupportedStatement = errors.New("unsupported statement kind")

// Compiler compiles query specs into SQL
type Compiler struct {
	resolver  *Resolver
	generator *sqlgen.MySQLGenerator
}

// NewCompiler creates a new query compiler
func NewCompiler(registry *schema.Registry) *Compiler {
	return &Compiler{
		resolver:  NewResolver(registry),
		generator: sqlgen.NewMySQLGenerator(),
	}
}

// Resolver returns the join resolver used by the compiler.
func (c *Compiler) Resolver() *Resolver { return c.resolver }

// Compile compiles a query spec into SQL and its ordered parameters
func (c *Compiler) Compile(spec *ast.QuerySpec) (*sqlgen.Query, error) {
	var (
		q   *sqlgen.Query
		err error
	)

	switch spec.Kind {
	case ast.StatementSelect, "":
		q, err = c.compileSelect(spec)
	case ast.StatementInsert:
		q, err = c.generator.GenerateInsert(spec.TableName(), spec.Values)
	case ast.StatementUpdate:
		q, err = c.generator.GenerateUpdate(spec.TableName(), spec.Values, spec.Predicate)
	case ast.StatementDelete:
		q, err = c.generator.GenerateDelete(spec.TableName(), spec.Predicate)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedStatement, spec.Kind)
	}
	if err != nil {
		return nil, err
	}

	debug.Debug("compiled statement", "kind", spec.Kind, "sql", q.SQL, "args", q.Args)
	return q, nil
}

func (c *Compiler) compileSelect(spec *ast.QuerySpec) (*sqlgen.Query, error) {
	if len(spec.Joins) > 0 && spec.Root == nil {
		return nil, fmt.Errorf("%w: joins on raw table %q", query.ErrUnresolvedAssociation, spec.Table)
	}
	joins, err := c.resolver.Resolve(spec.Root, spec.Joins)
	if err != nil {
		return nil, err
	}
	return c.generator.GenerateSelect(spec, joins)
}

// Refetch compiles the lookup of the row written by an INSERT or UPDATE
// spec, keyed on id.
func (c *Compiler) Refetch(spec *ast.QuerySpec, id any) *sqlgen.Query {
	return c.generator.GenerateRefetch(spec.TableName(), spec.PrimaryKey(), id)
}
