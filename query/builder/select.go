package builder

import (
	"github.com/expreql/expreql/query/ast"
)

// Count projects COUNT(*) under alias
func Count(alias string) ast.Field {
	return ast.Aggregate("COUNT", "*", alias)
}

// Sum projects SUM(field)
func Sum(field, alias string) ast.Field {
	return ast.Aggregate("SUM", field, alias)
}

// Avg projects AVG(field)
func Avg(field, alias string) ast.Field {
	return ast.Aggregate("AVG", field, alias)
}

// Min projects MIN(field)
func Min(field, alias string) ast.Field {
	return ast.Aggregate("MIN", field, alias)
}

// Max projects MAX(field)
func Max(field, alias string) ast.Field {
	return ast.Aggregate("MAX", field, alias)
}
