package compiler

import (
	"fmt"

	"github.com/expreql/expreql/internal/debug"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/sqlgen"
	"github.com/expreql/expreql/schema"
)

// Resolver turns a join tree into JOIN clauses using the relations declared
// in a schema registry.
type Resolver struct {
	registry *schema.Registry
}

// NewResolver creates a resolver. With a nil registry relations are read
// from the entity types directly.
func NewResolver(registry *schema.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve walks tree depth first. Nested nodes are joined on the node that
// contains them, so Exercise -> Fulfillment -> Response joins responses on
// fulfillments rather than on exercises.
func (r *Resolver) Resolve(root *schema.EntityType, tree ast.JoinTree) ([]sqlgen.Join, error) {
	if len(tree) == 0 {
		return nil, nil
	}
	if root == nil {
		return nil, fmt.Errorf("%w: joins require an entity root", query.ErrUnresolvedAssociation)
	}

	edges := tree.Edges(root)
	joins := make([]sqlgen.Join, 0, len(edges))
	for _, e := range edges {
		j, err := r.clause(e.Parent, e.Child)
		if err != nil {
			return nil, err
		}
		joins = append(joins, j)
	}
	return joins, nil
}

// Relation resolves the declared relation from parent to child.
func (r *Resolver) Relation(parent, child *schema.EntityType) (schema.Relation, error) {
	if child == nil {
		return schema.Relation{}, fmt.Errorf("%w: nil join target on %s", query.ErrUnresolvedAssociation, parent.Table())
	}
	if r.registry != nil {
		return r.registry.Relation(parent, child)
	}
	rel, ok := parent.RelationTo(child.Name())
	if !ok {
		return schema.Relation{}, &query.AssociationError{Parent: parent.Table(), Child: child.Table()}
	}
	return rel, nil
}

func (r *Resolver) clause(parent, child *schema.EntityType) (sqlgen.Join, error) {
	rel, err := r.Relation(parent, child)
	if err != nil {
		return sqlgen.Join{}, err
	}

	var j sqlgen.Join
	switch rel.Kind {
	case schema.HasMany:
		j = sqlgen.NewJoin(sqlgen.LeftJoin, parent.Table(), parent.PrimaryKey(), child.Table(), rel.ForeignKey)
	case schema.HasOne:
		key := rel.ForeignKey
		if key == "" {
			key = child.PrimaryKey()
		}
		j = sqlgen.NewJoin(sqlgen.InnerJoin, parent.Table(), parent.PrimaryKey(), child.Table(), key)
	case schema.BelongsTo:
		j = sqlgen.NewJoin(sqlgen.LeftJoin, parent.Table(), rel.ForeignKey, child.Table(), child.PrimaryKey())
	default:
		return sqlgen.Join{}, &query.AssociationError{Parent: parent.Table(), Child: child.Table()}
	}

	debug.Debug("resolved join", "parent", parent.Name(), "child", child.Name(), "kind", rel.Kind)
	return j, nil
}
