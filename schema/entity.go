// Package schema provides the entity type registry used to compile joins and
// hydrate joined rows.
package schema

import (
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"

	"github.com/expreql/expreql/query"
)

// RelationKind represents the kind of a declared relation.
type RelationKind string

const (
	// HasOne means the parent row owns exactly one child row.
	HasOne RelationKind = "has_one"
	// HasMany means the child table carries a foreign key to the parent.
	HasMany RelationKind = "has_many"
	// BelongsTo means the parent table carries a foreign key to the child.
	BelongsTo RelationKind = "belongs_to"
)

// Relation describes an edge from one entity type to another.
type Relation struct {
	Kind       RelationKind
	Target     string // Name of the related entity type
	ForeignKey string
}

// Definition is the registration contract an entity must supply before it can
// be queried.
type Definition struct {
	Name       string            `yaml:"name"`
	Table      string            `yaml:"table"`
	PrimaryKey string            `yaml:"primary_key"`
	Fields     []string          `yaml:"fields"`
	HasOne     map[string]string `yaml:"has_one,omitempty"`
	HasMany    map[string]string `yaml:"has_many,omitempty"`
	BelongsTo  map[string]string `yaml:"belongs_to,omitempty"`
}

// EntityType is the immutable descriptor of a queryable table.
type EntityType struct {
	name       string
	table      string
	primaryKey string
	fields     []string
	fieldSet   map[string]struct{}
	hasOne     map[string]string
	hasMany    map[string]string
	belongsTo  map[string]string
}

// NewEntityType validates def and builds an EntityType from it.
func NewEntityType(def Definition) (*EntityType, error) {
	if def.Table == "" && def.Name == "" {
		return nil, fmt.Errorf("%w: entity needs a name or a table", query.ErrInvalidEntity)
	}
	name, table := def.Name, def.Table
	if name == "" {
		name = table
	}
	if table == "" {
		table = TableName(name)
	}

	et := &EntityType{
		name:       name,
		table:      table,
		primaryKey: def.PrimaryKey,
		fields:     make([]string, 0, len(def.Fields)),
		fieldSet:   make(map[string]struct{}, len(def.Fields)),
		hasOne:     copyRelations(def.HasOne),
		hasMany:    copyRelations(def.HasMany),
		belongsTo:  copyRelations(def.BelongsTo),
	}
	for _, f := range def.Fields {
		if _, dup := et.fieldSet[f]; dup {
			continue
		}
		et.fields = append(et.fields, f)
		et.fieldSet[f] = struct{}{}
	}

	if et.primaryKey == "" {
		return nil, fmt.Errorf("%w: entity %q has no primary key", query.ErrInvalidEntity, name)
	}
	if !et.HasField(et.primaryKey) {
		return nil, fmt.Errorf("%w: primary key %q of entity %q is not a declared field",
			query.ErrInvalidEntity, et.primaryKey, name)
	}

	return et, nil
}

// TableName derives the default table of an entity name: Biography becomes
// biographies.
func TableName(name string) string {
	return inflect.Pluralize(inflect.Underscore(name))
}

// MustEntityType is like NewEntityType but panics on error.
func MustEntityType(def Definition) *EntityType {
	et, err := NewEntityType(def)
	if err != nil {
		panic(err)
	}
	return et
}

func copyRelations(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Name returns the stable type identifier.
func (e *EntityType) Name() string { return e.name }

// Table returns the database table name.
func (e *EntityType) Table() string { return e.table }

// PrimaryKey returns the primary key column.
func (e *EntityType) PrimaryKey() string { return e.primaryKey }

// Fields returns the declared columns in declaration order.
func (e *EntityType) Fields() []string { return slices.Clone(e.fields) }

// HasField reports whether column is declared on the entity.
func (e *EntityType) HasField(column string) bool {
	_, ok := e.fieldSet[column]
	return ok
}

// Field returns the column qualified with the table name, for use in where
// clauses where joined tables share column names.
func (e *EntityType) Field(column string) string {
	return e.table + "." + column
}

// RelationTo returns the relation declared from e to the entity named target.
// has_one is checked first, then has_many, then belongs_to.
func (e *EntityType) RelationTo(target string) (Relation, bool) {
	if fk, ok := e.hasOne[target]; ok {
		return Relation{Kind: HasOne, Target: target, ForeignKey: fk}, true
	}
	if fk, ok := e.hasMany[target]; ok {
		return Relation{Kind: HasMany, Target: target, ForeignKey: fk}, true
	}
	if fk, ok := e.belongsTo[target]; ok {
		return Relation{Kind: BelongsTo, Target: target, ForeignKey: fk}, true
	}
	return Relation{}, false
}

// Relations returns every declared relation sorted by kind then target.
func (e *EntityType) Relations() []Relation {
	var out []Relation
	add := func(kind RelationKind, m map[string]string) {
		targets := make([]string, 0, len(m))
		for t := range m {
			targets = append(targets, t)
		}
		slices.Sort(targets)
		for _, t := range targets {
			out = append(out, Relation{Kind: kind, Target: t, ForeignKey: m[t]})
		}
	}
	add(HasOne, e.hasOne)
	add(HasMany, e.hasMany)
	add(BelongsTo, e.belongsTo)
	return out
}

// String returns the type name.
func (e *EntityType) String() string { return e.name }
