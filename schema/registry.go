package schema

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/expreql/expreql/query"
)

// Registry maps stable type identifiers to entity descriptors. Types are
// registered once at startup and never mutated afterwards.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*EntityType
	byTable map[string]*EntityType
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*EntityType),
		byTable: make(map[string]*EntityType),
	}
}

// Register validates def and adds the resulting entity type.
func (r *Registry) Register(def Definition) (*EntityType, error) {
	et, err := NewEntityType(def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[et.name]; exists {
		return nil, fmt.Errorf("%w: entity %q registered twice", query.ErrInvalidEntity, et.name)
	}
	if other, exists := r.byTable[et.table]; exists {
		return nil, fmt.Errorf("%w: table %q already registered by %q", query.ErrInvalidEntity, et.table, other.name)
	}

	r.byName[et.name] = et
	r.byTable[et.table] = et
	r.order = append(r.order, et.name)
	return et, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(def Definition) *EntityType {
	et, err := r.Register(def)
	if err != nil {
		panic(err)
	}
	return et
}

// Lookup returns the entity type registered under name. A table name is
// accepted as well.
func (r *Registry) Lookup(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if et, ok := r.byName[name]; ok {
		return et, nil
	}
	if et, ok := r.byTable[name]; ok {
		return et, nil
	}
	return nil, fmt.Errorf("%w: %s", query.ErrUnknownEntity, name)
}

// Entities returns all entity types in registration order.
func (r *Registry) Entities() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*EntityType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Relation resolves the relation from parent to child. Both types must be
// registered; a missing relation is an *query.AssociationError.
func (r *Registry) Relation(parent, child *EntityType) (Relation, error) {
	for _, et := range []*EntityType{parent, child} {
		if _, err := r.Lookup(et.Name()); err != nil {
			return Relation{}, err
		}
	}

	rel, ok := parent.RelationTo(child.Name())
	if !ok {
		return Relation{}, &query.AssociationError{Parent: parent.Table(), Child: child.Table()}
	}
	return rel, nil
}

// Validate checks that every relation target is registered and that each
// foreign key names a declared column on the side that carries it.
func (r *Registry) Validate() error {
	var errs []error
	for _, et := range r.Entities() {
		for _, rel := range et.Relations() {
			target, err := r.Lookup(rel.Target)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", et.Name(), rel.Kind, err))
				continue
			}
			if rel.ForeignKey == "" {
				if rel.Kind != HasOne {
					errs = append(errs, fmt.Errorf("%w: %s %s %s has no foreign key",
						query.ErrInvalidEntity, et.Name(), rel.Kind, target.Name()))
				}
				continue
			}
			owner := target
			if rel.Kind == BelongsTo {
				owner = et
			}
			if !owner.HasField(rel.ForeignKey) {
				errs = append(errs, fmt.Errorf("%w: foreign key %q of %s %s %s is not a field of %s",
					query.ErrInvalidEntity, rel.ForeignKey, et.Name(), rel.Kind, target.Name(), owner.Name()))
			}
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered type names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := slices.Clone(r.order)
	slices.Sort(names)
	return names
}
