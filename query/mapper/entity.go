package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-viper/mapstructure/v2"

	"github.com/expreql/expreql/schema"
)

// Entity is one hydrated record: its scalar field values and the related
// collections keyed by related table name.
type Entity struct {
	Type *schema.EntityType // nil for rows of raw table queries

	fields  []string
	values  map[string]any
	tables  []string
	related map[string]*collection
}

type collection struct {
	items []*Entity
	keys  map[string]struct{}
}

// NewEntity creates an empty entity of type et.
func NewEntity(et *schema.EntityType) *Entity {
	return &Entity{
		Type:    et,
		values:  make(map[string]any),
		related: make(map[string]*collection),
	}
}

// Set assigns a field value, appending the field on first use.
func (e *Entity) Set(field string, value any) {
	if _, ok := e.values[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.values[field] = value
}

// Get returns the value of field.
func (e *Entity) Get(field string) (any, bool) {
	v, ok := e.values[field]
	return v, ok
}

// Fields returns the populated field names in first-set order.
func (e *Entity) Fields() []string { return slices.Clone(e.fields) }

// PrimaryKey returns the value of the primary key column, or nil.
func (e *Entity) PrimaryKey() any {
	if e.Type == nil {
		return e.values["id"]
	}
	return e.values[e.Type.PrimaryKey()]
}

// Table returns the table the entity was read from, or "" for raw rows.
func (e *Entity) Table() string {
	if e.Type == nil {
		return ""
	}
	return e.Type.Table()
}

// Related returns the collection for table. The result is nil only when no
// join produced that relation.
func (e *Entity) Related(table string) []*Entity {
	c, ok := e.related[table]
	if !ok {
		return nil
	}
	return slices.Clone(c.items)
}

// One returns the first related entity for table, for has_one and
// belongs_to relations.
func (e *Entity) One(table string) *Entity {
	c, ok := e.related[table]
	if !ok || len(c.items) == 0 {
		return nil
	}
	return c.items[0]
}

// HasRelation reports whether a collection exists for table, even empty.
func (e *Entity) HasRelation(table string) bool {
	_, ok := e.related[table]
	return ok
}

// RelatedTables returns the related table names in the order their
// collections were created.
func (e *Entity) RelatedTables() []string { return slices.Clone(e.tables) }

func (e *Entity) ensureRelation(table string) *collection {
	c, ok := e.related[table]
	if !ok {
		c = &collection{items: []*Entity{}, keys: make(map[string]struct{})}
		e.related[table] = c
		e.tables = append(e.tables, table)
	}
	return c
}

// attach appends child to the collection for table unless an entity with
// the same primary key is already there. It reports whether child was added.
func (e *Entity) attach(table string, child *Entity) bool {
	c := e.ensureRelation(table)
	key := keyOf(child.PrimaryKey())
	if _, dup := c.keys[key]; dup {
		return false
	}
	c.keys[key] = struct{}{}
	c.items = append(c.items, child)
	return true
}

// Map returns the fields and related collections as nested maps.
func (e *Entity) Map() map[string]any {
	out := make(map[string]any, len(e.fields)+len(e.tables))
	for _, f := range e.fields {
		out[f] = e.values[f]
	}
	for _, t := range e.tables {
		items := e.related[t].items
		list := make([]map[string]any, len(items))
		for i, child := range items {
			list[i] = child.Map()
		}
		out[t] = list
	}
	return out
}

// Decode copies the fields into dest, a pointer to a struct or map. Struct
// fields are matched through `db` tags, then by case-insensitive name.
func (e *Entity) Decode(dest any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           dest,
	})
	if err != nil {
		return fmt.Errorf("decode %s: %w", e.Table(), err)
	}
	if err := dec.Decode(e.Map()); err != nil {
		return fmt.Errorf("decode %s: %w", e.Table(), err)
	}
	return nil
}

// MarshalJSON encodes the entity as an object whose keys keep field order
// followed by related tables.
func (e *Entity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(i int, key string, v any) error {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	i := 0
	for _, f := range e.fields {
		if err := write(i, f, e.values[f]); err != nil {
			return nil, err
		}
		i++
	}
	for _, t := range e.tables {
		if err := write(i, t, e.related[t].items); err != nil {
			return nil, err
		}
		i++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// keyOf normalizes a key value so that a driver's []byte, string and integer
// renderings of the same key compare equal.
func keyOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
