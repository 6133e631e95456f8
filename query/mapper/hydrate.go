package mapper

import (
	"fmt"

	"github.com/expreql/expreql/internal/debug"
	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/schema"
)

// ResultGraph is the deduplicated list of root entities in first-seen order.
type ResultGraph []*Entity

// SkippedRow records an attachment the hydrator dropped.
type SkippedRow struct {
	Row        int // index of the row in the result set
	Parent     string
	Child      string
	ForeignKey any
	Err        error
}

// Result is the outcome of hydrating a result set.
type Result struct {
	Entities ResultGraph
	Skipped  []SkippedRow
}

// Hydrator rebuilds entity graphs from the rows of a joined SELECT.
type Hydrator struct {
	root  *schema.EntityType
	joins ast.JoinTree
}

// NewHydrator creates a hydrator for rows produced by joining tree onto root.
func NewHydrator(root *schema.EntityType, tree ast.JoinTree) *Hydrator {
	return &Hydrator{root: root, joins: tree}
}

// node is one position of the flattened join order.
type node struct {
	et    *schema.EntityType
	slots map[string]int

	byKey map[string]*Entity
	order []*Entity
}

// slot returns the position of column's value for this node when several
// joined tables expose the column.
func (n *node) slot(column string) int {
	return n.slots[column]
}

// read returns the value this node contributes to column in row.
func (n *node) read(row Row, column string) (any, bool) {
	v, ok := row.Get(column)
	if !ok {
		return nil, false
	}
	return v.Slot(n.slot(column))
}

// edge links two flattened positions with the relation between them.
type edge struct {
	parent, child int
	rel           schema.Relation
}

// Hydrate materializes rows. Each entity type is built in one pass over the
// rows, then a further pass per relation wires children to parents. Rows
// whose foreign key matches no known entity are skipped and reported in
// Result.Skipped.
func (h *Hydrator) Hydrate(rows []Row) (*Result, error) {
	if h.root == nil {
		return &Result{Entities: Flatten(rows)}, nil
	}
	// aggregate and grouped projections carry no key to deduplicate on
	if len(h.joins) == 0 && !hasColumn(rows, h.root.PrimaryKey()) {
		return &Result{Entities: flatten(h.root, rows)}, nil
	}

	nodes, edges, err := h.plan()
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		if err := n.collect(rows); err != nil {
			return nil, err
		}
	}

	res := &Result{Entities: ResultGraph(nodes[0].order)}
	if res.Entities == nil {
		res.Entities = ResultGraph{}
	}

	for _, e := range edges {
		parent, child := nodes[e.parent], nodes[e.child]
		for _, p := range parent.order {
			p.ensureRelation(child.et.Table())
		}
		for i, row := range rows {
			if skip, ok := wire(parent, child, e.rel, row); !ok {
				skip.Row = i
				res.Skipped = append(res.Skipped, skip)
				debug.Warn("skipping dangling join row",
					"row", i,
					"parent", skip.Parent,
					"child", skip.Child,
					"foreign_key", skip.ForeignKey,
				)
			}
		}
	}

	return res, nil
}

// plan flattens the join tree and computes the collision slots of every
// position: the slot of a column is the number of earlier positions that
// declare it.
func (h *Hydrator) plan() ([]*node, []edge, error) {
	var nodes []*node
	var edges []edge

	add := func(et *schema.EntityType) int {
		n := &node{
			et:    et,
			slots: make(map[string]int),
			byKey: make(map[string]*Entity),
		}
		for _, col := range et.Fields() {
			for _, prev := range nodes {
				if prev.et.HasField(col) {
					n.slots[col]++
				}
			}
		}
		nodes = append(nodes, n)
		return len(nodes) - 1
	}

	var walk func(parent int, tree ast.JoinTree) error
	walk = func(parent int, tree ast.JoinTree) error {
		for _, jn := range tree {
			if jn.Entity == nil {
				return fmt.Errorf("%w: nil join target on %s", query.ErrUnresolvedAssociation, nodes[parent].et.Table())
			}
			pt := nodes[parent].et
			rel, ok := pt.RelationTo(jn.Entity.Name())
			if !ok {
				return &query.AssociationError{Parent: pt.Table(), Child: jn.Entity.Table()}
			}
			child := add(jn.Entity)
			edges = append(edges, edge{parent: parent, child: child, rel: rel})
			if err := walk(child, jn.Children); err != nil {
				return err
			}
		}
		return nil
	}

	root := add(h.root)
	if err := walk(root, h.joins); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

// Position describes one entry of the flattened join order.
type Position struct {
	Entity   *schema.EntityType
	Parent   int // -1 for the root
	Relation schema.Relation
	Slots    map[string]int // collision slot of every declared column
}

// Plan returns the flattened join order the hydrator reads rows with.
func (h *Hydrator) Plan() ([]Position, error) {
	if h.root == nil {
		return nil, nil
	}
	nodes, edges, err := h.plan()
	if err != nil {
		return nil, err
	}

	out := make([]Position, len(nodes))
	for i, n := range nodes {
		slots := make(map[string]int)
		for _, col := range n.et.Fields() {
			slots[col] = n.slot(col)
		}
		out[i] = Position{Entity: n.et, Parent: -1, Slots: slots}
	}
	for _, e := range edges {
		out[e.child].Parent = e.parent
		out[e.child].Relation = e.rel
	}
	return out, nil
}

// collect creates one entity per distinct primary key, in first-seen order.
// Rows where the key is null belong to an unmatched LEFT JOIN and are
// ignored.
func (n *node) collect(rows []Row) error {
	pk := n.et.PrimaryKey()
	fields := n.et.Fields()

	for _, row := range rows {
		if _, ok := row.Get(pk); !ok {
			return fmt.Errorf("%w: %s.%s", query.ErrMissingPrimaryKey, n.et.Table(), pk)
		}
		id, ok := n.read(row, pk)
		if !ok || id == nil {
			continue
		}
		key := keyOf(id)
		if _, seen := n.byKey[key]; seen {
			continue
		}

		ent := NewEntity(n.et)
		for _, f := range fields {
			if v, ok := n.read(row, f); ok {
				ent.Set(f, v)
			}
		}
		n.byKey[key] = ent
		n.order = append(n.order, ent)
	}
	return nil
}

// wire attaches the child of row to its parent. It returns false with a
// SkippedRow when the foreign key points at no known entity.
func wire(parent, child *node, rel schema.Relation, row Row) (SkippedRow, bool) {
	parentID, ok := parent.read(row, parent.et.PrimaryKey())
	if !ok || parentID == nil {
		return SkippedRow{}, true
	}
	childID, ok := child.read(row, child.et.PrimaryKey())
	if !ok || childID == nil {
		return SkippedRow{}, true
	}

	table := child.et.Table()
	childEnt := child.byKey[keyOf(childID)]

	var (
		owner *Entity
		fk    any
	)
	switch rel.Kind {
	case schema.BelongsTo:
		fk, ok = parent.read(row, rel.ForeignKey)
		if !ok || fk == nil {
			return SkippedRow{}, true
		}
		target, found := child.byKey[keyOf(fk)]
		if !found {
			return dangling(parent, child, parent.et, child.et, fk), false
		}
		childEnt = target
		owner = parent.byKey[keyOf(parentID)]
	default:
		column := rel.ForeignKey
		if column == "" {
			column = child.et.PrimaryKey()
		}
		fk, ok = child.read(row, column)
		if !ok || fk == nil {
			return SkippedRow{}, true
		}
		target, found := parent.byKey[keyOf(fk)]
		if !found {
			return dangling(parent, child, child.et, parent.et, fk), false
		}
		owner = target
	}

	if owner == nil || childEnt == nil {
		return SkippedRow{}, true
	}
	owner.attach(table, childEnt)
	return SkippedRow{}, true
}

// dangling reports a foreign key carried by holder that matches no row of
// target.
func dangling(parent, child *node, holder, target *schema.EntityType, fk any) SkippedRow {
	return SkippedRow{
		Parent:     parent.et.Table(),
		Child:      child.et.Table(),
		ForeignKey: fk,
		Err: fmt.Errorf("%w: %s foreign key %v matches no %s row",
			query.ErrDanglingJoinRow, holder.Table(), fk, target.Table()),
	}
}

// Flatten turns rows of a raw table query into one entity each. Collided
// columns keep slot 0.
func Flatten(rows []Row) ResultGraph {
	return flatten(nil, rows)
}

func flatten(et *schema.EntityType, rows []Row) ResultGraph {
	out := make(ResultGraph, 0, len(rows))
	for _, row := range rows {
		ent := NewEntity(et)
		for _, col := range row.columns {
			ent.Set(col, row.values[col].First())
		}
		out = append(out, ent)
	}
	return out
}

func hasColumn(rows []Row, column string) bool {
	for _, row := range rows {
		if _, ok := row.Get(column); !ok {
			return false
		}
	}
	return true
}
