// Package dsl parses the filter and join expressions accepted on the command
// line, such as
//
//	--where "(state = 'open' OR state = 'draft') AND title LIKE 'Q%'"
//	--join  "fulfillments(responses),questions"
package dsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/schema"
)

// Lexer tokenizes both grammars.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|LIKE)\b`},
	{Name: "Operator", Pattern: `<=|>=|<>|!=|=|<|>`},
	{Name: "String", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Where is the parse tree of a filter expression.
type Where struct {
	Pos   lexer.Position
	First *Term   `@@`
	Rest  []*Next `@@*`
}

// Next is a connective followed by a term.
type Next struct {
	Connective string `@Keyword`
	Term       *Term  `@@`
}

// Term is a parenthesized group or a single comparison.
type Term struct {
	Group *Group      `  "(" @@ ")"`
	Cmp   *Comparison `| @@`
}

// Group is a parenthesized run of comparisons.
type Group struct {
	First *Comparison    `@@`
	Rest  []*GroupedNext `@@*`
}

// GroupedNext is a connective followed by a comparison inside a group.
type GroupedNext struct {
	Connective string      `@Keyword`
	Cmp        *Comparison `@@`
}

// Comparison is `column operator value`.
type Comparison struct {
	Pos      lexer.Position
	Column   string  `@Ident`
	Not      bool    `( @"NOT"?`
	Like     bool    `  @"LIKE"`
	Operator string  `| @Operator )`
	Value    Literal `@@`
}

// Literal is a quoted string or a number.
type Literal struct {
	String *string `  @String`
	Number *string `| @Number`
}

// Joins is the parse tree of a join list.
type Joins struct {
	Nodes []*JoinNode `@@ ( "," @@ )*`
}

// JoinNode names an entity, optionally followed by its nested joins.
type JoinNode struct {
	Pos      lexer.Position
	Name     string      `@Ident`
	Children []*JoinNode `( "(" @@ ( "," @@ )* ")" )?`
}

var (
	whereParser = participle.MustBuild[Where](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.CaseInsensitive("Keyword"),
	)
	joinParser = participle.MustBuild[Joins](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
	)
)

// ParseWhere converts a filter expression into a predicate tree.
//
// Comparisons outside parentheses each become their own segment joined by the
// connective that follows them. A parenthesized group becomes one segment, so
// its inner connective must match the one joining it to the next term.
func ParseWhere(input string) (ast.PredicateTree, error) {
	raw, err := whereParser.ParseString("where", input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", query.ErrInvalidPredicateShape, err)
	}

	terms := []*Term{raw.First}
	var conns []string
	for _, n := range raw.Rest {
		conns = append(conns, n.Connective)
		terms = append(terms, n.Term)
	}

	var tree ast.PredicateTree
	for i, term := range terms {
		var after ast.Connective = ast.And
		if i < len(conns) {
			if after, err = connective(conns[i]); err != nil {
				return nil, err
			}
		}

		if term.Cmp != nil {
			cond, err := term.Cmp.condition()
			if err != nil {
				return nil, err
			}
			if err := tree.Add(after, cond); err != nil {
				return nil, err
			}
			continue
		}

		inner, conds, err := term.Group.conditions()
		if err != nil {
			return nil, err
		}
		if len(conds) > 1 && i < len(conns) && inner != after {
			return nil, fmt.Errorf("%w: group joined by %s must be followed by %s, got %s",
				query.ErrUnsupportedConnective, inner, inner, after)
		}
		if len(conds) == 1 {
			inner = after
		}
		if err := tree.Add(inner, conds...); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func (g *Group) conditions() (ast.Connective, []ast.Condition, error) {
	first, err := g.First.condition()
	if err != nil {
		return "", nil, err
	}
	conds := []ast.Condition{first}
	conn := ast.And
	for i, n := range g.Rest {
		c, err := connective(n.Connective)
		if err != nil {
			return "", nil, err
		}
		if i > 0 && c != conn {
			return "", nil, fmt.Errorf("%w: mixed AND/OR inside one group",
				query.ErrUnsupportedConnective)
		}
		conn = c
		cond, err := n.Cmp.condition()
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
	}
	return conn, conds, nil
}

func (c *Comparison) condition() (ast.Condition, error) {
	op := c.Operator
	switch {
	case c.Like && c.Not:
		op = "NOT LIKE"
	case c.Like:
		op = "LIKE"
	case c.Not:
		return ast.Condition{}, fmt.Errorf("%w: NOT without LIKE at %s",
			query.ErrInvalidPredicateShape, c.Pos)
	}
	return ast.Op(c.Column, op, c.Value.value())
}

func (l Literal) value() any {
	if l.String != nil {
		return *l.String
	}
	if l.Number == nil {
		return nil
	}
	if i, err := strconv.ParseInt(*l.Number, 10, 64); err == nil {
		return i
	}
	f, _ := strconv.ParseFloat(*l.Number, 64)
	return f
}

func connective(kw string) (ast.Connective, error) {
	return ast.ParseConnective(strings.ToUpper(kw))
}

// ParseJoins converts a join list into a join tree. Names are entity names or
// table names known to reg.
func ParseJoins(reg *schema.Registry, input string) (ast.JoinTree, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	raw, err := joinParser.ParseString("join", input)
	if err != nil {
		return nil, fmt.Errorf("parse join list: %w", err)
	}
	return convertJoins(reg, raw.Nodes)
}

func convertJoins(reg *schema.Registry, nodes []*JoinNode) (ast.JoinTree, error) {
	tree := make(ast.JoinTree, 0, len(nodes))
	for _, n := range nodes {
		et, err := reg.Lookup(n.Name)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", n.Pos, err)
		}
		if len(n.Children) == 0 {
			tree = append(tree, ast.Leaf(et))
			continue
		}
		children, err := convertJoins(reg, n.Children)
		if err != nil {
			return nil, err
		}
		tree = append(tree, ast.Nested(et, children...))
	}
	return tree, nil
}
