// Package sqlgen provides WHERE clause building logic.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/expreql/expreql/query"
	"github.com/expreql/expreql/query/ast"
)

// buildWhere renders every segment of tree. A segment is parenthesized only
// when it holds several conditions and the tree holds several segments.
// Segments are joined by the connective of the segment on their left; the
// last segment's connective is never emitted.
func buildWhere(tree ast.PredicateTree) (string, []any, error) {
	if tree.Empty() {
		return "", nil, nil
	}

	var sb strings.Builder
	var args []any
	wrap := len(tree) > 1

	for i, seg := range tree {
		segSQL, segArgs, err := buildSegment(seg, wrap)
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			sb.WriteString(" " + string(tree[i-1].Connective) + " ")
		}
		sb.WriteString(segSQL)
		args = append(args, segArgs...)
	}

	return sb.String(), args, nil
}

// buildSegment joins the conditions of seg with its connective
func buildSegment(seg ast.Segment, wrap bool) (string, []any, error) {
	if seg.Connective != ast.And && seg.Connective != ast.Or {
		return "", nil, fmt.Errorf("%w: %q", query.ErrUnsupportedConnective, seg.Connective)
	}
	if len(seg.Conditions) == 0 {
		return "", nil, fmt.Errorf("%w: empty condition group", query.ErrInvalidPredicateShape)
	}

	parts := make([]string, 0, len(seg.Conditions))
	args := make([]any, 0, len(seg.Conditions))
	for _, cond := range seg.Conditions {
		condSQL, err := buildCondition(cond)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, condSQL)
		args = append(args, cond.Value)
	}

	result := strings.Join(parts, " "+string(seg.Connective)+" ")
	if wrap && len(parts) > 1 {
		result = "(" + result + ")"
	}
	return result, args, nil
}

// buildCondition builds a single condition
func buildCondition(cond ast.Condition) (string, error) {
	if cond.Column == "" {
		return "", fmt.Errorf("%w: empty column", query.ErrInvalidPredicateShape)
	}
	op := cond.Operator
	if op == "" {
		op = "="
	}
	op, err := ast.ParseOperator(op)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s ?", cond.Column, op), nil
}
