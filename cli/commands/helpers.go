package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/expreql/expreql/cli/internal/dsl"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/builder"
	"github.com/expreql/expreql/runtime/client"
	"github.com/expreql/expreql/schema"
)

// registry loads the configured entity file
func (o *options) registry() (*schema.Registry, error) {
	reg, err := schema.LoadFile(o.cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", o.cfg.SchemaPath, err)
	}
	return reg, nil
}

// openClient connects to the configured MySQL database
func (o *options) openClient(reg *schema.Registry) (*client.Client, error) {
	mycfg, err := o.cfg.MySQL()
	if err != nil {
		return nil, err
	}
	return client.Open(mycfg, reg)
}

// selectFlags are the query shape flags shared by build, query and explain.
type selectFlags struct {
	fields string
	where  string
	join   string
	order  string
	group  string
	limit  int
	offset int
}

func (f *selectFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.fields, "fields", "f", "", "Comma separated columns to project")
	flags.StringVarP(&f.where, "where", "w", "", `Filter, e.g. "(state = 'open' OR state = 'draft') AND id > 3"`)
	flags.StringVarP(&f.join, "join", "j", "", `Entities to join, e.g. "questions,fulfillments(responses)"`)
	flags.StringVarP(&f.order, "order", "o", "", `Ordering column and direction, e.g. "title DESC"`)
	flags.StringVar(&f.group, "group", "", "Column to group by")
	flags.IntVar(&f.limit, "limit", 0, "Maximum number of rows")
	flags.IntVar(&f.offset, "offset", 0, "Number of rows to skip")
}

// apply configures q for a SELECT on et. Failures are latched on q.
func (f *selectFlags) apply(cmd *cobra.Command, q *builder.QueryBuilder, reg *schema.Registry, et *schema.EntityType) (*builder.QueryBuilder, error) {
	q = q.Entity(et)

	if f.fields != "" {
		q = q.Fields(splitList(f.fields)...)
	}
	if f.where != "" {
		tree, err := dsl.ParseWhere(f.where)
		if err != nil {
			return nil, err
		}
		for _, seg := range tree {
			if seg.Connective == ast.Or {
				q = q.WhereOr(seg.Conditions...)
			} else {
				q = q.WhereGroup(seg.Conditions...)
			}
		}
	}
	if f.join != "" {
		tree, err := dsl.ParseJoins(reg, f.join)
		if err != nil {
			return nil, err
		}
		q = q.Join(tree...)
	}
	if f.order != "" {
		parts := strings.Fields(f.order)
		dir := "ASC"
		if len(parts) > 1 {
			dir = parts[1]
		}
		q = q.OrderBy(parts[0], dir)
	}
	if f.group != "" {
		q = q.GroupBy(f.group)
	}
	if cmd.Flags().Changed("limit") {
		q = q.Limit(f.limit)
	}
	if cmd.Flags().Changed("offset") {
		q = q.Offset(f.offset)
	}
	return q, q.Err()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// entityArg resolves the entity named by the first argument
func entityArg(reg *schema.Registry, args []string) (*schema.EntityType, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("an entity name is required, one of: %s", strings.Join(reg.Names(), ", "))
	}
	return reg.Lookup(args[0])
}
