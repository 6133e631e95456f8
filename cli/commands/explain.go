package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/expreql/expreql/cli/internal/ui"
	"github.com/expreql/expreql/query/ast"
	"github.com/expreql/expreql/query/builder"
	"github.com/expreql/expreql/query/mapper"
)

func newExplainCommand(opts *options) *cobra.Command {
	var (
		flags selectFlags
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "explain <entity>",
		Short: "Describe how a query is compiled and hydrated",
		Long: `Print the compiled statement, the JOIN clause chosen for every relation
and the slot each entity reads when joined tables share a column name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			et, err := entityArg(reg, args)
			if err != nil {
				return err
			}

			q, err := flags.apply(cmd, builder.New(nil, reg), reg, et)
			if err != nil {
				return err
			}
			built, err := q.Build()
			if err != nil {
				return err
			}
			spec := q.Spec()
			plan, err := mapper.NewHydrator(spec.Root, spec.Joins).Plan()
			if err != nil {
				return err
			}

			var doc strings.Builder
			writeExplain(&doc, spec, built.SQL, built.Args, plan)
			if raw {
				_, err := io.WriteString(cmd.OutOrStdout(), doc.String())
				return err
			}
			return ui.PrintMarkdown(cmd.OutOrStdout(), doc.String())
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown source instead of rendering it")
	return cmd
}

func writeExplain(w io.Writer, spec *ast.QuerySpec, sql string, args []any, plan []mapper.Position) {
	fmt.Fprintf(w, "# %s\n\n", spec.Root.Name())
	fmt.Fprintf(w, "## Statement\n\n```sql\n%s\n```\n\n", sql)

	if len(args) > 0 {
		fmt.Fprint(w, "## Parameters\n\n| # | value |\n|---|---|\n")
		for i, a := range args {
			fmt.Fprintf(w, "| %d | `%#v` |\n", i+1, a)
		}
		fmt.Fprintln(w)
	}

	if len(plan) < 2 {
		return
	}

	fmt.Fprint(w, "## Joins\n\n| parent | relation | child | foreign key |\n|---|---|---|---|\n")
	for _, p := range plan[1:] {
		fk := p.Relation.ForeignKey
		if fk == "" {
			fk = p.Entity.PrimaryKey()
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			plan[p.Parent].Entity.Table(), p.Relation.Kind, p.Entity.Table(), fk)
	}

	fmt.Fprint(w, "\n## Hydration\n\n| position | entity | shared columns |\n|---|---|---|\n")
	for i, p := range plan {
		var shared []string
		for col, slot := range p.Slots {
			if slot > 0 || sharedLater(plan[i+1:], col) {
				shared = append(shared, fmt.Sprintf("%s[%d]", col, slot))
			}
		}
		slices.Sort(shared)
		cols := strings.Join(shared, ", ")
		if cols == "" {
			cols = "-"
		}
		fmt.Fprintf(w, "| %d | %s | %s |\n", i, p.Entity.Name(), cols)
	}
}

func sharedLater(rest []mapper.Position, col string) bool {
	for _, p := range rest {
		if p.Entity.HasField(col) {
			return true
		}
	}
	return false
}
