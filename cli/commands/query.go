package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/expreql/expreql/cli/internal/ui"
	"github.com/expreql/expreql/query/mapper"
	"github.com/expreql/expreql/schema"
)

func newQueryCommand(opts *options) *cobra.Command {
	var (
		flags  selectFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query <entity>",
		Short: "Run a SELECT and print the hydrated entities",
		Long: `Run a SELECT on an entity against the configured database. Joined rows
are hydrated into entities; nested collections are listed by size in table
output and in full with --json.`,
		Example: `  expreql query Author --join "biographies,books" --order "name ASC" --limit 20 --json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			et, err := entityArg(reg, args)
			if err != nil {
				return err
			}

			c, err := opts.openClient(reg)
			if err != nil {
				return err
			}
			defer c.Close()

			q, err := flags.apply(cmd, c.Query(), reg, et)
			if err != nil {
				return err
			}
			res, err := q.Execute(cmd.Context())
			if err != nil {
				return err
			}

			for _, skip := range res.Skipped {
				ui.PrintWarning(cmd.ErrOrStderr(), "row %d skipped: %v", skip.Row, skip.Err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Entities)
			}
			return printEntities(cmd.OutOrStdout(), et, res.Entities)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entities with their nested collections as JSON")
	return cmd
}

// printEntities renders one table row per root entity. Related collections
// appear as a count column per related table.
func printEntities(w io.Writer, et *schema.EntityType, entities mapper.ResultGraph) error {
	if len(entities) == 0 {
		_, err := fmt.Fprintf(w, "no %s found\n", et.Table())
		return err
	}

	columns := entities[0].Fields()
	related := entities[0].RelatedTables()
	headers := append(append([]string{}, columns...), related...)

	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		row := make([]string, 0, len(headers))
		for _, col := range columns {
			v, _ := e.Get(col)
			row = append(row, cell(v))
		}
		for _, table := range related {
			row = append(row, strconv.Itoa(len(e.Related(table))))
		}
		rows = append(rows, row)
	}
	return ui.PrintTable(w, headers, rows)
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
