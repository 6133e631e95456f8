package commands

import (
	"github.com/spf13/cobra"

	"github.com/expreql/expreql/cli/internal/ui"
	"github.com/expreql/expreql/query/builder"
)

func newBuildCommand(opts *options) *cobra.Command {
	var flags selectFlags

	cmd := &cobra.Command{
		Use:   "build <entity>",
		Short: "Compile a SELECT without running it",
		Long: `Compile a SELECT on an entity and print the statement with its bound
parameters. Nothing is sent to the database.`,
		Example: `  expreql build Exercise --join "questions,fulfillments(responses)" --where "state = 'open'"`,
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

			q, err := flags.apply(cmd, builder.New(nil, reg), reg, et)
			if err != nil {
				return err
			}
			built, err := q.Build()
			if err != nil {
				return err
			}
			ui.PrintSQL(cmd.OutOrStdout(), built.SQL, built.Args)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}
