package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/expreql/expreql/cli/internal/version"
)

func newVersionCommand() *cobra.Command {
	var full, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case full:
				_, err := fmt.Fprintln(out, info.FullString())
				return err
			default:
				_, err := fmt.Fprintln(out, info.String())
				return err
			}
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Include build details")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
