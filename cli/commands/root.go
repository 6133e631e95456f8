// Package commands implements the expreql command line.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/expreql/expreql/cli/internal/config"
	"github.com/expreql/expreql/cli/internal/ui"
	"github.com/expreql/expreql/cli/internal/version"
	"github.com/expreql/expreql/internal/debug"
)

// options carries the persistent flags and the configuration loaded before
// any command runs.
type options struct {
	schemaPath string
	debug      bool
	jsonLogs   bool

	cfg *config.Config
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "expreql",
		Short: "Compile relational queries and hydrate their results",
		Long: `expreql compiles declarative queries over registered entities into
parameterized MySQL statements and hydrates joined result rows back into
entity graphs.`,
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.schemaPath, "schema", "s", "", "Path to the entity file (default from config: entities.yaml)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&opts.jsonLogs, "log-json", false, "Write debug logs as JSON")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newBuildCommand(opts),
		newQueryCommand(opts),
		newSchemaCommand(opts),
		newExplainCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs the command line and reports the error, if any.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		ui.PrintError(os.Stderr, "%v", err)
		return err
	}
	return nil
}

func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if o.schemaPath != "" {
		cfg.SchemaPath = o.schemaPath
	}
	o.cfg = cfg

	debug.Configure(debug.Options{
		Enabled: o.debug || cfg.Debug,
		JSON:    o.jsonLogs,
		Output:  cmd.ErrOrStderr(),
	})
	return nil
}
