package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/expreql/expreql/cli/internal/ui"
	"github.com/expreql/expreql/cli/internal/watch"
	"github.com/expreql/expreql/schema"
)

func newSchemaCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the entity file",
	}
	cmd.AddCommand(newSchemaValidateCommand(opts), newSchemaShowCommand(opts))
	return cmd
}

func newSchemaValidateCommand(opts *options) *cobra.Command {
	var watchFile bool

	cmd := &cobra.Command{
		Use:   "validate [entity-file...]",
		Short: "Validate entity declarations and their relations",
		Long: `Validate entity files. Every entity must list its primary key among its
fields, every relation must target a declared entity and every foreign key
must be a field of the table that carries it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{opts.cfg.SchemaPath}
			}
			out := cmd.OutOrStdout()

			if !watchFile {
				return validateFiles(out, paths)
			}
			if len(paths) > 1 {
				return fmt.Errorf("--watch takes a single entity file, got %d", len(paths))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchAndValidate(ctx, out, paths[0])
		},
	}
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "Validate again whenever the file is written")
	return cmd
}

func watchAndValidate(ctx context.Context, out io.Writer, path string) error {
	w, err := watch.NewWatcher(path, watch.DefaultDebounce, func(string) error {
		if err := validateFiles(out, []string{path}); err != nil {
			ui.PrintError(out, "%v", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	ui.PrintInfo(out, "Watching %s, press Ctrl+C to stop", path)
	return w.Run(ctx)
}

// validateFiles loads every file concurrently, then prints one summary per
// file in argument order.
func validateFiles(out io.Writer, paths []string) error {
	regs := make([]*schema.Registry, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			reg, err := schema.LoadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			regs[i] = reg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, reg := range regs {
		if err := printSummary(out, paths[i], reg); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(out io.Writer, path string, reg *schema.Registry) error {
	entities := reg.Entities()
	fmt.Fprintf(out, "%s is valid: %d entities\n", path, len(entities))

	rows := make([][]string, 0, len(entities))
	for _, et := range entities {
		var rels []string
		for _, rel := range et.Relations() {
			fk := rel.ForeignKey
			if fk == "" {
				fk = "pk"
			}
			rels = append(rels, fmt.Sprintf("%s %s (%s)", rel.Kind, rel.Target, fk))
		}
		rows = append(rows, []string{
			et.Name(),
			et.Table(),
			et.PrimaryKey(),
			strings.Join(et.Fields(), ", "),
			strings.Join(rels, "; "),
		})
	}
	return ui.PrintTable(out, []string{"entity", "table", "primary key", "fields", "relations"}, rows)
}

func newSchemaShowCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the normalized entity file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			data, err := reg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
