package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
)

// exportOptions holds options for the export and lifecycle commands.
type exportOptions struct {
	format     string
	outputPath string
}

func (o *exportOptions) bind(cmd *cobra.Command, def inspector.ExportFormat) {
	cmd.Flags().StringVarP(&o.format, "format", "f", string(def), "Output format (json, csv, mermaid, markdown, dot)")
	cmd.Flags().StringVarP(&o.outputPath, "output", "o", "", "Output file path (default: stdout)")
}

// write sends the export to the output file or stdout.
func (a *App) write(data []byte, path string) error {
	if path == "" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(a.stderr, "Wrote %s\n", path)
	return nil
}

// newExportCmd creates the export command.
func (a *App) newExportCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session's plan, timeline and knowledge",
		Long: `Export a persisted session.

Examples:
  agentsim export 3f2a... --store sqlite --dsn agentsim.db
  agentsim export 3f2a... -f mermaid -o plan.mmd
  agentsim export 3f2a... -f csv > session.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := inspector.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				data, err := rt.inspection().ExportSession(cmd.Context(), args[0], format)
				if err != nil {
					return err
				}
				return a.write(data, opts.outputPath)
			})
		},
	}
	opts.bind(cmd, inspector.FormatJSON)

	return cmd
}

// newLifecycleCmd creates the lifecycle command.
func (a *App) newLifecycleCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "lifecycle",
		Short: "Print the step lifecycle chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := inspector.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				data, err := rt.inspection().ExportLifecycle(cmd.Context(), format)
				if err != nil {
					return err
				}
				return a.write(data, opts.outputPath)
			})
		},
	}
	opts.bind(cmd, inspector.FormatMermaid)

	return cmd
}
