package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/agentsim/infrastructure/config"
)

// newConfigCmd creates the config command group.
func (a *App) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with configuration files",
	}
	cmd.AddCommand(
		a.newConfigShowCmd(),
		a.newConfigSchemaCmd(),
		a.newConfigValidateCmd(),
	)
	return cmd
}

func (a *App) newConfigShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := infraconfig.Format(format)
			if f != infraconfig.FormatYAML && f != infraconfig.FormatJSON {
				return fmt.Errorf("unsupported format %q", format)
			}
			return infraconfig.Encode(a.stdout, a.config, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(infraconfig.FormatYAML), "Output format (yaml, json)")
	return cmd
}

func (a *App) newConfigSchemaCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		Long: `Print the JSON Schema for configuration files.

The schema can drive IDE validation and autocompletion:
  agentsim config schema -o agentsim.schema.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := infraconfig.SchemaJSON()
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			return a.write([]byte(schema+"\n"), outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func (a *App) newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infraconfig.NewLoader().LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Configuration %q is valid (backend %s)\n", cfg.Name, cfg.Storage.Backend)
			return nil
		},
	}
}
