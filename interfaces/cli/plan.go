package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// planOptions holds options for the plan command.
type planOptions struct {
	constraints     []string
	constraintsFile string
	jsonOutput      bool
}

// newPlanCmd creates the plan command.
func (a *App) newPlanCmd() *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan <goal>",
		Short: "Print the plan synthesized for a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			constraints, err := readConstraints(opts.constraints, opts.constraintsFile)
			if err != nil {
				return err
			}
			engine, err := newEngine(a.config, 0)
			if err != nil {
				return err
			}
			state, err := engine.Synthesize(args[0], constraints)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				data, err := json.MarshalIndent(state.Plan, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(data))
				return nil
			}

			fmt.Fprintf(a.stdout, "Goal: %s\n", state.Goal)
			for _, c := range state.Constraints {
				fmt.Fprintf(a.stdout, "Constraint: %s\n", c)
			}
			fmt.Fprintln(a.stdout)
			for i, s := range state.Plan {
				fmt.Fprintf(a.stdout, "%d. [%s] %s\n   %s\n", i+1, s.Kind, s.Title, s.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&opts.constraints, "constraint", nil, "Constraint the plan must respect (repeatable)")
	cmd.Flags().StringVar(&opts.constraintsFile, "constraints-file", "", "File with one constraint per line")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the plan as JSON")

	return cmd
}
