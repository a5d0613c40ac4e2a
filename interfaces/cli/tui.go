package cli

import (
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agentsim/application"
	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/config"
	"github.com/felixgeelhaar/agentsim/infrastructure/logging"
	"github.com/felixgeelhaar/agentsim/interfaces/tui"
)

// tuiOptions holds options for the tui command.
type tuiOptions struct {
	constraints     []string
	constraintsFile string
	resume          string
	interval        time.Duration
	seed            uint64
	paused          bool
	logFile         string
}

// newTUICmd creates the tui command.
func (a *App) newTUICmd() *cobra.Command {
	opts := &tuiOptions{}

	cmd := &cobra.Command{
		Use:   "tui [goal]",
		Short: "Watch the agent in an interactive dashboard",
		Long: `Launch a session and open a live dashboard.

Keys: space or n advances once, p pauses and resumes, q quits.

Examples:
  agentsim tui "Launch a beta" --constraint "budget under 5k"
  agentsim tui --resume 3f2a... --store sqlite --dsn agentsim.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("interval") {
				a.config.Driver.Interval = config.Duration(opts.interval)
			}

			rt, err := a.openRuntime(ctx, opts.seed)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			relay := tui.NewRelay()
			driver := rt.newDriver(application.WithObserver(relay.Observer()))
			if opts.resume != "" {
				if _, err := driver.Resume(ctx, opts.resume); err != nil {
					return err
				}
			} else {
				goal := ""
				if len(args) > 0 {
					goal = args[0]
				}
				if strings.TrimSpace(goal) == "" {
					return agent.ErrInvalidGoal
				}
				constraints, err := readConstraints(opts.constraints, opts.constraintsFile)
				if err != nil {
					return err
				}
				if _, err := driver.Launch(ctx, goal, constraints); err != nil {
					return err
				}
			}

			// The dashboard owns the terminal; logs go to a file or nowhere.
			var logOut io.Writer = io.Discard
			if opts.logFile != "" {
				f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				logOut = f
			}
			restore := logging.Redirect(logOut)
			defer restore()

			var modelOpts []tui.Option
			if opts.paused {
				modelOpts = append(modelOpts, tui.WithPaused())
			}
			program := tea.NewProgram(
				tui.New(ctx, driver, modelOpts...),
				tea.WithContext(ctx),
				tea.WithInput(a.stdin),
				tea.WithOutput(a.stdout),
				tea.WithAltScreen(),
			)
			relay.Attach(program)
			_, err = program.Run()
			return err
		},
	}

	cmd.Flags().StringArrayVar(&opts.constraints, "constraint", nil, "Constraint the plan must respect (repeatable)")
	cmd.Flags().StringVar(&opts.constraintsFile, "constraints-file", "", "File with one constraint per line")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "Resume a persisted session instead of launching one")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Delay between advancements (overrides config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed for a reproducible run")
	cmd.Flags().BoolVar(&opts.paused, "paused", false, "Start paused; advance with space")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "Write logs to this file while the dashboard runs")

	return cmd
}
