package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agentsim/application"
	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/config"
	"github.com/felixgeelhaar/agentsim/domain/event"
	infraconfig "github.com/felixgeelhaar/agentsim/infrastructure/config"
	"github.com/felixgeelhaar/agentsim/infrastructure/logging"
)

// runOptions holds options for the run command.
type runOptions struct {
	goal            string
	constraints     []string
	constraintsFile string
	interval        time.Duration
	maxIterations   int
	seed            uint64
	manual          bool
	jsonOutput      bool
	watch           bool
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [goal]",
		Short: "Simulate an agent pursuing a goal",
		Long: `Synthesize a plan for the goal and advance the agent until it succeeds.

Events are printed as they are published. In manual mode the agent advances
once for every line read from stdin.

Examples:
  # Run with a goal and two constraints
  agentsim run "Launch a beta" --constraint "budget under 5k" --constraint "ship by May"

  # Reproducible run, fast cadence, JSON event lines
  agentsim run "Launch a beta" --seed 42 --interval 50ms --json

  # Persist to SQLite and reload config changes while running
  agentsim run "Launch a beta" --store sqlite --dsn agentsim.db -c agentsim.yaml --watch

  # Step manually
  agentsim run "Launch a beta" --manual`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.goal = args[0]
			}
			if cmd.Flags().Changed("interval") {
				a.config.Driver.Interval = config.Duration(opts.interval)
			}
			if cmd.Flags().Changed("max-iterations") {
				a.config.Driver.MaxIterations = opts.maxIterations
			}
			return a.run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.constraints, "constraint", nil, "Constraint the plan must respect (repeatable)")
	cmd.Flags().StringVar(&opts.constraintsFile, "constraints-file", "", "File with one constraint per line")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Delay between advancements (overrides config)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "Stop after this many advancements (overrides config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Random seed for a reproducible run")
	cmd.Flags().BoolVar(&opts.manual, "manual", false, "Advance once per line read from stdin")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print events as JSON lines")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the config file while running")

	return cmd
}

// readConstraints merges flag constraints with those read from a file.
func readConstraints(flags []string, path string) ([]string, error) {
	out := append([]string{}, flags...)
	if path == "" {
		return application.CleanConstraints(out), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constraints: %w", err)
	}
	out = append(out, application.SplitConstraints(string(data))...)
	return application.CleanConstraints(out), nil
}

// run executes the run command.
func (a *App) run(ctx context.Context, opts *runOptions) error {
	if strings.TrimSpace(opts.goal) == "" {
		return agent.ErrInvalidGoal
	}
	constraints, err := readConstraints(opts.constraints, opts.constraintsFile)
	if err != nil {
		return err
	}

	rt, err := a.openRuntime(ctx, opts.seed)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logging.Warn().Add(logging.Component("cli")).Add(logging.ErrorField(err)).Msg("close runtime")
		}
	}()

	driver := rt.newDriver()

	if opts.watch && a.globals.configPath != "" {
		w, err := infraconfig.NewWatcher(a.globals.configPath, func(cfg *config.SimulatorConfig) {
			driver.SetInterval(cfg.Driver.Interval.Duration())
			logging.SetLevel(cfg.Logging.Level)
			logging.Info().
				Add(logging.Component("cli")).
				Add(logging.Duration(cfg.Driver.Interval.Duration())).
				Msg("config reloaded")
		}, infraconfig.WithErrorHandler(func(err error) {
			logging.Warn().Add(logging.Component("cli")).Add(logging.ErrorField(err)).Msg("config reload failed")
		}))
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
	}

	s, err := driver.Launch(ctx, opts.goal, constraints)
	if err != nil {
		return err
	}
	for _, e := range s.State.Events {
		a.printEvent(e, opts.jsonOutput)
	}

	// Render the live feed from the event store subscription.
	feedCtx, stopFeed := context.WithCancel(context.WithoutCancel(ctx))
	feed, err := rt.stores.Events.Subscribe(feedCtx, s.ID)
	if err != nil {
		stopFeed()
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range feed {
			a.printEvent(r.Event, opts.jsonOutput)
		}
	}()

	var final agent.State
	if opts.manual {
		final, err = a.stepManually(ctx, driver)
	} else {
		final, err = driver.Run(ctx)
	}

	stopFeed()
	<-done

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if !opts.jsonOutput {
		completed, total := final.Progress()
		fmt.Fprintf(a.stdout, "\nSession %s: %s after %d iterations (%d/%d steps)\n",
			s.ID, final.Status, final.Iteration, completed, total)
	}
	return nil
}

// stepManually advances once per input line until the agent finishes or input ends.
func (a *App) stepManually(ctx context.Context, driver *application.Driver) (agent.State, error) {
	if !isQuiet(a.stdin) {
		fmt.Fprintln(a.stderr, "Press Enter to advance, Ctrl+D to stop.")
	}
	scanner := bufio.NewScanner(a.stdin)
	for {
		state := driver.State()
		if state.Status != agent.StatusRunning {
			return state, nil
		}
		if !scanner.Scan() {
			return state, scanner.Err()
		}
		if _, err := driver.Step(ctx); err != nil && !errors.Is(err, application.ErrRateLimited) {
			return driver.State(), err
		}
	}
}

// isQuiet reports whether the reader is not an interactive terminal.
func isQuiet(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return true
	}
	info, err := f.Stat()
	return err != nil || info.Mode()&os.ModeCharDevice == 0
}

// printEvent writes one timeline event.
func (a *App) printEvent(e event.Event, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		fmt.Fprintln(a.stdout, string(data))
		return
	}
	fmt.Fprintf(a.stdout, "%s  #%-3d %-18s %s\n",
		e.Timestamp.Local().Format("15:04:05"), e.Iteration, e.Type, e.Message)
}
