// Package cli provides the command-line interface for the agent simulator.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	agentsim "github.com/felixgeelhaar/agentsim"
	"github.com/felixgeelhaar/agentsim/domain/config"
	infraconfig "github.com/felixgeelhaar/agentsim/infrastructure/config"
	"github.com/felixgeelhaar/agentsim/infrastructure/logging"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	store      string
	dsn        string
	dir        string
	address    string
	logLevel   string
	logFormat  string
	trace      string
}

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	globals globalOptions
	config  *config.SimulatorConfig
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "agentsim",
		Short: "Simulate a goal-pursuing agent",
		Long: `agentsim simulates an autonomous agent pursuing a goal.

Given a goal and optional constraints it synthesizes a plan of steps, then
advances one unit of work at a time: attempting steps, recording findings in
knowledge banks and emitting a timeline of events until the goal is achieved.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}

	pf := app.root.PersistentFlags()
	pf.StringVarP(&app.globals.configPath, "config", "c", "", "Path to configuration file (.yaml, .yml or .json)")
	pf.StringVar(&app.globals.store, "store", "", "Session store backend (memory, sqlite, badger, redis, postgres, mongodb, dynamodb)")
	pf.StringVar(&app.globals.dsn, "dsn", "", "SQLite data source or Postgres connection string")
	pf.StringVar(&app.globals.dir, "dir", "", "Badger data directory")
	pf.StringVar(&app.globals.address, "address", "", "Redis server address")
	pf.StringVar(&app.globals.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&app.globals.logFormat, "log-format", "", "Log format (console, json)")
	pf.StringVar(&app.globals.trace, "trace", "", "Span exporter (none, stdout, otlp)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newRunCmd(),
		app.newPlanCmd(),
		app.newTUICmd(),
		app.newSessionsCmd(),
		app.newExportCmd(),
		app.newLifecycleCmd(),
		app.newConfigCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithInput sets a custom input reader (manual stepping reads from it).
func (a *App) WithInput(stdin io.Reader) *App {
	a.stdin = stdin
	a.root.SetIn(stdin)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// setup loads configuration, applies flag overrides and initialises logging.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	var cfg *config.SimulatorConfig
	if a.globals.configPath != "" {
		loaded, err := infraconfig.NewLoader().LoadFile(a.globals.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		d := config.Default()
		cfg = &d
	}

	g := a.globals
	if g.store != "" {
		cfg.Storage.Backend = g.store
	}
	if g.dsn != "" {
		cfg.Storage.DSN = g.dsn
	}
	if g.dir != "" {
		cfg.Storage.Dir = g.dir
	}
	if g.address != "" {
		cfg.Storage.Address = g.address
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if g.trace != "" {
		cfg.Telemetry.Tracing.Exporter = g.trace
	}

	if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
		return errs
	}

	a.config = cfg
	logging.Init(infraconfig.NewBuilder(cfg).LoggingConfig())
	logging.SetLevel(cfg.Logging.Level)
	return nil
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "agentsim version %s\n", agentsim.Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", agentsim.GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", agentsim.BuildDate)
		},
	}
}
