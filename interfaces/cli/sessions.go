package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agentsim/application"
	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// sessionsListOptions holds options for the sessions list command.
type sessionsListOptions struct {
	status     []string
	goal       string
	limit      int
	offset     int
	orderBy    string
	descending bool
}

// newSessionsCmd creates the sessions command group.
func (a *App) newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted sessions",
	}
	cmd.AddCommand(
		a.newSessionsListCmd(),
		a.newSessionsShowCmd(),
		a.newSessionsDeleteCmd(),
		a.newSessionsSummaryCmd(),
		a.newSessionsReplayCmd(),
	)
	return cmd
}

// withRuntime opens the runtime for the duration of fn.
func (a *App) withRuntime(ctx context.Context, fn func(*runtime) error) error {
	rt, err := a.openRuntime(ctx, 0)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(rt)
}

func (a *App) newSessionsListCmd() *cobra.Command {
	opts := &sessionsListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := session.ListFilter{
				GoalPattern: opts.goal,
				Limit:       opts.limit,
				Offset:      opts.offset,
				OrderBy:     session.OrderBy(opts.orderBy),
				Descending:  opts.descending,
			}
			for _, s := range opts.status {
				st := agent.Status(s)
				if !st.IsValid() {
					return fmt.Errorf("unknown status %q", s)
				}
				filter.Status = append(filter.Status, st)
			}

			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				sessions, err := rt.stores.Sessions.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(a.stdout, "No sessions.")
					return nil
				}
				fmt.Fprintln(a.stdout, sessionTable(sessions))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.status, "status", nil, "Filter by status (running, success)")
	cmd.Flags().StringVar(&opts.goal, "goal", "", "Filter by goal substring")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum sessions to list (0 = all)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Sessions to skip")
	cmd.Flags().StringVar(&opts.orderBy, "order-by", string(session.OrderByCreatedAt), "Sort by created_at, updated_at, id or status")
	cmd.Flags().BoolVar(&opts.descending, "desc", true, "Sort newest first")

	return cmd
}

func sessionTable(sessions []*session.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		completed, total := s.State.Progress()
		rows = append(rows, []string{
			s.ID,
			truncateCell(s.Goal, 40),
			string(s.State.Status),
			fmt.Sprintf("%d/%d", completed, total),
			strconv.Itoa(s.State.Iteration),
			s.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "GOAL", "STATUS", "STEPS", "ITERATION", "UPDATED").
		Rows(rows...).
		String()
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (a *App) newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				out, err := rt.inspection().GetSessionAsMarkdown(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(out)
				return err
			})
		},
	}
}

func (a *App) newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				for _, id := range args {
					if err := rt.stores.Sessions.Delete(cmd.Context(), id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
					fmt.Fprintf(a.stdout, "Deleted %s\n", id)
				}
				return nil
			})
		},
	}
}

func (a *App) newSessionsSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print aggregate statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				sum, err := summarize(cmd.Context(), rt.stores.Sessions)
				if err != nil {
					return err
				}
				var b strings.Builder
				fmt.Fprintf(&b, "Sessions:           %d\n", sum.TotalSessions)
				fmt.Fprintf(&b, "Succeeded:          %d\n", sum.SucceededSessions)
				fmt.Fprintf(&b, "Running:            %d\n", sum.RunningSessions)
				fmt.Fprintf(&b, "Average iterations: %.1f\n", sum.AverageIterations)
				_, err = fmt.Fprint(a.stdout, b.String())
				return err
			})
		},
	}
}

func (a *App) newSessionsReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <id>",
		Short: "Replay a session's event feed step by step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *runtime) error {
				tl, err := application.NewReplay(rt.stores.Events).Timeline(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("replay %s: %w", args[0], err)
				}
				fmt.Fprintf(a.stdout, "Session %s: %d events, %d iterations over %s\n",
					args[0], len(tl.Events()), tl.Iterations(), tl.Duration().Round(time.Millisecond))
				fmt.Fprintln(a.stdout, spanTable(tl.StepSpans()))
				return nil
			})
		},
	}
}

func spanTable(spans []application.StepSpan) string {
	rows := make([][]string, 0, len(spans))
	for _, sp := range spans {
		state, took := "open", "-"
		if sp.Done {
			state, took = "completed", sp.Duration().Round(time.Millisecond).String()
		}
		rows = append(rows, []string{sp.StepID, state, strconv.Itoa(sp.Attempts), took})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STEP", "STATE", "ATTEMPTS", "ACTIVE FOR").
		Rows(rows...).
		String()
}

// summarize prefers a store's own aggregation over loading every session.
func summarize(ctx context.Context, store session.Store) (session.Summary, error) {
	if p, ok := store.(session.SummaryProvider); ok {
		return p.Summary(ctx, session.ListFilter{})
	}
	sessions, err := store.List(ctx, session.ListFilter{})
	if err != nil {
		return session.Summary{}, err
	}
	return session.Summarize(sessions), nil
}
