// Package tui renders a live dashboard of a simulated agent session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/agentsim/application"
	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

const defaultFeedSize = 8

// tickMsg fires an automatic advancement. Ticks from an older generation are stale.
type tickMsg struct {
	gen int
}

// advancedMsg carries the outcome of one driver step.
type advancedMsg struct {
	state agent.State
	err   error
	auto  bool
}

// observedMsg carries a state the driver committed, whoever triggered it.
type observedMsg struct {
	state agent.State
}

// Relay forwards driver advancements into a running program. Register
// Observer with the driver, then Attach the program; states committed
// before Attach are dropped, as the model reads the driver on creation.
type Relay struct {
	program atomic.Pointer[tea.Program]
}

// NewRelay creates a relay with no program attached.
func NewRelay() *Relay {
	return &Relay{}
}

// Attach sets the program that receives states.
func (r *Relay) Attach(p *tea.Program) {
	r.program.Store(p)
}

// Observer returns the driver callback that feeds the program.
func (r *Relay) Observer() application.Observer {
	return func(state agent.State, _ []event.Event) {
		if p := r.program.Load(); p != nil {
			p.Send(observedMsg{state: state})
		}
	}
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	ctx      context.Context
	driver   *application.Driver
	progress progress.Model
	styles   Styles

	state    agent.State
	err      error
	paused   bool
	gen      int
	feedSize int
	width    int
}

// Option configures the model.
type Option func(*Model)

// WithPaused starts the dashboard without automatic advancement.
func WithPaused() Option {
	return func(m *Model) {
		m.paused = true
	}
}

// WithFeedSize sets how many recent events are shown.
func WithFeedSize(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.feedSize = n
		}
	}
}

// WithStyles overrides the default styles.
func WithStyles(s Styles) Option {
	return func(m *Model) {
		m.styles = s
	}
}

// New creates a dashboard for a driver that already holds a session.
func New(ctx context.Context, driver *application.Driver, opts ...Option) Model {
	m := Model{
		ctx:      ctx,
		driver:   driver,
		progress: progress.New(progress.WithDefaultGradient()),
		styles:   DefaultStyles(),
		state:    driver.State(),
		feedSize: defaultFeedSize,
		width:    80,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.progress.Width = m.width - 4
	return m
}

// Init schedules the first automatic advancement.
func (m Model) Init() tea.Cmd {
	if m.paused {
		return nil
	}
	return m.tick()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "n":
			return m, m.step(false)
		case "p":
			m.paused = !m.paused
			m.gen++
			if !m.paused && m.running() {
				return m, m.tick()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(msg.Width-4, 10)

	case tickMsg:
		if msg.gen != m.gen || m.paused || !m.running() {
			return m, nil
		}
		return m, m.step(true)

	case observedMsg:
		m.accept(msg.state)

	case advancedMsg:
		// Manual and automatic steps race; an older snapshot must not win.
		if m.accept(msg.state) {
			m.err = msg.err
		}
		if msg.auto && !m.paused && m.running() {
			m.gen++
			return m, m.tick()
		}
	}

	return m, nil
}

// State returns the last state the dashboard rendered.
func (m Model) State() agent.State {
	return m.state
}

// Paused reports whether automatic advancement is paused.
func (m Model) Paused() bool {
	return m.paused
}

// accept adopts state unless it is older than the one shown.
func (m *Model) accept(state agent.State) bool {
	if state.Iteration < m.state.Iteration {
		return false
	}
	m.state = state
	return true
}

func (m Model) running() bool {
	return m.state.Status == agent.StatusRunning
}

func (m Model) tick() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.driver.Interval(), func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func (m Model) step(auto bool) tea.Cmd {
	ctx, driver := m.ctx, m.driver
	return func() tea.Msg {
		state, err := driver.Step(ctx)
		return advancedMsg{state: state, err: err, auto: auto}
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if len(m.state.Plan) == 0 {
		return m.styles.Muted.Render("No session loaded.") + "\n"
	}

	var b strings.Builder

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.Title.Render(m.state.Goal), " ", m.badge())
	b.WriteString(header + "\n")
	for _, c := range m.state.Constraints {
		b.WriteString(m.styles.Muted.Render("  constraint: "+c) + "\n")
	}

	completed, total := m.state.Progress()
	b.WriteString("\n" + m.progress.ViewAs(float64(completed)/float64(total)) + "\n")
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d/%d steps · iteration %d", completed, total, m.state.Iteration)) + "\n")

	b.WriteString(m.styles.Section.Render("Plan") + "\n")
	for i, s := range m.state.Plan {
		b.WriteString(m.renderStep(i, s))
	}

	b.WriteString(m.styles.Section.Render("Knowledge") + "\n")
	for _, bank := range knowledge.AllBanks() {
		entries := m.state.Knowledge.Get(bank)
		line := fmt.Sprintf("  %-13s %d", bank, len(entries))
		if n := len(entries); n > 0 {
			line += m.styles.Muted.Render("  " + truncate(entries[n-1], 60))
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(m.styles.Section.Render("Events") + "\n")
	events := m.state.Events
	if len(events) > m.feedSize {
		events = events[len(events)-m.feedSize:]
	}
	for _, e := range events {
		b.WriteString(m.renderEvent(e))
	}

	if m.err != nil {
		style := m.styles.Error
		if errors.Is(m.err, application.ErrRateLimited) {
			style = m.styles.Warning
		}
		b.WriteString("\n" + style.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + m.styles.Muted.Render(m.help()) + "\n")
	return b.String()
}

func (m Model) badge() string {
	switch {
	case m.state.Status == agent.StatusSuccess:
		return m.styles.Badge.Foreground(colorSuccess).Render("SUCCESS")
	case m.paused:
		return m.styles.Badge.Foreground(colorWarning).Render("PAUSED")
	default:
		return m.styles.Badge.Foreground(colorInfo).Render("RUNNING")
	}
}

func (m Model) renderStep(i int, s plan.Step) string {
	icon, style := "○", m.styles.Muted
	switch s.Status {
	case plan.StepInProgress:
		icon, style = "▶", m.styles.Info
	case plan.StepCompleted:
		icon, style = "✓", m.styles.Success
	}

	line := style.Render(fmt.Sprintf(" %s %d. %s", icon, i+1, s.Title))
	line += m.styles.Muted.Render(fmt.Sprintf("  [%s · %d attempt(s)]", s.Kind, s.Attempts))
	out := line + "\n"
	if n := len(s.Notes); n > 0 {
		out += m.styles.Muted.Render("     "+truncate(s.Notes[n-1], 72)) + "\n"
	}
	return out
}

func (m Model) renderEvent(e event.Event) string {
	style := m.styles.Muted
	switch e.Type {
	case event.TypeStepCompleted:
		style = m.styles.Success
	case event.TypeGoalAchieved:
		style = m.styles.Bold.Foreground(colorSuccess)
	case event.TypeKnowledgeUpdated:
		style = m.styles.Info
	}
	return fmt.Sprintf("  %s %s\n",
		m.styles.Muted.Render(e.Timestamp.Local().Format("15:04:05")),
		style.Render(truncate(e.Message, 90)))
}

func (m Model) help() string {
	if !m.running() {
		return "q quit"
	}
	if m.paused {
		return "space/n step · p resume · q quit"
	}
	return "space/n step · p pause · q quit"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
