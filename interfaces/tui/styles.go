package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	colorMuted   = lipgloss.Color("#6b7280")
	colorInfo    = lipgloss.Color("#2196F3")
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#e53935")
	colorHeader  = lipgloss.Color("#101F38")
)

// Styles holds the lipgloss styles used by the dashboard.
type Styles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Badge   lipgloss.Style
	Panel   lipgloss.Style
}

// DefaultStyles returns the default dashboard styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f2f2f2")).
			Background(colorHeader).
			Padding(0, 1),
		Section: lipgloss.NewStyle().Bold(true).Underline(true).MarginTop(1),
		Bold:    lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Info:    lipgloss.NewStyle().Foreground(colorInfo),
		Success: lipgloss.NewStyle().Foreground(colorSuccess),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Error:   lipgloss.NewStyle().Foreground(colorError),
		Badge:   lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
	}
}
