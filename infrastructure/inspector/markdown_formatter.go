package inspector

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
)

// MarkdownFormatter renders a readable report.
type MarkdownFormatter struct {
	title string
}

// MarkdownFormatterOption configures the Markdown formatter.
type MarkdownFormatterOption func(*MarkdownFormatter)

// WithTitle sets the report heading prefix.
func WithTitle(title string) MarkdownFormatterOption {
	return func(f *MarkdownFormatter) {
		f.title = title
	}
}

// NewMarkdownFormatter creates a new Markdown formatter.
func NewMarkdownFormatter(opts ...MarkdownFormatterOption) *MarkdownFormatter {
	f := &MarkdownFormatter{title: "Session"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats the data as Markdown.
func (f *MarkdownFormatter) Format(data any) ([]byte, error) {
	switch d := data.(type) {
	case *inspector.SessionExport:
		return f.formatSession(d), nil
	case *inspector.LifecycleExport:
		return f.formatLifecycle(d), nil
	default:
		return nil, fmt.Errorf("%w: unsupported data type for Markdown: %T", inspector.ErrInvalidFormat, data)
	}
}

// FormatType returns the format type.
func (f *MarkdownFormatter) FormatType() inspector.ExportFormat {
	return inspector.FormatMarkdown
}

func (f *MarkdownFormatter) formatSession(exp *inspector.SessionExport) []byte {
	var b strings.Builder
	meta := exp.Session
	m := exp.Metrics

	fmt.Fprintf(&b, "# %s %s\n\n", f.title, meta.ID)
	fmt.Fprintf(&b, "**Goal:** %s\n\n", meta.Goal)
	if len(meta.Constraints) > 0 {
		b.WriteString("**Constraints:**\n\n")
		for _, c := range meta.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}

	b.WriteString("| Status | Iteration | Steps | Attempts | Events | Elapsed |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %d | %d/%d | %d | %d | %s |\n\n",
		meta.Status, meta.Iteration, m.StepsCompleted, m.StepsTotal, m.TotalAttempts, m.EventCount,
		m.TotalDuration.Round(time.Millisecond))

	b.WriteString("## Plan\n\n")
	for i, s := range exp.Plan {
		fmt.Fprintf(&b, "%d. %s **%s** (%s, %d attempt(s))\n", i+1, checkbox(string(s.Status)), escapeMD(s.Title), s.Kind, s.Attempts)
		for _, n := range s.Notes {
			fmt.Fprintf(&b, "   - %s\n", escapeMD(n))
		}
	}
	b.WriteString("\n")

	b.WriteString("## Knowledge\n\n")
	wrote := false
	for _, bank := range knowledge.AllBanks() {
		entries := exp.Knowledge[bank.String()]
		if len(entries) == 0 {
			continue
		}
		wrote = true
		fmt.Fprintf(&b, "### %s\n\n", bank)
		for _, e := range entries {
			fmt.Fprintf(&b, "- %s\n", escapeMD(e))
		}
		b.WriteString("\n")
	}
	if !wrote {
		b.WriteString("_No knowledge recorded._\n\n")
	}

	b.WriteString("## Timeline\n\n")
	b.WriteString("| Time | Iteration | Event | Message |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, e := range exp.Timeline {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
			e.Timestamp.Format(time.TimeOnly), e.Iteration, e.Type, escapeCell(e.Label))
	}

	return []byte(b.String())
}

func (f *MarkdownFormatter) formatLifecycle(lc *inspector.LifecycleExport) []byte {
	var b strings.Builder

	b.WriteString("# Step lifecycle\n\n")
	b.WriteString("| State | Terminal | Description |\n")
	b.WriteString("|---|---|---|\n")
	for _, s := range lc.States {
		name := string(s.Name)
		if s.Name == lc.Initial {
			name += " (initial)"
		}
		fmt.Fprintf(&b, "| %s | %t | %s |\n", name, s.IsTerminal, s.Description)
	}

	b.WriteString("\n## Transitions\n\n")
	for _, t := range lc.Transitions {
		fmt.Fprintf(&b, "- %s → %s", t.From, t.To)
		if t.Label != "" {
			fmt.Fprintf(&b, " (%s)", t.Label)
		}
		b.WriteString("\n")
	}

	return []byte(b.String())
}

func checkbox(status string) string {
	switch status {
	case "completed":
		return "[x]"
	case "in-progress":
		return "[~]"
	default:
		return "[ ]"
	}
}

var mdEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`")

func escapeMD(s string) string {
	return mdEscaper.Replace(s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(escapeMD(s), "|", `\|`)
}

var _ inspector.Formatter = (*MarkdownFormatter)(nil)
