package inspector

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// MermaidFormatter renders a session plan as a flowchart and the lifecycle as a state diagram.
type MermaidFormatter struct{}

// NewMermaidFormatter creates a new Mermaid formatter.
func NewMermaidFormatter() *MermaidFormatter {
	return &MermaidFormatter{}
}

// Format formats the data as Mermaid.
func (f *MermaidFormatter) Format(data any) ([]byte, error) {
	switch d := data.(type) {
	case *inspector.SessionExport:
		return f.formatPlan(d), nil
	case *inspector.LifecycleExport:
		return f.formatLifecycle(d), nil
	default:
		return nil, fmt.Errorf("%w: unsupported data type for Mermaid: %T", inspector.ErrInvalidFormat, data)
	}
}

// FormatType returns the format type.
func (f *MermaidFormatter) FormatType() inspector.ExportFormat {
	return inspector.FormatMermaid
}

func (f *MermaidFormatter) formatPlan(exp *inspector.SessionExport) []byte {
	var b strings.Builder

	b.WriteString("flowchart LR\n")
	fmt.Fprintf(&b, "  goal([%q])\n", exp.Session.Goal)

	prev := "goal"
	for _, s := range exp.Plan {
		id := sanitizeID(s.ID)
		label := s.Title
		if s.Attempts > 0 {
			label = fmt.Sprintf("%s<br/>%d attempt(s)", s.Title, s.Attempts)
		}
		fmt.Fprintf(&b, "  %s[%q]:::%s\n", id, label, statusClass(s.Status))
		fmt.Fprintf(&b, "  %s --> %s\n", prev, id)
		prev = id
	}
	if exp.Session.Status.IsTerminal() {
		fmt.Fprintf(&b, "  %s --> done((%q))\n", prev, string(exp.Session.Status))
	}

	b.WriteString("\n")
	b.WriteString("  classDef pending fill:#eeeeee,stroke:#999999\n")
	b.WriteString("  classDef active fill:#fff3cd,stroke:#d39e00\n")
	b.WriteString("  classDef completed fill:#d4edda,stroke:#28a745\n")

	return []byte(b.String())
}

func (f *MermaidFormatter) formatLifecycle(lc *inspector.LifecycleExport) []byte {
	var b strings.Builder

	b.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&b, "  [*] --> %s\n", sanitizeID(string(lc.Initial)))

	for _, t := range lc.Transitions {
		from, to := sanitizeID(string(t.From)), sanitizeID(string(t.To))
		if t.Label != "" {
			fmt.Fprintf(&b, "  %s --> %s: %s\n", from, to, t.Label)
		} else {
			fmt.Fprintf(&b, "  %s --> %s\n", from, to)
		}
	}

	for _, terminal := range lc.Terminal {
		fmt.Fprintf(&b, "  %s --> [*]\n", sanitizeID(string(terminal)))
	}

	return []byte(b.String())
}

func statusClass(s plan.StepStatus) string {
	switch s {
	case plan.StepInProgress:
		return "active"
	case plan.StepCompleted:
		return "completed"
	default:
		return "pending"
	}
}

// sanitizeID maps an identifier onto the characters Mermaid and DOT accept unquoted.
func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

var _ inspector.Formatter = (*MermaidFormatter)(nil)
