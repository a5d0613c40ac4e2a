package inspector

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// DOTFormatter formats exports as Graphviz DOT.
type DOTFormatter struct{}

// NewDOTFormatter creates a new DOT formatter.
func NewDOTFormatter() *DOTFormatter {
	return &DOTFormatter{}
}

// Format formats the data as DOT.
func (f *DOTFormatter) Format(data any) ([]byte, error) {
	switch d := data.(type) {
	case *inspector.SessionExport:
		return f.formatPlan(d), nil
	case *inspector.LifecycleExport:
		return f.formatLifecycle(d), nil
	default:
		return nil, fmt.Errorf("%w: unsupported data type for DOT: %T", inspector.ErrInvalidFormat, data)
	}
}

// FormatType returns the format type.
func (f *DOTFormatter) FormatType() inspector.ExportFormat {
	return inspector.FormatDOT
}

func (f *DOTFormatter) formatPlan(exp *inspector.SessionExport) []byte {
	var b strings.Builder

	b.WriteString("digraph Plan {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=\"rounded,filled\"];\n\n")
	fmt.Fprintf(&b, "  goal [label=%q, shape=ellipse, fillcolor=white];\n", exp.Session.Goal)

	for _, s := range exp.Plan {
		fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%s];\n",
			sanitizeID(s.ID),
			fmt.Sprintf("%s\n%s (%d)", s.Title, s.Kind, s.Attempts),
			fillFor(s.Status),
		)
	}

	b.WriteString("\n")
	prev := "goal"
	for _, s := range exp.Plan {
		id := sanitizeID(s.ID)
		fmt.Fprintf(&b, "  %s -> %s;\n", prev, id)
		prev = id
	}

	b.WriteString("}\n")
	return []byte(b.String())
}

func (f *DOTFormatter) formatLifecycle(lc *inspector.LifecycleExport) []byte {
	var b strings.Builder

	b.WriteString("digraph StepLifecycle {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=rounded];\n\n")
	b.WriteString("  __start [shape=point];\n")

	for _, s := range lc.States {
		attrs := []string{fmt.Sprintf("label=%q", s.Name)}
		if s.IsTerminal {
			attrs = append(attrs, `style="rounded,filled"`, "fillcolor=lightgreen", "peripheries=2")
		}
		fmt.Fprintf(&b, "  %s [%s];\n", sanitizeID(string(s.Name)), strings.Join(attrs, ", "))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "  __start -> %s;\n", sanitizeID(string(lc.Initial)))
	for _, t := range lc.Transitions {
		attr := ""
		if t.Label != "" {
			attr = fmt.Sprintf(" [label=%q]", t.Label)
		}
		fmt.Fprintf(&b, "  %s -> %s%s;\n", sanitizeID(string(t.From)), sanitizeID(string(t.To)), attr)
	}

	b.WriteString("}\n")
	return []byte(b.String())
}

func fillFor(s plan.StepStatus) string {
	switch s {
	case plan.StepCompleted:
		return "lightgreen"
	case plan.StepInProgress:
		return "lightyellow"
	default:
		return "lightgrey"
	}
}

var _ inspector.Formatter = (*DOTFormatter)(nil)
