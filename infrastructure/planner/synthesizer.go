package planner

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// StepTemplate describes how a step of one kind is titled and described.
// Both strings are fmt formats receiving the goal topic.
type StepTemplate struct {
	Kind        plan.Kind
	Title       string
	Description string
}

// DefaultTemplates returns the canonical progression:
// understand → design → execute → validate.
func DefaultTemplates() []StepTemplate {
	return []StepTemplate{
		{
			Kind:        plan.KindResearch,
			Title:       "Research how to %s",
			Description: "Gather evidence and insights about what it takes to %s.",
		},
		{
			Kind:        plan.KindDesign,
			Title:       "Design the approach to %s",
			Description: "Narrow the focus areas and pin down requirements to %s.",
		},
		{
			Kind:        plan.KindBuild,
			Title:       "Build what it takes to %s",
			Description: "Carry out the strategy that moves the effort to %s forward.",
		},
		{
			Kind:        plan.KindValidate,
			Title:       "Validate the effort to %s",
			Description: "Check the results against the evidence gathered to %s.",
		},
	}
}

// Synthesizer turns a goal and its constraints into an ordered plan.
// Output depends only on the goal text and the number of constraints.
type Synthesizer struct {
	templates []StepTemplate
}

// NewSynthesizer creates a synthesizer. With no templates the defaults are used.
func NewSynthesizer(templates ...StepTemplate) *Synthesizer {
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	return &Synthesizer{templates: templates}
}

// Plan derives the steps for a goal. A mitigation step is appended when
// constraints are present.
func (s *Synthesizer) Plan(goal string, constraints []string) []plan.Step {
	topic := Topic(goal)
	steps := make([]plan.Step, 0, len(s.templates)+1)

	for _, tmpl := range s.templates {
		steps = append(steps, plan.NewStep(
			StepID(len(steps)+1),
			tmpl.Kind,
			fmt.Sprintf(tmpl.Title, topic),
			fmt.Sprintf(tmpl.Description, topic),
		))
	}

	if n := len(constraints); n > 0 {
		steps = append(steps, plan.NewStep(
			StepID(len(steps)+1),
			plan.KindMitigate,
			fmt.Sprintf("Mitigate %s to %s", pluralize(n, "constraint risk"), topic),
			fmt.Sprintf("Adapt the plan so the effort to %s holds up under %s.", topic, pluralize(n, "constraint")),
		))
	}

	return steps
}

// StepID returns the identifier of the n-th step (1-based).
func StepID(n int) string {
	return fmt.Sprintf("step-%d", n)
}

// Topic normalizes a goal into a phrase that reads well inside a sentence.
func Topic(goal string) string {
	t := strings.Join(strings.Fields(goal), " ")
	t = strings.TrimRight(t, ".!?;:")
	if t == "" {
		return t
	}
	// Lowercase the leading word unless it looks like an acronym.
	first, rest, _ := strings.Cut(t, " ")
	if strings.ToUpper(first) != first {
		r, size := utf8.DecodeRuneInString(first)
		first = string(unicode.ToLower(r)) + first[size:]
	}
	if rest == "" {
		return first
	}
	return first + " " + rest
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
