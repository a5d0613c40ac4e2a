package inspector

import (
	"context"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
)

// LifecycleExporter exports the step lifecycle from a transition table.
type LifecycleExporter struct {
	transitions *policy.StepTransitions
}

// NewLifecycleExporter creates a lifecycle exporter. A nil table exports
// the default lifecycle.
func NewLifecycleExporter(transitions *policy.StepTransitions) *LifecycleExporter {
	if transitions == nil {
		transitions = policy.DefaultStepTransitions()
	}
	return &LifecycleExporter{transitions: transitions}
}

// Export exports the lifecycle chart.
func (e *LifecycleExporter) Export(ctx context.Context) (*inspector.LifecycleExport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	statuses := []plan.StepStatus{plan.StepPending, plan.StepInProgress, plan.StepCompleted}
	export := &inspector.LifecycleExport{
		Initial: plan.StepPending,
	}

	for _, s := range statuses {
		terminal := len(e.transitions.AllowedTransitions(s)) == 0
		export.States = append(export.States, inspector.LifecycleState{
			Name:        s,
			Description: describeStatus(s),
			IsTerminal:  terminal,
		})
		if terminal {
			export.Terminal = append(export.Terminal, s)
		}
	}

	for _, from := range statuses {
		for _, to := range e.transitions.AllowedTransitions(from) {
			export.Transitions = append(export.Transitions, inspector.LifecycleTransition{
				From:  from,
				To:    to,
				Label: transitionLabel(from, to),
			})
		}
	}

	return export, nil
}

func describeStatus(s plan.StepStatus) string {
	switch s {
	case plan.StepPending:
		return "Waiting for earlier steps"
	case plan.StepInProgress:
		return "The single active step"
	case plan.StepCompleted:
		return "Finished; never reopened"
	default:
		return ""
	}
}

func transitionLabel(from, to plan.StepStatus) string {
	switch {
	case from == plan.StepPending && to == plan.StepInProgress:
		return "start"
	case from == to:
		return "progress"
	case to == plan.StepCompleted:
		return "complete"
	default:
		return ""
	}
}

var _ inspector.LifecycleExporter = (*LifecycleExporter)(nil)
