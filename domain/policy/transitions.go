// Package policy provides the rules that govern how an agent advances:
// legal step transitions, attempt limits and outcome decisions.
package policy

import (
	"fmt"

	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// StepTransitions defines the allowed step status transitions.
//
// Thread Safety: StepTransitions is NOT safe for concurrent modification.
// Configure it fully before handing it to the engine; the read methods are
// safe for concurrent use afterwards.
type StepTransitions struct {
	transitions map[plan.StepStatus][]plan.StepStatus
}

// TransitionRules maps a step status to the statuses it can move to.
type TransitionRules map[plan.StepStatus][]plan.StepStatus

// NewStepTransitions creates an empty transition configuration.
func NewStepTransitions() *StepTransitions {
	return &StepTransitions{
		transitions: make(map[plan.StepStatus][]plan.StepStatus),
	}
}

// NewStepTransitionsWith creates a transition configuration from a rules map.
func NewStepTransitionsWith(rules TransitionRules) *StepTransitions {
	t := NewStepTransitions()
	for from, toStatuses := range rules {
		for _, to := range toStatuses {
			t.Allow(from, to)
		}
	}
	return t
}

// Allow permits a transition from one status to another.
func (t *StepTransitions) Allow(from, to plan.StepStatus) *StepTransitions {
	t.transitions[from] = append(t.transitions[from], to)
	return t
}

// CanTransition checks if a transition is allowed.
func (t *StepTransitions) CanTransition(from, to plan.StepStatus) bool {
	for _, s := range t.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from the given status.
func (t *StepTransitions) AllowedTransitions(from plan.StepStatus) []plan.StepStatus {
	return t.transitions[from]
}

// Covers reports the first transition allowed by required that t does not
// allow, wrapped in ErrInvalidTransition.
func (t *StepTransitions) Covers(required *StepTransitions) error {
	for _, from := range []plan.StepStatus{plan.StepPending, plan.StepInProgress, plan.StepCompleted} {
		for _, to := range required.AllowedTransitions(from) {
			if !t.CanTransition(from, to) {
				return fmt.Errorf("%w: table does not allow %s to %s", ErrInvalidTransition, from, to)
			}
		}
	}
	return nil
}

// DefaultStepTransitions returns the canonical step lifecycle:
//
//	pending → in-progress → (in-progress)* → completed
//
// Nothing leaves completed.
func DefaultStepTransitions() *StepTransitions {
	return NewStepTransitionsWith(TransitionRules{
		plan.StepPending:    {plan.StepInProgress},
		plan.StepInProgress: {plan.StepInProgress, plan.StepCompleted},
	})
}
