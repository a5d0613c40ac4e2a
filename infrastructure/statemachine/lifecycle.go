package statemachine

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
)

// Lifecycle validates step and agent transitions against the statekit charts.
// The charts are built once; every transition runs on a fresh interpreter,
// so a Lifecycle is safe for concurrent use.
type Lifecycle struct {
	step        *statekit.MachineConfig[*StepContext]
	agent       *statekit.MachineConfig[*AgentContext]
	transitions *policy.StepTransitions
}

// NewLifecycle builds both charts. A nil transition table selects the default lifecycle.
func NewLifecycle(transitions *policy.StepTransitions) (*Lifecycle, error) {
	if transitions == nil {
		transitions = policy.DefaultStepTransitions()
	}
	step, err := NewStepMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to create step machine: %w", err)
	}
	ag, err := NewAgentMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to create agent machine: %w", err)
	}
	return &Lifecycle{step: step, agent: ag, transitions: transitions}, nil
}

// MustLifecycle is NewLifecycle for package initialisation; it panics on error.
func MustLifecycle(transitions *policy.StepTransitions) *Lifecycle {
	l, err := NewLifecycle(transitions)
	if err != nil {
		panic(err)
	}
	return l
}

// CanTransitionStep checks the transition table without running the chart.
func (l *Lifecycle) CanTransitionStep(from, to plan.StepStatus) bool {
	return l.transitions.CanTransition(from, to)
}

// TransitionStep moves a step from one status to another through the chart.
func (l *Lifecycle) TransitionStep(from, to plan.StepStatus) error {
	// Send panics on events the current state does not handle.
	if !l.CanTransitionStep(from, to) {
		return fmt.Errorf("%w: %s to %s", policy.ErrInvalidTransition, from, to)
	}

	ctx := &StepContext{Transitions: l.transitions, From: from, To: to}
	interp := statekit.NewInterpreter(l.step)
	interp.UpdateContext(func(c **StepContext) {
		*c = ctx
	})

	snapshot := statekit.Snapshot[*StepContext]{
		MachineID:    stepMachineID,
		CurrentState: statekit.StateID(from),
		Context:      ctx,
		CreatedAt:    time.Now(),
	}
	if err := interp.Restore(snapshot); err != nil {
		return fmt.Errorf("failed to restore step state: %w", err)
	}

	interp.Send(statekit.Event{Type: EventForStep(from, to)})

	if got := plan.StepStatus(interp.State().Value); got != to || ctx.Entered != to {
		return fmt.Errorf("%w: %s to %s ended in %s", policy.ErrInvalidTransition, from, to, got)
	}
	return nil
}

// Achieve moves a running agent to success. The plan must be complete.
func (l *Lifecycle) Achieve(from agent.Status, planComplete bool) (agent.Status, error) {
	if from != agent.StatusRunning || !planComplete {
		return from, fmt.Errorf("%w: cannot reach %s from %s (plan complete: %t)",
			policy.ErrInvalidTransition, agent.StatusSuccess, from, planComplete)
	}

	ctx := &AgentContext{PlanComplete: planComplete}
	interp := statekit.NewInterpreter(l.agent)
	interp.UpdateContext(func(c **AgentContext) {
		*c = ctx
	})

	snapshot := statekit.Snapshot[*AgentContext]{
		MachineID:    agentMachineID,
		CurrentState: statekit.StateID(from),
		Context:      ctx,
		CreatedAt:    time.Now(),
	}
	if err := interp.Restore(snapshot); err != nil {
		return from, fmt.Errorf("failed to restore agent state: %w", err)
	}

	interp.Send(statekit.Event{Type: EventAchieve})

	if !interp.Done() || ctx.Entered != agent.StatusSuccess {
		return from, fmt.Errorf("%w: agent did not reach %s", policy.ErrInvalidTransition, agent.StatusSuccess)
	}
	return agent.Status(interp.State().Value), nil
}
