// Package statemachine provides the statekit lifecycle charts for steps and agents.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
)

// StepContext carries one step transition through the step chart.
type StepContext struct {
	Transitions *policy.StepTransitions
	From        plan.StepStatus
	To          plan.StepStatus
	Entered     plan.StepStatus
}

// AgentContext carries one agent status transition through the agent chart.
type AgentContext struct {
	PlanComplete bool
	Entered      agent.Status
}

// Step and agent state IDs as StateID type for statekit.
const (
	statePending    statekit.StateID = statekit.StateID(plan.StepPending)
	stateInProgress statekit.StateID = statekit.StateID(plan.StepInProgress)
	stateCompleted  statekit.StateID = statekit.StateID(plan.StepCompleted)

	stateRunning statekit.StateID = statekit.StateID(agent.StatusRunning)
	stateSuccess statekit.StateID = statekit.StateID(agent.StatusSuccess)
)

// Events understood by the charts.
const (
	EventStart    statekit.EventType = "START"
	EventProgress statekit.EventType = "PROGRESS"
	EventComplete statekit.EventType = "COMPLETE"
	EventAchieve  statekit.EventType = "ACHIEVE"
)

const (
	stepMachineID  = "step"
	agentMachineID = "agent"
)

// NewStepMachine creates the step lifecycle chart:
// pending → in-progress → (in-progress)* → completed.
func NewStepMachine() (*statekit.MachineConfig[*StepContext], error) {
	return statekit.NewMachine[*StepContext](stepMachineID).
		WithInitial(statePending).
		WithContext(&StepContext{}).
		WithAction("enter", enterStep).
		WithGuard("allowed", guardStepAllowed).
		State(statePending).
		On(EventStart).Target(stateInProgress).Guard("allowed").Do("enter").
		Done().
		State(stateInProgress).
		On(EventProgress).Target(stateInProgress).Guard("allowed").Do("enter").
		On(EventComplete).Target(stateCompleted).Guard("allowed").Do("enter").
		Done().
		State(stateCompleted).
		Final().
		Done().
		Build()
}

// NewAgentMachine creates the agent lifecycle chart: running → success.
func NewAgentMachine() (*statekit.MachineConfig[*AgentContext], error) {
	return statekit.NewMachine[*AgentContext](agentMachineID).
		WithInitial(stateRunning).
		WithContext(&AgentContext{}).
		WithAction("enter", enterAgent).
		WithGuard("planComplete", guardPlanComplete).
		State(stateRunning).
		On(EventAchieve).Target(stateSuccess).Guard("planComplete").Do("enter").
		Done().
		State(stateSuccess).
		Final().
		Done().
		Build()
}

// EventForStep returns the chart event that moves a step into the target status.
func EventForStep(from, to plan.StepStatus) statekit.EventType {
	switch {
	case to == plan.StepInProgress && from == plan.StepPending:
		return EventStart
	case to == plan.StepInProgress:
		return EventProgress
	case to == plan.StepCompleted:
		return EventComplete
	default:
		return statekit.EventType(to)
	}
}

// In statekit, actions receive a pointer to the context. Since our contexts are
// pointers, actions receive **Context.
func enterStep(ctx **StepContext, _ statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).Entered = (*ctx).To
}

func enterAgent(ctx **AgentContext, _ statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).Entered = agent.StatusSuccess
}

func guardStepAllowed(ctx *StepContext, _ statekit.Event) bool {
	if ctx == nil || ctx.Transitions == nil {
		return false
	}
	return ctx.Transitions.CanTransition(ctx.From, ctx.To)
}

func guardPlanComplete(ctx *AgentContext, _ statekit.Event) bool {
	return ctx != nil && ctx.PlanComplete
}
