package agent

import (
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// State is the complete simulation snapshot of one agent.
// It is a value: the engine receives a State and returns a new one, and
// never retains either.
type State struct {
	Goal        string          `json:"goal"`
	Constraints []string        `json:"constraints"`
	Status      Status          `json:"status"`
	Iteration   int             `json:"iteration"`
	Plan        []plan.Step     `json:"plan"`
	Knowledge   knowledge.Banks `json:"knowledge"`
	Events      []event.Event   `json:"events"`
}

// IsTerminal returns true if the agent has finished.
func (s State) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// ActiveStep returns the index of the first step that is not completed.
func (s State) ActiveStep() (int, bool) {
	return plan.ActiveIndex(s.Plan)
}

// Progress returns the number of completed steps and the plan length.
func (s State) Progress() (completed, total int) {
	return plan.CountByStatus(s.Plan, plan.StepCompleted), len(s.Plan)
}

// LastEvent returns the most recent timeline event.
func (s State) LastEvent() (event.Event, bool) {
	return event.Last(s.Events)
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s State) Clone() State {
	c := s
	if s.Constraints != nil {
		c.Constraints = make([]string, len(s.Constraints))
		copy(c.Constraints, s.Constraints)
	}
	c.Plan = plan.Clone(s.Plan)
	c.Knowledge = s.Knowledge.Clone()
	if s.Events != nil {
		c.Events = make([]event.Event, len(s.Events))
		copy(c.Events, s.Events)
	}
	return c
}
