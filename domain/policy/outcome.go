package policy

import "github.com/felixgeelhaar/agentsim/domain/plan"

// Outcome is the result of working an in-progress step once.
type Outcome string

const (
	OutcomeProgress Outcome = "progress" // Step gains a finding and stays active
	OutcomeComplete Outcome = "complete" // Step is done
)

// IsValid returns true if the outcome is recognized.
func (o Outcome) IsValid() bool {
	return o == OutcomeProgress || o == OutcomeComplete
}

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// Decider proposes the outcome of one attempt on a step.
// The step passed in already carries the incremented attempt count.
// Implementations used from concurrent callers must be safe for concurrent use.
type Decider interface {
	Decide(step plan.Step) Outcome
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(step plan.Step) Outcome

// Decide calls f(step).
func (f DeciderFunc) Decide(step plan.Step) Outcome {
	return f(step)
}

// Always returns a decider that proposes the same outcome every time.
func Always(o Outcome) Decider {
	return DeciderFunc(func(plan.Step) Outcome { return o })
}
