package agent

import "errors"

// Domain errors for the agent simulation.
var (
	// ErrInvalidGoal indicates a blank goal was given to the synthesizer.
	ErrInvalidGoal = errors.New("invalid goal: goal must not be blank")

	// ErrInvariantViolated indicates a state breaks a structural invariant.
	ErrInvariantViolated = errors.New("agent state invariant violated")
)
