package policy

import "errors"

// Domain errors for advancement policy.
var (
	// ErrInvalidAttemptPolicy indicates attempt bounds that cannot terminate.
	ErrInvalidAttemptPolicy = errors.New("invalid attempt policy")

	// ErrInvalidTransition indicates a step transition outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrInvalidProbability indicates a probability outside [0, 1].
	ErrInvalidProbability = errors.New("probability must be between 0 and 1")
)
