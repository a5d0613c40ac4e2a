package application

import "errors"

// Driver errors.
var (
	// ErrNoSession indicates the driver has not launched or resumed a session.
	ErrNoSession = errors.New("no active session")

	// ErrIterationLimit indicates Run stopped before the agent finished.
	ErrIterationLimit = errors.New("iteration limit reached")

	// ErrRateLimited indicates a manual advance was refused by the rate limiter.
	ErrRateLimited = errors.New("advance rate limited")
)
