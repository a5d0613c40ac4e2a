package policy

import "fmt"

// Default attempt bounds.
const (
	DefaultMinAttempts = 1
	DefaultMaxAttempts = 3
)

// AttemptPolicy bounds how many attempts a step takes.
// Below MinAttempts a step always progresses; at MaxAttempts it always
// completes, which guarantees every step finishes.
type AttemptPolicy struct {
	MinAttempts int `json:"min_attempts"`
	MaxAttempts int `json:"max_attempts"`
}

// DefaultAttemptPolicy returns the default bounds.
func DefaultAttemptPolicy() AttemptPolicy {
	return AttemptPolicy{
		MinAttempts: DefaultMinAttempts,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// NewAttemptPolicy creates a validated attempt policy.
func NewAttemptPolicy(minAttempts, maxAttempts int) (AttemptPolicy, error) {
	p := AttemptPolicy{MinAttempts: minAttempts, MaxAttempts: maxAttempts}
	if err := p.Validate(); err != nil {
		return AttemptPolicy{}, err
	}
	return p, nil
}

// Validate checks the bounds are usable.
func (p AttemptPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts %d must be at least 1", ErrInvalidAttemptPolicy, p.MaxAttempts)
	}
	if p.MinAttempts < 0 {
		return fmt.Errorf("%w: min attempts %d must be non-negative", ErrInvalidAttemptPolicy, p.MinAttempts)
	}
	if p.MinAttempts > p.MaxAttempts {
		return fmt.Errorf("%w: min attempts %d exceeds max attempts %d",
			ErrInvalidAttemptPolicy, p.MinAttempts, p.MaxAttempts)
	}
	return nil
}

// Resolve turns a proposed outcome into the final one for the given attempt count.
func (p AttemptPolicy) Resolve(attempts int, proposed Outcome) Outcome {
	if attempts >= p.MaxAttempts {
		return OutcomeComplete
	}
	if attempts < p.MinAttempts {
		return OutcomeProgress
	}
	if !proposed.IsValid() {
		return OutcomeProgress
	}
	return proposed
}

// MaxCalls returns the most advancement calls a plan of n steps can take to finish.
// The first call only starts step one and does no work, so the bound is
// 1 + n*MaxAttempts, one more than the attempts alone.
func (p AttemptPolicy) MaxCalls(steps int) int {
	return 1 + steps*p.MaxAttempts
}
