package planner

import (
	"fmt"

	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
)

// DefaultCompletionProbability is the chance an eligible attempt completes its step.
const DefaultCompletionProbability = 0.5

// RandomDecider proposes completion with a fixed probability.
type RandomDecider struct {
	src         Source
	probability float64
}

// NewRandomDecider creates a random decider. A nil source uses GlobalSource.
func NewRandomDecider(src Source, probability float64) (*RandomDecider, error) {
	if probability < 0 || probability > 1 {
		return nil, fmt.Errorf("%w: %v", policy.ErrInvalidProbability, probability)
	}
	if src == nil {
		src = GlobalSource{}
	}
	return &RandomDecider{src: src, probability: probability}, nil
}

// Decide implements policy.Decider.
func (d *RandomDecider) Decide(_ plan.Step) policy.Outcome {
	if d.src.Float64() < d.probability {
		return policy.OutcomeComplete
	}
	return policy.OutcomeProgress
}

// Probability returns the configured completion probability.
func (d *RandomDecider) Probability() float64 {
	return d.probability
}
