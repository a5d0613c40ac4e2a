package planner

import (
	"sync"

	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
)

// ScriptStep defines an outcome and, optionally, the step it is meant for.
type ScriptStep struct {
	// ExpectKind asserts the active step has this kind (empty matches any).
	ExpectKind plan.Kind

	// Outcome is the outcome to return.
	Outcome policy.Outcome
}

// ScriptedDecider returns a predefined sequence of outcomes for deterministic runs.
// A step whose ExpectKind does not match is not consumed; the fallback answers instead
// and the mismatch is counted.
type ScriptedDecider struct {
	steps      []ScriptStep
	index      int
	mismatches int
	fallback   policy.Decider
	mu         sync.Mutex
}

// NewScriptedDecider creates a scripted decider with the given outcomes.
// Once exhausted it proposes completion.
func NewScriptedDecider(outcomes ...policy.Outcome) *ScriptedDecider {
	steps := make([]ScriptStep, len(outcomes))
	for i, o := range outcomes {
		steps[i] = ScriptStep{Outcome: o}
	}
	return NewScriptedDeciderSteps(steps...)
}

// NewScriptedDeciderSteps creates a scripted decider with kind expectations.
func NewScriptedDeciderSteps(steps ...ScriptStep) *ScriptedDecider {
	return &ScriptedDecider{
		steps:    steps,
		fallback: policy.Always(policy.OutcomeComplete),
	}
}

// OnExhausted sets the decider used once the script runs out or mismatches.
func (d *ScriptedDecider) OnExhausted(fallback policy.Decider) *ScriptedDecider {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fallback
	return d
}

// Decide implements policy.Decider.
func (d *ScriptedDecider) Decide(step plan.Step) policy.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.index >= len(d.steps) {
		return d.fallback.Decide(step)
	}

	next := d.steps[d.index]
	if next.ExpectKind != "" && next.ExpectKind != step.Kind {
		d.mismatches++
		return d.fallback.Decide(step)
	}

	d.index++
	return next.Outcome
}

// Reset rewinds the script to the beginning.
func (d *ScriptedDecider) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.index = 0
	d.mismatches = 0
}

// Remaining returns the number of unconsumed outcomes.
func (d *ScriptedDecider) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.steps) - d.index
}

// Mismatches returns how many times the active step did not match the script.
func (d *ScriptedDecider) Mismatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mismatches
}

// IsComplete returns true if all scripted outcomes have been consumed.
func (d *ScriptedDecider) IsComplete() bool {
	return d.Remaining() == 0
}
