package application

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/policy"
	"github.com/felixgeelhaar/agentsim/infrastructure/planner"
)

// Option configures the engine.
type Option func(*EngineConfig)

// WithDecider sets the outcome decider.
func WithDecider(d policy.Decider) Option {
	return func(c *EngineConfig) {
		c.Decider = d
	}
}

// WithSource sets the random source for the default decider and findings.
func WithSource(s planner.Source) Option {
	return func(c *EngineConfig) {
		c.Source = s
	}
}

// WithSeed makes the default decider and findings reproducible.
func WithSeed(seed uint64) Option {
	return WithSource(planner.NewSeededSource(seed))
}

// WithAttemptPolicy sets the attempt bounds per step.
func WithAttemptPolicy(minAttempts, maxAttempts int) Option {
	return func(c *EngineConfig) {
		c.AttemptPolicy = policy.AttemptPolicy{MinAttempts: minAttempts, MaxAttempts: maxAttempts}
	}
}

// WithCompletionProbability sets the default decider's completion probability.
func WithCompletionProbability(p float64) Option {
	return func(c *EngineConfig) {
		c.CompletionProbability = p
	}
}

// WithClock sets the time source for event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *EngineConfig) {
		c.Clock = clock
	}
}

// WithIDGenerator sets the event ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(c *EngineConfig) {
		c.IDGenerator = gen
	}
}

// WithSynthesizer sets the plan synthesizer.
func WithSynthesizer(s *planner.Synthesizer) Option {
	return func(c *EngineConfig) {
		c.Synthesizer = s
	}
}

// WithFindings sets the findings generator.
func WithFindings(f planner.Findings) Option {
	return func(c *EngineConfig) {
		c.Findings = f
	}
}

// WithTransitions sets the step transition table.
func WithTransitions(t *policy.StepTransitions) Option {
	return func(c *EngineConfig) {
		c.Transitions = t
	}
}

// NewEngineWithOptions creates an engine with functional options.
func NewEngineWithOptions(opts ...Option) (*Engine, error) {
	config := EngineConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	return NewEngine(config)
}

var defaultEngine = sync.OnceValue(func() *Engine {
	e, err := NewEngine(EngineConfig{})
	if err != nil {
		panic(err)
	}
	return e
})

// Synthesize builds an initial state using the default engine.
func Synthesize(goal string, constraints []string) (agent.State, error) {
	return defaultEngine().Synthesize(goal, constraints)
}

// Advance advances a state using the default engine.
func Advance(state agent.State) agent.State {
	return defaultEngine().Advance(state)
}
