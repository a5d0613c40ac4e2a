// Package application provides the application layer for the agent simulator.
package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
	"github.com/felixgeelhaar/agentsim/infrastructure/planner"
	"github.com/felixgeelhaar/agentsim/infrastructure/statemachine"
)

// Engine synthesizes plans and advances agent states one unit of work at a time.
// It holds configuration only: every call receives a full state and returns a
// new one, so an Engine is safe for concurrent use as long as its Decider,
// Findings and Source are.
type Engine struct {
	synthesizer *planner.Synthesizer
	findings    planner.Findings
	decider     policy.Decider
	attempts    policy.AttemptPolicy
	lifecycle   *statemachine.Lifecycle
	clock       func() time.Time
	newID       func() string
}

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	Synthesizer *planner.Synthesizer
	Findings    planner.Findings
	Decider     policy.Decider
	// Source feeds the default decider and findings generator.
	Source planner.Source
	// AttemptPolicy bounds attempts per step. Zero value selects the defaults.
	AttemptPolicy policy.AttemptPolicy
	// CompletionProbability feeds the default decider. Zero selects the default.
	CompletionProbability float64
	Transitions           *policy.StepTransitions
	Clock                 func() time.Time
	IDGenerator           func() string
}

// NewEngine creates a new engine with the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	attempts := config.AttemptPolicy
	if attempts == (policy.AttemptPolicy{}) {
		attempts = policy.DefaultAttemptPolicy()
	}
	if err := attempts.Validate(); err != nil {
		return nil, err
	}

	// Advance relies on every default transition; a narrower table would
	// reject a valid state mid-run.
	if config.Transitions != nil {
		if err := config.Transitions.Covers(policy.DefaultStepTransitions()); err != nil {
			return nil, err
		}
	}
	lifecycle, err := statemachine.NewLifecycle(config.Transitions)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		synthesizer: config.Synthesizer,
		findings:    config.Findings,
		decider:     config.Decider,
		attempts:    attempts,
		lifecycle:   lifecycle,
		clock:       config.Clock,
		newID:       config.IDGenerator,
	}

	src := config.Source
	if src == nil {
		src = planner.GlobalSource{}
	}
	if e.synthesizer == nil {
		e.synthesizer = planner.NewSynthesizer()
	}
	if e.findings == nil {
		e.findings = planner.NewPhraseFindings(src)
	}
	if e.decider == nil {
		p := config.CompletionProbability
		if p == 0 {
			p = planner.DefaultCompletionProbability
		}
		d, err := planner.NewRandomDecider(src, p)
		if err != nil {
			return nil, err
		}
		e.decider = d
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}

	return e, nil
}

// AttemptPolicy returns the attempt bounds in effect.
func (e *Engine) AttemptPolicy() policy.AttemptPolicy {
	return e.attempts
}

// Synthesize builds the initial state for a goal: a fresh plan with every step
// pending, empty knowledge banks and a single plan-created event.
func (e *Engine) Synthesize(goal string, constraints []string) (agent.State, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return agent.State{}, agent.ErrInvalidGoal
	}
	constraints = CleanConstraints(constraints)

	s := agent.State{
		Goal:        goal,
		Constraints: constraints,
		Status:      agent.StatusRunning,
		Iteration:   0,
		Plan:        e.synthesizer.Plan(goal, constraints),
		Knowledge:   knowledge.NewBanks(),
		Events:      make([]event.Event, 0, 1),
	}
	if len(s.Plan) == 0 {
		return agent.State{}, fmt.Errorf("%w: synthesizer produced an empty plan", agent.ErrInvariantViolated)
	}

	msg := fmt.Sprintf("Planned %d steps to %s", len(s.Plan), planner.Topic(goal))
	if n := len(constraints); n > 0 {
		msg += fmt.Sprintf(" under %d constraint(s)", n)
	}
	e.emit(&s, event.TypePlanCreated, msg, "", 0)

	return s, nil
}

// Advance performs exactly one unit of work and returns the resulting state.
// The input is never modified. A state that is not running is returned as is.
func (e *Engine) Advance(state agent.State) agent.State {
	if state.Status != agent.StatusRunning {
		return state
	}

	next := state.Clone()
	iter := state.Iteration + 1

	idx, ok := next.ActiveStep()
	switch {
	case !ok:
		e.achieve(&next, iter)
	case next.Plan[idx].Status == plan.StepPending:
		e.activate(&next, idx, iter)
	default:
		e.work(&next, idx, iter)
	}

	next.Iteration = iter
	return next
}

func (e *Engine) activate(s *agent.State, idx, iter int) {
	step := &s.Plan[idx]
	e.mustTransition(step.Status, plan.StepInProgress)
	step.Status = plan.StepInProgress
	e.emit(s, event.TypeStepStarted,
		fmt.Sprintf("Started step %d of %d: %s", idx+1, len(s.Plan), step.Title), step.ID, iter)
}

func (e *Engine) work(s *agent.State, idx, iter int) {
	step := &s.Plan[idx]
	step.Attempts++

	outcome := e.attempts.Resolve(step.Attempts, e.decider.Decide(step.Clone()))
	if outcome == policy.OutcomeProgress {
		e.mustTransition(plan.StepInProgress, plan.StepInProgress)
		finding := e.findings.Generate(s.Goal, step.Clone())
		step.AddNote(finding.Note)
		e.emit(s, event.TypeStepProgressed, fmt.Sprintf("%s. %s", step.Title, finding.Note), step.ID, iter)

		for _, fr := range finding.Fragments {
			if s.Knowledge.Add(fr.Bank, fr.Text) {
				e.emit(s, event.TypeKnowledgeUpdated,
					fmt.Sprintf("Added to %s: %s", fr.Bank, strings.TrimSpace(fr.Text)), step.ID, iter)
			}
		}
		return
	}

	e.mustTransition(plan.StepInProgress, plan.StepCompleted)
	step.Status = plan.StepCompleted
	e.emit(s, event.TypeStepCompleted,
		fmt.Sprintf("Completed %s after %s", step.Title, attemptsLabel(step.Attempts)), step.ID, iter)

	if idx+1 < len(s.Plan) {
		e.activate(s, idx+1, iter)
		return
	}
	e.achieve(s, iter)
}

func (e *Engine) achieve(s *agent.State, iter int) {
	_, unfinished := s.ActiveStep()
	status, err := e.lifecycle.Achieve(s.Status, !unfinished)
	if err != nil {
		panic(err)
	}
	s.Status = status

	completed, total := s.Progress()
	e.emit(s, event.TypeGoalAchieved, fmt.Sprintf(
		"Goal achieved: %s. Completed %d of %d steps in %d iterations with %d knowledge entries.",
		s.Goal, completed, total, iter, s.Knowledge.Len()), "", iter)
}

// mustTransition panics on a transition outside the step lifecycle; the
// engine only reaches one through a corrupted state.
func (e *Engine) mustTransition(from, to plan.StepStatus) {
	if err := e.lifecycle.TransitionStep(from, to); err != nil {
		panic(err)
	}
}

// emit appends an event, clamping its timestamp so the timeline never goes backwards.
func (e *Engine) emit(s *agent.State, typ event.Type, msg, stepID string, iter int) {
	ts := e.clock()
	if last, ok := s.LastEvent(); ok && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}
	s.Events = append(s.Events, event.Event{
		ID:        e.newID(),
		Timestamp: ts,
		Type:      typ,
		Message:   msg,
		StepID:    stepID,
		Iteration: iter,
	})
}

func attemptsLabel(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

// CleanConstraints trims every constraint and drops blank ones.
func CleanConstraints(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// SplitConstraints parses free text into constraints, one per line.
func SplitConstraints(text string) []string {
	return CleanConstraints(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}
