package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/session"
	"github.com/felixgeelhaar/agentsim/infrastructure/logging"
	"github.com/felixgeelhaar/agentsim/infrastructure/observability"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/memory"
	"github.com/felixgeelhaar/agentsim/infrastructure/telemetry"
)

// DefaultInterval is the delay between automatic advancements.
const DefaultInterval = 750 * time.Millisecond

// Observer is notified after every advancement with the new state and the
// events that advancement appended.
type Observer func(state agent.State, added []event.Event)

// Driver owns a single session and schedules its advancement. The Engine
// stays stateless; the driver is the only writer of the session it holds.
type Driver struct {
	engine        *Engine
	sessions      session.Store
	publisher     event.Publisher
	metrics       telemetry.Recorder
	limiter       ratelimit.RateLimiter
	tracer        trace.Tracer
	observers     []Observer
	interval      atomic.Int64
	maxIterations int
	clock         func() time.Time
	newID         func() string

	mu      sync.Mutex
	current *session.Session
}

// DriverOption configures a driver.
type DriverOption func(*Driver)

// WithInterval sets the delay between automatic advancements.
func WithInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		dr.interval.Store(int64(d))
	}
}

// WithSessionStore sets where sessions are persisted. Defaults to memory.
func WithSessionStore(s session.Store) DriverOption {
	return func(d *Driver) {
		d.sessions = s
	}
}

// WithPublisher sets the feed new events are published to.
func WithPublisher(p event.Publisher) DriverOption {
	return func(d *Driver) {
		d.publisher = p
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r telemetry.Recorder) DriverOption {
	return func(d *Driver) {
		d.metrics = r
	}
}

// WithMaxIterations caps the advancements a single Run performs.
// Zero derives the cap from the plan length and attempt policy.
func WithMaxIterations(n int) DriverOption {
	return func(d *Driver) {
		d.maxIterations = n
	}
}

// WithObserver registers a callback invoked after each advancement.
func WithObserver(o Observer) DriverOption {
	return func(d *Driver) {
		d.observers = append(d.observers, o)
	}
}

// WithRateLimit throttles advancements per session with a token bucket.
// A non-positive rate disables limiting.
func WithRateLimit(rate, burst int) DriverOption {
	return func(d *Driver) {
		if rate <= 0 {
			d.limiter = nil
			return
		}
		if burst <= 0 {
			burst = rate
		}
		d.limiter = ratelimit.New(&ratelimit.Config{
			Rate:  rate,
			Burst: burst,
		})
	}
}

// WithRateLimiter sets a custom rate limiter.
func WithRateLimiter(l ratelimit.RateLimiter) DriverOption {
	return func(d *Driver) {
		d.limiter = l
	}
}

// WithTracer sets the tracer that spans launches and advancements.
func WithTracer(t trace.Tracer) DriverOption {
	return func(d *Driver) {
		d.tracer = t
	}
}

// WithDriverClock sets the clock used for session timestamps.
func WithDriverClock(clock func() time.Time) DriverOption {
	return func(d *Driver) {
		d.clock = clock
	}
}

// WithSessionIDs sets the session ID generator.
func WithSessionIDs(gen func() string) DriverOption {
	return func(d *Driver) {
		d.newID = gen
	}
}

// NewDriver creates a driver around an engine.
func NewDriver(engine *Engine, opts ...DriverOption) *Driver {
	d := &Driver{
		engine:  engine,
		metrics: telemetry.NoopMetricsProvider{},
		clock:   time.Now,
		newID:   uuid.NewString,
	}
	d.interval.Store(int64(DefaultInterval))
	for _, opt := range opts {
		opt(d)
	}
	if d.engine == nil {
		d.engine = defaultEngine()
	}
	if d.sessions == nil {
		d.sessions = memory.NewSessionStore()
	}
	if d.metrics == nil {
		d.metrics = telemetry.NoopMetricsProvider{}
	}
	if d.tracer == nil {
		d.tracer = observability.NewNoopProvider().Tracer()
	}
	return d
}

// Interval returns the current delay between automatic advancements.
func (d *Driver) Interval() time.Duration {
	return time.Duration(d.interval.Load())
}

// SetInterval changes the delay used by a running loop from its next tick.
func (d *Driver) SetInterval(interval time.Duration) {
	if interval < 0 {
		interval = 0
	}
	d.interval.Store(int64(interval))
}

// Launch synthesizes a plan for the goal and makes it the driver's session.
func (d *Driver) Launch(ctx context.Context, goal string, constraints []string) (_ *session.Session, err error) {
	ctx, span := d.tracer.Start(ctx, observability.SpanLaunch,
		trace.WithAttributes(observability.AttrGoal.String(goal)))
	defer func() { observability.End(span, err) }()

	state, err := d.engine.Synthesize(goal, constraints)
	if err != nil {
		return nil, err
	}

	s := session.New(d.newID(), state, d.clock())
	span.SetAttributes(observability.StateAttributes(s.ID, state)...)
	observability.AddEvents(span, state.Events)
	if err := d.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	d.mu.Lock()
	d.current = s
	d.mu.Unlock()

	d.metrics.SessionStarted(ctx)
	if err := d.publish(ctx, s.ID, state.Events); err != nil {
		return s.Clone(), err
	}
	d.notify(state, state.Events)

	completed, total := state.Progress()
	logging.Info().
		Add(logging.Component("driver")).
		Add(logging.SessionID(s.ID)).
		Add(logging.Goal(state.Goal)).
		Add(logging.Progress(completed, total)).
		Msg("session launched")

	return s.Clone(), nil
}

// Resume loads a persisted session and makes it the driver's session.
func (d *Driver) Resume(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := d.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.State.Validate(); err != nil {
		return nil, fmt.Errorf("resume %s: %w", sessionID, err)
	}

	d.mu.Lock()
	d.current = s
	d.mu.Unlock()

	if s.State.Status == agent.StatusRunning {
		d.metrics.SessionStarted(ctx)
	}

	logging.Info().
		Add(logging.Component("driver")).
		Add(logging.SessionID(s.ID)).
		Add(logging.Iteration(s.State.Iteration)).
		Add(logging.Status(s.State.Status)).
		Msg("session resumed")

	return s.Clone(), nil
}

// Step performs one advancement: the manual trigger. The new state is
// persisted and its events published before Step returns. Advancing a
// finished session returns it unchanged. If the new state cannot be
// saved, the session keeps its previous state. Observers run after the
// driver is released, so they may call back into it.
func (d *Driver) Step(ctx context.Context) (agent.State, error) {
	next, added, committed, err := d.advance(ctx)
	if committed {
		d.notify(next, added)
	}
	return next, err
}

// advance does the locked part of Step and reports whether a new state
// was committed.
func (d *Driver) advance(ctx context.Context) (agent.State, []event.Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return agent.State{}, nil, false, ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return d.current.State.Clone(), nil, false, err
	}

	prev := d.current.State
	if prev.Status != agent.StatusRunning {
		return prev.Clone(), nil, false, nil
	}

	id := d.current.ID
	if d.limiter != nil && !d.limiter.Allow(ctx, id) {
		d.metrics.RecordRateLimitHit(ctx)
		logging.Warn().
			Add(logging.Component("driver")).
			Add(logging.SessionID(id)).
			Msg("advance rate limited")
		return prev.Clone(), nil, false, ErrRateLimited
	}

	ctx, span := d.tracer.Start(ctx, observability.SpanAdvance,
		trace.WithAttributes(observability.StateAttributes(id, prev)...))

	start := time.Now()
	next := d.engine.Advance(prev)
	elapsed := time.Since(start)
	added := event.Since(next.Events, len(prev.Events))
	span.SetAttributes(observability.StateAttributes(id, next)...)
	observability.AddEvents(span, added)

	updated := d.current.Clone()
	updated.Apply(next, d.clock())
	if err := d.sessions.Update(ctx, updated); err != nil {
		d.metrics.RecordError(ctx, "persist")
		err = fmt.Errorf("update session: %w", err)
		observability.End(span, err)
		return prev.Clone(), nil, false, err
	}
	d.current = updated

	d.metrics.RecordAdvance(ctx, next.Status, elapsed)
	d.record(ctx, next, added)
	pubErr := d.publish(ctx, id, added)

	completed, total := next.Progress()
	logging.Debug().
		Add(logging.Component("driver")).
		Add(logging.SessionID(id)).
		Add(logging.Iteration(next.Iteration)).
		Add(logging.Progress(completed, total)).
		Add(logging.Count("events", len(added))).
		Add(logging.Duration(elapsed)).
		Msg("advanced")

	observability.End(span, pubErr)
	return next.Clone(), added, true, pubErr
}

// record translates the events of one advancement into metrics.
func (d *Driver) record(ctx context.Context, state agent.State, added []event.Event) {
	for _, e := range added {
		switch e.Type {
		case event.TypeStepCompleted:
			if st, ok := findStep(state.Plan, e.StepID); ok {
				d.metrics.RecordStepCompleted(ctx, st.Kind, st.Attempts)
				logging.Debug().
					Add(logging.Component("driver")).
					Add(logging.SessionID(d.current.ID)).
					Add(logging.EventType(e.Type)).
					Add(logging.StepID(st.ID)).
					Add(logging.StepKind(st.Kind)).
					Add(logging.Count("attempts", st.Attempts)).
					Msg("step completed")
			}
		case event.TypeGoalAchieved:
			d.metrics.RecordGoalAchieved(ctx, state.Iteration)
			d.metrics.SessionFinished(ctx)
			logging.Info().
				Add(logging.Component("driver")).
				Add(logging.SessionID(d.current.ID)).
				Add(logging.Iteration(state.Iteration)).
				Msg("goal achieved")
		}
	}
}

func findStep(steps []plan.Step, id string) (plan.Step, bool) {
	for _, s := range steps {
		if s.ID == id {
			return s, true
		}
	}
	return plan.Step{}, false
}

// Run advances the session on every tick until it leaves running, ctx is
// cancelled, or the iteration cap is reached. Rate-limited ticks are skipped.
func (d *Driver) Run(ctx context.Context) (agent.State, error) {
	state, ok := d.snapshot()
	if !ok {
		return agent.State{}, ErrNoSession
	}

	limit := d.maxIterations
	if limit <= 0 {
		limit = d.engine.AttemptPolicy().MaxCalls(len(state.Plan))
	}

	timer := time.NewTimer(d.Interval())
	defer timer.Stop()

	for steps := 0; ; {
		state, _ = d.snapshot()
		if state.Status != agent.StatusRunning {
			return state, nil
		}
		if steps >= limit {
			return state, ErrIterationLimit
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-timer.C:
		}
		timer.Reset(d.Interval())

		if _, err := d.Step(ctx); err != nil {
			if errors.Is(err, ErrRateLimited) {
				continue
			}
			state, _ = d.snapshot()
			return state, err
		}
		steps++
	}
}

// State returns a copy of the current state, or the zero state before
// Launch or Resume.
func (d *Driver) State() agent.State {
	s, _ := d.snapshot()
	return s
}

// Session returns a copy of the current session, or nil.
func (d *Driver) Session() *session.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.Clone()
}

func (d *Driver) snapshot() (agent.State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return agent.State{}, false
	}
	return d.current.State.Clone(), true
}

func (d *Driver) publish(ctx context.Context, sessionID string, events []event.Event) error {
	if d.publisher == nil || len(events) == 0 {
		return nil
	}
	if err := d.publisher.Publish(ctx, event.NewRecords(sessionID, events...)...); err != nil {
		d.metrics.RecordError(ctx, "publish")
		logging.Error().
			Add(logging.Component("driver")).
			Add(logging.SessionID(sessionID)).
			Add(logging.ErrorField(err)).
			Msg("publish events")
		return fmt.Errorf("publish events: %w", err)
	}
	return nil
}

func (d *Driver) notify(state agent.State, added []event.Event) {
	for _, o := range d.observers {
		o(state.Clone(), added)
	}
}
