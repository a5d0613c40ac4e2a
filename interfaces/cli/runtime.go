package cli

import (
	"context"
	"errors"
	"time"

	agentsim "github.com/felixgeelhaar/agentsim"
	"github.com/felixgeelhaar/agentsim/application"
	"github.com/felixgeelhaar/agentsim/domain/config"
	infraconfig "github.com/felixgeelhaar/agentsim/infrastructure/config"
	eventpub "github.com/felixgeelhaar/agentsim/infrastructure/event"
	"github.com/felixgeelhaar/agentsim/infrastructure/inspector"
	"github.com/felixgeelhaar/agentsim/infrastructure/observability"
	"github.com/felixgeelhaar/agentsim/infrastructure/telemetry"
)

// runtime is the set of components a command works with.
type runtime struct {
	config    *config.SimulatorConfig
	stores    *infraconfig.Stores
	engine    *application.Engine
	metrics   telemetry.Recorder
	flush     func(context.Context) error
	publisher *eventpub.Publisher
	tracing   *observability.Provider
}

// shutdownTimeout bounds the final span flush.
const shutdownTimeout = 5 * time.Second

// openRuntime connects the configured stores and builds an engine.
// A non-zero seed overrides the configured one.
func (a *App) openRuntime(ctx context.Context, seed uint64) (*runtime, error) {
	engine, err := newEngine(a.config, seed)
	if err != nil {
		return nil, err
	}

	builder := infraconfig.NewBuilder(a.config)
	tracing, err := builder.TracerProvider(ctx, agentsim.Version, a.stderr)
	if err != nil {
		return nil, err
	}
	metrics, flush, err := builder.Metrics(ctx, agentsim.Version)
	if err != nil {
		return nil, errors.Join(err, tracing.Shutdown(ctx))
	}
	stores, err := builder.OpenStores(ctx)
	if err != nil {
		return nil, errors.Join(err, tracing.Shutdown(ctx), flush(ctx))
	}

	return &runtime{
		config:    a.config,
		stores:    stores,
		engine:    engine,
		metrics:   metrics,
		flush:     flush,
		publisher: eventpub.NewPublisher(stores.Events),
		tracing:   tracing,
	}, nil
}

// newEngine maps the engine section onto engine options.
func newEngine(cfg *config.SimulatorConfig, seed uint64) (*application.Engine, error) {
	e := cfg.Engine
	opts := []application.Option{
		application.WithAttemptPolicy(e.MinAttempts, e.MaxAttempts),
		application.WithCompletionProbability(e.CompletionProbability),
	}
	if seed == 0 {
		seed = e.Seed
	}
	if seed != 0 {
		opts = append(opts, application.WithSeed(seed))
	}
	return application.NewEngineWithOptions(opts...)
}

// newDriver creates a driver wired to the runtime's stores and metrics.
func (r *runtime) newDriver(opts ...application.DriverOption) *application.Driver {
	d := r.config.Driver
	base := []application.DriverOption{
		application.WithSessionStore(r.stores.Sessions),
		application.WithPublisher(r.publisher),
		application.WithMetrics(r.metrics),
		application.WithTracer(r.tracing.Tracer()),
		application.WithInterval(d.Interval.Duration()),
		application.WithMaxIterations(d.MaxIterations),
		application.WithRateLimit(d.RateLimit, d.RateLimit),
	}
	return application.NewDriver(r.engine, append(base, opts...)...)
}

// inspection builds the export service over the runtime's session store.
func (r *runtime) inspection() *application.InspectionService {
	return application.NewInspectionService(inspector.NewDefaultInspector(
		inspector.NewSessionExporter(r.stores.Sessions),
		inspector.NewLifecycleExporter(nil),
	))
}

// Close flushes the publisher, spans and metrics, then releases the stores.
func (r *runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(r.publisher.Close(), r.tracing.Shutdown(ctx), r.flush(ctx), r.stores.Close())
}
