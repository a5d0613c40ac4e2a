package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	domainconfig "github.com/felixgeelhaar/agentsim/domain/config"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/session"
	"github.com/felixgeelhaar/agentsim/infrastructure/logging"
	"github.com/felixgeelhaar/agentsim/infrastructure/observability"
	"github.com/felixgeelhaar/agentsim/infrastructure/resilience"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/badger"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/dynamodb"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/memory"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/mongodb"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/redis"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/agentsim/infrastructure/telemetry"
)

// Builder turns a SimulatorConfig into runtime components.
type Builder struct {
	config *domainconfig.SimulatorConfig
}

// NewBuilder creates a new configuration builder.
func NewBuilder(config *domainconfig.SimulatorConfig) *Builder {
	return &Builder{config: config}
}

// Stores holds the persistence selected by the storage section.
type Stores struct {
	// Sessions persists driver sessions.
	Sessions session.Store
	// Events carries the live event feed. Backends without a native event
	// store fall back to memory.
	Events event.Store
	// Backend is the resolved backend name.
	Backend string

	closers []func() error
}

// Close releases every resource opened by the builder, newest first.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Stores) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// OpenStores connects to the configured backend.
func (b *Builder) OpenStores(ctx context.Context) (*Stores, error) {
	sc := b.config.Storage
	backend := sc.Backend
	if backend == "" {
		backend = domainconfig.BackendMemory
	}

	stores := &Stores{Backend: backend}
	var err error
	switch backend {
	case domainconfig.BackendMemory:
		stores.Sessions = memory.NewSessionStore()

	case domainconfig.BackendSQLite:
		var s *sqlite.SessionStore
		if s, err = sqlite.NewSessionStore(sqlite.DefaultConfig(), sqlite.WithDSN(sc.DSN), sqlite.WithAutoMigrate()); err != nil {
			break
		}
		stores.onClose(s.Close)
		stores.Sessions = s
		var es *sqlite.EventStore
		if es, err = sqlite.NewEventStoreFromDB(s.DB()); err != nil {
			break
		}
		stores.Events = es

	case domainconfig.BackendBadger:
		opts := []badger.Option{badger.WithDir(sc.Dir), badger.WithRetention(sc.Retention.Duration())}
		if sc.KeyPrefix != "" {
			opts = append(opts, badger.WithKeyPrefix(sc.KeyPrefix))
		}
		var s *badger.SessionStore
		if s, err = badger.NewSessionStore(badger.DefaultConfig(), opts...); err != nil {
			break
		}
		stores.onClose(s.Close)
		stores.Sessions = s
		stores.Events = badger.NewEventStoreFromDB(s.DB(), sc.KeyPrefix)

	case domainconfig.BackendRedis:
		var s *redis.SessionStore
		s, err = redis.NewSessionStore(redis.DefaultConfig(),
			redis.WithAddress(sc.Address),
			redis.WithPassword(sc.Password),
			redis.WithKeyPrefix(sc.KeyPrefix),
			redis.WithRetention(sc.Retention.Duration()),
		)
		if err != nil {
			break
		}
		stores.onClose(s.Close)
		stores.Sessions = s

	case domainconfig.BackendPostgres:
		pc := postgres.DefaultConfig()
		pc.DSN = sc.DSN
		if sc.Schema != "" {
			pc.Schema = sc.Schema
		}
		pool, perr := postgres.Connect(ctx, pc)
		if perr != nil {
			err = perr
			break
		}
		stores.onClose(func() error { pool.Close(); return nil })
		s := postgres.NewSessionStore(pool, pc.Schema)
		if err = s.Migrate(ctx); err != nil {
			break
		}
		es := postgres.NewEventStore(pool, pc.Schema)
		if err = es.Migrate(ctx); err != nil {
			break
		}
		stores.onClose(es.Close)
		stores.Sessions, stores.Events = s, es

	case domainconfig.BackendMongoDB:
		mc := mongodb.DefaultConfig()
		mc.URI = sc.URI
		if sc.Database != "" {
			mc.Database = sc.Database
		}
		client, merr := mongodb.Connect(ctx, mc)
		if merr != nil {
			err = merr
			break
		}
		stores.onClose(func() error { return client.Disconnect(context.Background()) })
		s := mongodb.NewSessionStore(client, mc)
		if err = s.EnsureIndexes(ctx); err != nil {
			break
		}
		stores.Sessions = s

	case domainconfig.BackendDynamoDB:
		opts := []dynamodb.ConfigOption{}
		if sc.Region != "" {
			opts = append(opts, dynamodb.WithRegion(sc.Region))
		}
		if sc.Endpoint != "" {
			opts = append(opts, dynamodb.WithEndpoint(sc.Endpoint))
		}
		if sc.Table != "" {
			opts = append(opts, dynamodb.WithSessionsTableName(sc.Table))
		}
		if sc.Retention > 0 {
			opts = append(opts, dynamodb.WithRetention(sc.Retention.Duration()))
		}
		client, derr := dynamodb.NewClient(ctx, opts...)
		if derr != nil {
			err = derr
			break
		}
		if sc.Endpoint != "" {
			// Local endpoints start empty.
			if err = client.CreateSessionsTable(ctx); err != nil {
				break
			}
		}
		stores.Sessions = dynamodb.NewSessionStore(client)

	default:
		err = fmt.Errorf("%w: unknown storage backend %q", domainconfig.ErrValidationFailed, backend)
	}
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("opening %s store: %w", backend, err)
	}

	if stores.Events == nil {
		stores.Events = memory.NewEventStore()
	}

	r := b.config.Resilience
	if r.Retry.Enabled || r.CircuitBreaker.Enabled {
		stores.Sessions = resilience.NewSessionStore(stores.Sessions, b.ResilienceConfig())
	}

	logging.Debug().
		Add(logging.Component("config")).
		Add(logging.Backend(backend)).
		Msg("stores opened")

	return stores, nil
}

// ResilienceConfig maps the resilience section onto the store decorator.
// A disabled retry makes one attempt and a disabled breaker never trips.
func (b *Builder) ResilienceConfig() resilience.Config {
	r := b.config.Resilience
	opts := []resilience.Option{resilience.WithoutRetry(), resilience.WithoutBreaker()}
	if r.Retry.Enabled {
		opts = append(opts, resilience.WithRetry(r.Retry.MaxAttempts, r.Retry.InitialDelay.Duration(), r.Retry.Multiplier))
	}
	if r.CircuitBreaker.Enabled {
		opts = append(opts, resilience.WithBreaker(r.CircuitBreaker.Threshold, r.CircuitBreaker.Timeout.Duration()))
	}
	return resilience.NewConfig(opts...)
}

// LoggingConfig maps the logging section onto the logger. Output goes to stderr.
func (b *Builder) LoggingConfig() logging.Config {
	return logging.CLIConfig(b.config.Logging.Level, b.config.Logging.Format)
}

// Metrics returns the driver's recorder and the func that flushes it on
// shutdown. Measurements go to the configured exporter; disabled telemetry
// or an enabled one without an exporter records nothing.
func (b *Builder) Metrics(ctx context.Context, version string) (telemetry.Recorder, func(context.Context) error, error) {
	t := b.config.Telemetry
	noop := func(context.Context) error { return nil }
	if !t.Enabled {
		return telemetry.NoopMetricsProvider{}, noop, nil
	}

	switch t.Metrics.Exporter {
	case "", "none":
		logging.Warn().
			Add(logging.Component("config")).
			Msg("telemetry enabled without a metrics exporter; measurements are discarded")
		return telemetry.NoopMetricsProvider{}, noop, nil
	case "otlp":
	default:
		return nil, nil, fmt.Errorf("%w: %q", telemetry.ErrUnknownExporter, t.Metrics.Exporter)
	}

	pipeline, err := telemetry.NewPipeline(ctx, telemetry.ExportConfig{
		ServiceName:    b.config.Name,
		ServiceVersion: version,
		Endpoint:       t.Metrics.Endpoint,
		Insecure:       t.Metrics.Insecure,
		Interval:       t.Metrics.Interval.Duration(),
	})
	if err != nil {
		return nil, nil, err
	}
	mc := telemetry.DefaultMetricsConfig()
	if t.MeterName != "" {
		mc.MeterName = t.MeterName
	}
	mc.MeterVersion = version
	return pipeline.Recorder(mc), pipeline.Shutdown, nil
}

// TracerProvider maps the tracing section onto a span exporter. The stdout
// exporter writes to w.
func (b *Builder) TracerProvider(ctx context.Context, version string, w io.Writer) (*observability.Provider, error) {
	t := b.config.Telemetry.Tracing
	opts := []observability.Option{
		observability.WithServiceName(b.config.Name),
		observability.WithServiceVersion(version),
		observability.WithSampleRate(t.SampleRate),
	}
	switch t.Exporter {
	case "", "none":
		return observability.NewNoopProvider(), nil
	case "stdout":
		opts = append(opts, observability.WithStdout(w))
	case "otlp":
		opts = append(opts, observability.WithOTLP(t.Endpoint, t.Insecure))
	default:
		return nil, fmt.Errorf("%w: %q", observability.ErrUnknownExporter, t.Exporter)
	}
	return observability.New(ctx, opts...)
}
