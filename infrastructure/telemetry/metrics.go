// Package telemetry provides OpenTelemetry metrics for the simulator.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// Recorder receives simulation measurements from the driver.
type Recorder interface {
	RecordAdvance(ctx context.Context, status agent.Status, duration time.Duration)
	RecordStepCompleted(ctx context.Context, kind plan.Kind, attempts int)
	RecordGoalAchieved(ctx context.Context, iterations int)
	RecordRateLimitHit(ctx context.Context)
	RecordError(ctx context.Context, errorType string)
	SessionStarted(ctx context.Context)
	SessionFinished(ctx context.Context)
}

// MetricsProvider records simulation metrics through an otel meter.
type MetricsProvider struct {
	meter metric.Meter
	attrs []attribute.KeyValue

	advances       metric.Int64Counter
	stepsCompleted metric.Int64Counter
	goalsAchieved  metric.Int64Counter
	rateLimitHits  metric.Int64Counter
	errors         metric.Int64Counter

	advanceDuration metric.Float64Histogram
	stepAttempts    metric.Int64Histogram
	goalIterations  metric.Int64Histogram

	activeSessions metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/agentsim").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Attributes are attached to every measurement.
	Attributes []attribute.KeyValue
	// Provider overrides the global meter provider.
	Provider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/agentsim",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config.MeterName = DefaultMetricsConfig().MeterName
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	mp := &MetricsProvider{
		meter: provider.Meter(
			config.MeterName,
			metric.WithInstrumentationVersion(config.MeterVersion),
		),
		attrs: config.Attributes,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

func (mp *MetricsProvider) initInstruments() error {
	var err error

	if mp.advances, err = mp.meter.Int64Counter(
		"agentsim.advances",
		metric.WithDescription("Number of state advancements"),
		metric.WithUnit("{advance}"),
	); err != nil {
		return err
	}

	if mp.stepsCompleted, err = mp.meter.Int64Counter(
		"agentsim.steps.completed",
		metric.WithDescription("Number of plan steps completed"),
		metric.WithUnit("{step}"),
	); err != nil {
		return err
	}

	if mp.goalsAchieved, err = mp.meter.Int64Counter(
		"agentsim.goals.achieved",
		metric.WithDescription("Number of sessions that reached success"),
		metric.WithUnit("{goal}"),
	); err != nil {
		return err
	}

	if mp.rateLimitHits, err = mp.meter.Int64Counter(
		"agentsim.ratelimit.hits",
		metric.WithDescription("Number of throttled manual advancements"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return err
	}

	if mp.errors, err = mp.meter.Int64Counter(
		"agentsim.errors",
		metric.WithDescription("Number of driver errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}

	if mp.advanceDuration, err = mp.meter.Float64Histogram(
		"agentsim.advance.duration",
		metric.WithDescription("Duration of a single advancement"),
		metric.WithUnit("ms"),
	); err != nil {
		return err
	}

	if mp.stepAttempts, err = mp.meter.Int64Histogram(
		"agentsim.step.attempts",
		metric.WithDescription("Attempts a step took to complete"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return err
	}

	if mp.goalIterations, err = mp.meter.Int64Histogram(
		"agentsim.goal.iterations",
		metric.WithDescription("Iterations a session took to reach success"),
		metric.WithUnit("{iteration}"),
	); err != nil {
		return err
	}

	mp.activeSessions, err = mp.meter.Int64UpDownCounter(
		"agentsim.sessions.active",
		metric.WithDescription("Number of sessions currently being driven"),
		metric.WithUnit("{session}"),
	)
	return err
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

func (mp *MetricsProvider) with(extra ...attribute.KeyValue) metric.MeasurementOption {
	if len(mp.attrs) == 0 {
		return metric.WithAttributes(extra...)
	}
	all := make([]attribute.KeyValue, 0, len(mp.attrs)+len(extra))
	all = append(all, mp.attrs...)
	all = append(all, extra...)
	return metric.WithAttributes(all...)
}

// RecordAdvance records one advancement and the status it produced.
func (mp *MetricsProvider) RecordAdvance(ctx context.Context, status agent.Status, duration time.Duration) {
	opt := mp.with(attribute.String("agent.status", string(status)))
	mp.advances.Add(ctx, 1, opt)
	mp.advanceDuration.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// RecordStepCompleted records a finished plan step.
func (mp *MetricsProvider) RecordStepCompleted(ctx context.Context, kind plan.Kind, attempts int) {
	opt := mp.with(attribute.String("step.kind", string(kind)))
	mp.stepsCompleted.Add(ctx, 1, opt)
	mp.stepAttempts.Record(ctx, int64(attempts), opt)
}

// RecordGoalAchieved records a session reaching success.
func (mp *MetricsProvider) RecordGoalAchieved(ctx context.Context, iterations int) {
	mp.goalsAchieved.Add(ctx, 1, mp.with())
	mp.goalIterations.Record(ctx, int64(iterations), mp.with())
}

// RecordRateLimitHit records a throttled advancement.
func (mp *MetricsProvider) RecordRateLimitHit(ctx context.Context) {
	mp.rateLimitHits.Add(ctx, 1, mp.with())
}

// RecordError records a driver error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string) {
	mp.errors.Add(ctx, 1, mp.with(attribute.String("error.type", errorType)))
}

// SessionStarted increments the active sessions gauge.
func (mp *MetricsProvider) SessionStarted(ctx context.Context) {
	mp.activeSessions.Add(ctx, 1, mp.with())
}

// SessionFinished decrements the active sessions gauge.
func (mp *MetricsProvider) SessionFinished(ctx context.Context) {
	mp.activeSessions.Add(ctx, -1, mp.with())
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordAdvance is a no-op.
func (NoopMetricsProvider) RecordAdvance(context.Context, agent.Status, time.Duration) {}

// RecordStepCompleted is a no-op.
func (NoopMetricsProvider) RecordStepCompleted(context.Context, plan.Kind, int) {}

// RecordGoalAchieved is a no-op.
func (NoopMetricsProvider) RecordGoalAchieved(context.Context, int) {}

// RecordRateLimitHit is a no-op.
func (NoopMetricsProvider) RecordRateLimitHit(context.Context) {}

// RecordError is a no-op.
func (NoopMetricsProvider) RecordError(context.Context, string) {}

// SessionStarted is a no-op.
func (NoopMetricsProvider) SessionStarted(context.Context) {}

// SessionFinished is a no-op.
func (NoopMetricsProvider) SessionFinished(context.Context) {}

var (
	_ Recorder = (*MetricsProvider)(nil)
	_ Recorder = NoopMetricsProvider{}
)
