package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// setupTestMetrics wires a provider to a private manual reader.
func setupTestMetrics(t *testing.T) (*metric.ManualReader, *MetricsProvider) {
	t.Helper()

	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	config := DefaultMetricsConfig()
	config.Provider = provider
	config.Attributes = []attribute.KeyValue{attribute.String("env", "test")}
	mp := NewMetricsProvider(config)
	if mp.Error() != nil {
		t.Fatalf("failed to create metrics provider: %v", mp.Error())
	}
	return reader, mp
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumInt(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()

	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsProvider_RecordAdvance(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordAdvance(ctx, agent.StatusRunning, 2*time.Millisecond)
	mp.RecordAdvance(ctx, agent.StatusRunning, time.Millisecond)
	mp.RecordAdvance(ctx, agent.StatusSuccess, time.Millisecond)

	metrics := collect(t, reader)
	if got := sumInt(t, metrics["agentsim.advances"]); got != 3 {
		t.Errorf("agentsim.advances = %d, want 3", got)
	}

	sum := metrics["agentsim.advances"].(metricdata.Sum[int64])
	if len(sum.DataPoints) != 2 {
		t.Errorf("expected one data point per status, got %d", len(sum.DataPoints))
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value("env"); !ok || v.AsString() != "test" {
			t.Errorf("data point missing default attribute: %v", dp.Attributes)
		}
	}

	hist, ok := metrics["agentsim.advance.duration"].(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("agentsim.advance.duration has type %T", metrics["agentsim.advance.duration"])
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("duration samples = %d, want 3", count)
	}
}

func TestMetricsProvider_StepsAndGoals(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordStepCompleted(ctx, plan.KindResearch, 2)
	mp.RecordStepCompleted(ctx, plan.KindBuild, 1)
	mp.RecordGoalAchieved(ctx, 7)

	metrics := collect(t, reader)
	if got := sumInt(t, metrics["agentsim.steps.completed"]); got != 2 {
		t.Errorf("agentsim.steps.completed = %d, want 2", got)
	}
	if got := sumInt(t, metrics["agentsim.goals.achieved"]); got != 1 {
		t.Errorf("agentsim.goals.achieved = %d, want 1", got)
	}

	hist, ok := metrics["agentsim.goal.iterations"].(metricdata.Histogram[int64])
	if !ok {
		t.Fatalf("agentsim.goal.iterations has type %T", metrics["agentsim.goal.iterations"])
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 7 {
		t.Errorf("goal iterations = %+v, want one sample of 7", hist.DataPoints)
	}
	if _, ok := metrics["agentsim.step.attempts"]; !ok {
		t.Error("agentsim.step.attempts metric not found")
	}
}

func TestMetricsProvider_ActiveSessions(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.SessionStarted(ctx)
	mp.SessionStarted(ctx)
	mp.SessionFinished(ctx)

	if got := sumInt(t, collect(t, reader)["agentsim.sessions.active"]); got != 1 {
		t.Errorf("agentsim.sessions.active = %d, want 1", got)
	}
}

func TestMetricsProvider_ErrorsAndRateLimits(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordError(ctx, "store")
	mp.RecordError(ctx, "publish")
	mp.RecordRateLimitHit(ctx)

	metrics := collect(t, reader)
	if got := sumInt(t, metrics["agentsim.errors"]); got != 2 {
		t.Errorf("agentsim.errors = %d, want 2", got)
	}
	if got := sumInt(t, metrics["agentsim.ratelimit.hits"]); got != 1 {
		t.Errorf("agentsim.ratelimit.hits = %d, want 1", got)
	}
}

func TestNoopMetricsProvider(t *testing.T) {
	t.Parallel()

	var noop Recorder = NoopMetricsProvider{}
	ctx := context.Background()

	noop.RecordAdvance(ctx, agent.StatusRunning, time.Second)
	noop.RecordStepCompleted(ctx, plan.KindBuild, 1)
	noop.RecordGoalAchieved(ctx, 3)
	noop.RecordRateLimitHit(ctx)
	noop.RecordError(ctx, "x")
	noop.SessionStarted(ctx)
	noop.SessionFinished(ctx)
}

func TestDefaultMetricsConfig(t *testing.T) {
	t.Parallel()

	config := DefaultMetricsConfig()
	if config.MeterName == "" {
		t.Error("MeterName should not be empty")
	}
	if config.MeterVersion == "" {
		t.Error("MeterVersion should not be empty")
	}
}

func TestPipeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := metric.NewManualReader()
	p, err := NewPipeline(ctx, ExportConfig{ServiceName: "agentsim", ServiceVersion: "test", Reader: reader})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	mp := p.Recorder(DefaultMetricsConfig())
	if mp.Error() != nil {
		t.Fatalf("Recorder() error = %v", mp.Error())
	}
	mp.RecordAdvance(ctx, agent.StatusRunning, time.Millisecond)
	mp.RecordGoalAchieved(ctx, 5)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if v, ok := rm.Resource.Set().Value("service.name"); !ok || v.AsString() != "agentsim" {
		t.Errorf("service.name = %v", v)
	}
	metrics := collect(t, reader)
	if got := sumInt(t, metrics["agentsim.advances"]); got != 1 {
		t.Errorf("agentsim.advances = %d, want 1", got)
	}
	if got := sumInt(t, metrics["agentsim.goals.achieved"]); got != 1 {
		t.Errorf("agentsim.goals.achieved = %d, want 1", got)
	}

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewPipeline_NoEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(context.Background(), ExportConfig{}); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("NewPipeline() error = %v, want ErrNoEndpoint", err)
	}
}
