package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

func TestNew_Exporters(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		enabled bool
		wantErr error
	}{
		{name: "default is disabled", enabled: false},
		{name: "stdout", opts: []Option{WithStdout(&bytes.Buffer{})}, enabled: true},
		{name: "otlp", opts: []Option{WithOTLP("localhost:4317", true)}, enabled: true},
		{
			name:    "unknown",
			opts:    []Option{func(c *Config) { c.Exporter = "zipkin" }},
			wantErr: ErrUnknownExporter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.opts...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if p.Tracer() == nil {
				t.Fatal("Tracer() = nil")
			}
			if p.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", p.Enabled(), tt.enabled)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			// The otlp exporter has no collector to flush to.
			_ = p.Shutdown(ctx)
		})
	}
}

func TestStdoutExporter_WritesSpans(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := New(context.Background(), WithStdout(&buf), WithServiceName("agentsim-test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, span := p.Tracer().Start(context.Background(), SpanAdvance)
	End(span, nil)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(SpanAdvance)) {
		t.Errorf("stdout output missing span name: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("agentsim-test")) {
		t.Errorf("stdout output missing service name")
	}
}

func TestSpanHelpers(t *testing.T) {
	t.Parallel()

	exp := tracetest.NewInMemoryExporter()
	p := NewWithExporter(exp)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	state := agent.State{
		Goal:      "write a report",
		Status:    agent.StatusRunning,
		Iteration: 3,
		Plan: []plan.Step{
			{ID: "s1", Status: plan.StepCompleted},
			{ID: "s2", Status: plan.StepInProgress},
		},
	}
	events := []event.Event{
		{ID: "e1", Type: event.TypeStepProgressed, Message: "progress on s2", StepID: "s2", Timestamp: ts},
		{ID: "e2", Type: event.TypeKnowledgeUpdated, Message: "noted", Timestamp: ts},
	}

	_, span := p.Tracer().Start(context.Background(), SpanAdvance)
	span.SetAttributes(StateAttributes("sess-1", state)...)
	AddEvents(span, events)
	End(span, errors.New("store down"))

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	got := spans[0]

	if got.Name != SpanAdvance {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Status.Code != codes.Error || got.Status.Description != "store down" {
		t.Errorf("Status = %+v", got.Status)
	}

	attrs := make(map[string]string)
	for _, kv := range got.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"agentsim.session.id":      "sess-1",
		"agentsim.iteration":       "3",
		"agentsim.status":          "running",
		"agentsim.steps.completed": "1",
		"agentsim.steps.total":     "2",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}

	// Two timeline events plus the recorded error.
	if len(got.Events) != 3 {
		t.Fatalf("got %d span events, want 3", len(got.Events))
	}
	if got.Events[0].Name != "progress on s2" || !got.Events[0].Time.Equal(ts) {
		t.Errorf("first event = %+v", got.Events[0])
	}
}

func TestNoopProvider(t *testing.T) {
	t.Parallel()

	p := NewNoopProvider()
	_, span := p.Tracer().Start(context.Background(), SpanLaunch)
	if span.IsRecording() {
		t.Error("noop span is recording")
	}
	AddEvents(span, []event.Event{{ID: "e1", Type: event.TypePlanCreated}})
	End(span, nil)

	if p.Enabled() {
		t.Error("Enabled() = true")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
