package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
)

// Span names.
const (
	SpanLaunch  = "agentsim.launch"
	SpanAdvance = "agentsim.advance"
)

// Attribute keys.
const (
	AttrSessionID = attribute.Key("agentsim.session.id")
	AttrGoal      = attribute.Key("agentsim.goal")
	AttrIteration = attribute.Key("agentsim.iteration")
	AttrStatus    = attribute.Key("agentsim.status")
	AttrCompleted = attribute.Key("agentsim.steps.completed")
	AttrTotal     = attribute.Key("agentsim.steps.total")
	AttrEventType = attribute.Key("agentsim.event.type")
	AttrStepID    = attribute.Key("agentsim.step.id")
)

// StateAttributes describes a state as span attributes.
func StateAttributes(sessionID string, s agent.State) []attribute.KeyValue {
	completed, total := s.Progress()
	return []attribute.KeyValue{
		AttrSessionID.String(sessionID),
		AttrIteration.Int(s.Iteration),
		AttrStatus.String(s.Status.String()),
		AttrCompleted.Int(completed),
		AttrTotal.Int(total),
	}
}

// AddEvents mirrors timeline events onto the span.
func AddEvents(span trace.Span, events []event.Event) {
	if !span.IsRecording() {
		return
	}
	for _, e := range events {
		attrs := []attribute.KeyValue{AttrEventType.String(string(e.Type))}
		if e.StepID != "" {
			attrs = append(attrs, AttrStepID.String(e.StepID))
		}
		span.AddEvent(e.Message, trace.WithTimestamp(e.Timestamp), trace.WithAttributes(attrs...))
	}
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
