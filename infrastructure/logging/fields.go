package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// Field applies one piece of structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Str adds a string under key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event { return e.Str(key, value) }
}

// Count adds an integer under key.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event { return e.Int(key, n) }
}

// Simulator fields.
func SessionID(id string) Field    { return Str("session_id", id) }
func Goal(goal string) Field       { return Str("goal", goal) }
func Component(name string) Field  { return Str("component", name) }
func Backend(name string) Field    { return Str("backend", name) }
func StepID(id string) Field       { return Str("step_id", id) }
func StepKind(k plan.Kind) Field   { return Str("step_kind", string(k)) }
func Status(s agent.Status) Field  { return Str("status", string(s)) }
func EventType(t event.Type) Field { return Str("event_type", string(t)) }
func Iteration(n int) Field        { return Count("iteration", n) }

// Progress adds the completed and total step counts of a plan.
func Progress(completed, total int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("steps_completed", completed).Int("steps_total", total)
	}
}

// Duration adds d in whole milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event { return e.Int64("duration_ms", d.Milliseconds()) }
}

// ErrorField adds err under "error"; a nil error adds nothing.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}
