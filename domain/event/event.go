// Package event provides the timeline model and the interfaces drivers use to
// fan timeline entries out to observers.
package event

import "time"

// Event is one immutable entry in an agent's timeline.
type Event struct {
	// ID is unique within the run.
	ID string `json:"id"`

	// Timestamp is when the engine generated the event.
	Timestamp time.Time `json:"timestamp"`

	// Type classifies what happened.
	Type Type `json:"type"`

	// Message is a human-readable summary.
	Message string `json:"message"`

	// StepID references the step the event concerns, if any.
	StepID string `json:"step_id,omitempty"`

	// Iteration is the agent iteration that produced the event.
	Iteration int `json:"iteration"`
}

// Since returns the events appended after the first n.
// It is how a driver finds what one advancement added.
func Since(events []Event, n int) []Event {
	if n < 0 {
		n = 0
	}
	if n >= len(events) {
		return []Event{}
	}
	out := make([]Event, len(events)-n)
	copy(out, events[n:])
	return out
}

// Last returns the most recent event.
func Last(events []Event) (Event, bool) {
	if len(events) == 0 {
		return Event{}, false
	}
	return events[len(events)-1], true
}

// Record is an event as stored in a driver-side feed.
type Record struct {
	// SessionID identifies the session the event belongs to.
	SessionID string `json:"session_id"`

	// Sequence is the ordering number within the session's feed.
	Sequence uint64 `json:"sequence"`

	Event Event `json:"event"`
}

// NewRecords wraps events for a session feed. Sequences are assigned by the store.
func NewRecords(sessionID string, events ...Event) []Record {
	out := make([]Record, len(events))
	for i, e := range events {
		out[i] = Record{SessionID: sessionID, Event: e}
	}
	return out
}
