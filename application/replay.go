package application

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// Replay reads a session's published feed back for review.
type Replay struct {
	events event.Store
}

// NewReplay creates a new replay over an event store.
func NewReplay(events event.Store) *Replay {
	return &Replay{
		events: events,
	}
}

// Timeline loads the full feed of a session.
func (r *Replay) Timeline(ctx context.Context, sessionID string) (*Timeline, error) {
	return r.TimelineFrom(ctx, sessionID, 0)
}

// TimelineFrom loads the feed of a session starting at a sequence number.
func (r *Replay) TimelineFrom(ctx context.Context, sessionID string, fromSeq uint64) (*Timeline, error) {
	records, err := r.events.LoadFrom(ctx, sessionID, fromSeq)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(records) == 0 {
		return nil, session.ErrSessionNotFound
	}

	events := make([]event.Event, len(records))
	for i, rec := range records {
		events[i] = rec.Event
	}
	return NewTimeline(events), nil
}

// NewIterator creates an iterator over a session's feed.
func (r *Replay) NewIterator(ctx context.Context, sessionID string) (*EventIterator, error) {
	tl, err := r.Timeline(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &EventIterator{events: tl.events}, nil
}

// EventIterator steps through events one at a time.
type EventIterator struct {
	events []event.Event
	index  int
}

// Next returns the next event, or nil if done.
func (it *EventIterator) Next() *event.Event {
	if it.index >= len(it.events) {
		return nil
	}
	e := &it.events[it.index]
	it.index++
	return e
}

// Peek returns the next event without advancing.
func (it *EventIterator) Peek() *event.Event {
	if it.index >= len(it.events) {
		return nil
	}
	return &it.events[it.index]
}

// Reset returns to the beginning.
func (it *EventIterator) Reset() {
	it.index = 0
}

// Len returns the total number of events.
func (it *EventIterator) Len() int {
	return len(it.events)
}

// Index returns the current position.
func (it *EventIterator) Index() int {
	return it.index
}

// Timeline provides a time-based view of events.
type Timeline struct {
	events []event.Event
}

// NewTimeline wraps events, e.g. a state's own timeline.
func NewTimeline(events []event.Event) *Timeline {
	out := make([]event.Event, len(events))
	copy(out, events)
	return &Timeline{events: out}
}

// Events returns a copy of the events.
func (tl *Timeline) Events() []event.Event {
	return event.Since(tl.events, 0)
}

// Duration returns the time between the first and last event.
func (tl *Timeline) Duration() time.Duration {
	if len(tl.events) < 2 {
		return 0
	}
	return tl.events[len(tl.events)-1].Timestamp.Sub(tl.events[0].Timestamp)
}

// EventsInRange returns events within a time range. A zero bound is open.
func (tl *Timeline) EventsInRange(from, to time.Time) []event.Event {
	var result []event.Event
	for _, e := range tl.events {
		if (from.IsZero() || !e.Timestamp.Before(from)) &&
			(to.IsZero() || !e.Timestamp.After(to)) {
			result = append(result, e)
		}
	}
	return result
}

// EventsByType returns events of a specific type.
func (tl *Timeline) EventsByType(eventType event.Type) []event.Event {
	var result []event.Event
	for _, e := range tl.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Iterations returns the highest iteration recorded.
func (tl *Timeline) Iterations() int {
	n := 0
	for _, e := range tl.events {
		n = max(n, e.Iteration)
	}
	return n
}

// StepSpan summarises one step as seen on the timeline.
type StepSpan struct {
	StepID    string
	Started   time.Time
	Completed time.Time
	// Attempts counts progressed events plus the completing attempt.
	Attempts int
	Done     bool
}

// Duration returns how long the step was active. Open spans return zero.
func (s StepSpan) Duration() time.Duration {
	if !s.Done {
		return 0
	}
	return s.Completed.Sub(s.Started)
}

// StepSpans returns one span per started step, in start order.
func (tl *Timeline) StepSpans() []StepSpan {
	var spans []StepSpan
	index := make(map[string]int)

	for _, e := range tl.events {
		if e.StepID == "" {
			continue
		}
		i, ok := index[e.StepID]
		if !ok {
			if e.Type != event.TypeStepStarted {
				continue
			}
			index[e.StepID] = len(spans)
			spans = append(spans, StepSpan{StepID: e.StepID, Started: e.Timestamp})
			continue
		}

		switch e.Type {
		case event.TypeStepProgressed:
			spans[i].Attempts++
		case event.TypeStepCompleted:
			spans[i].Attempts++
			spans[i].Completed = e.Timestamp
			spans[i].Done = true
		}
	}
	return spans
}
