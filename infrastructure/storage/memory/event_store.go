package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/internal/fanout"
)

// EventStore is an in-memory implementation of event.Store.
type EventStore struct {
	records   map[string][]event.Record // sessionID -> records
	sequences map[string]uint64         // sessionID -> last sequence
	hub       *fanout.Hub
	mu        sync.RWMutex
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		records:   make(map[string][]event.Record),
		sequences: make(map[string]uint64),
		hub:       fanout.New(fanout.DefaultBuffer),
	}
}

// Append persists records atomically, assigning sequence numbers per session.
func (s *EventStore) Append(ctx context.Context, records ...event.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.SessionID == "" {
			return event.ErrInvalidSessionID
		}
		if r.Event.Type == "" {
			return event.ErrInvalidEvent
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]string, 0, 1)
	bySession := make(map[string][]event.Record)
	for _, r := range records {
		if _, seen := bySession[r.SessionID]; !seen {
			order = append(order, r.SessionID)
		}
		bySession[r.SessionID] = append(bySession[r.SessionID], r)
	}

	for _, id := range order {
		batch := bySession[id]
		seq := s.sequences[id]
		for i := range batch {
			if batch[i].Event.ID == "" {
				batch[i].Event.ID = uuid.NewString()
			}
			seq++
			batch[i].Sequence = seq
		}

		s.records[id] = append(s.records[id], batch...)
		s.sequences[id] = seq
		s.hub.Publish(batch...)
	}

	return nil
}

// Load retrieves all records for a session in sequence order.
func (s *EventStore) Load(ctx context.Context, sessionID string) ([]event.Record, error) {
	return s.LoadFrom(ctx, sessionID, 0)
}

// LoadFrom retrieves records with a sequence number >= fromSeq.
func (s *EventStore) LoadFrom(ctx context.Context, sessionID string, fromSeq uint64) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]event.Record, 0, len(s.records[sessionID]))
	for _, r := range s.records[sessionID] {
		if r.Sequence >= fromSeq {
			result = append(result, r)
		}
	}
	return result, nil
}

// Subscribe returns a channel that receives new records for a session.
// The channel is closed when ctx is cancelled.
func (s *EventStore) Subscribe(ctx context.Context, sessionID string) (<-chan event.Record, error) {
	return s.hub.Subscribe(ctx, sessionID)
}

// LastSequence returns the highest sequence assigned for a session.
func (s *EventStore) LastSequence(sessionID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequences[sessionID]
}

// Ensure EventStore implements event.Store
var _ event.Store = (*EventStore)(nil)
