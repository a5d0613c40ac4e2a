// Package memory provides in-memory session and event stores.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/felixgeelhaar/agentsim/domain/session"
)

// SessionStore is an in-memory implementation of session.Store.
// Sessions are stored as JSON so callers never share memory with the store.
type SessionStore struct {
	sessions map[string][]byte
	mu       sync.RWMutex
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string][]byte),
	}
}

// Save persists a new session.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return session.ErrSessionExists
	}
	s.sessions[sess.ID] = data
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, session.ErrInvalidSessionID
	}

	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, session.ErrSessionNotFound
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Update updates an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; !exists {
		return session.ErrSessionNotFound
	}
	s.sessions[sess.ID] = data
	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return session.ErrInvalidSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return session.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// List returns sessions matching the filter.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter session.ListFilter) (int64, error) {
	filter.Limit, filter.Offset = 0, 0
	matched, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Summary returns aggregate statistics for matching sessions.
func (s *SessionStore) Summary(ctx context.Context, filter session.ListFilter) (session.Summary, error) {
	filter.Limit, filter.Offset = 0, 0
	matched, err := s.List(ctx, filter)
	if err != nil {
		return session.Summary{}, err
	}
	return session.Summarize(matched), nil
}

func (s *SessionStore) all(ctx context.Context) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*session.Session, 0, len(s.sessions))
	for _, data := range s.sessions {
		var sess session.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, nil
}

// Ensure SessionStore implements session.Store and session.SummaryProvider
var (
	_ session.Store           = (*SessionStore)(nil)
	_ session.SummaryProvider = (*SessionStore)(nil)
)
