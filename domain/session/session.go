// Package session provides the domain model for persisted simulation sessions.
package session

import (
	"strings"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
)

// Session is a named, persisted agent simulation.
type Session struct {
	ID        string      `json:"id"`
	Goal      string      `json:"goal"`
	State     agent.State `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// New creates a session wrapping an initial state.
func New(id string, state agent.State, now time.Time) *Session {
	return &Session{
		ID:        id,
		Goal:      state.Goal,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status returns the status of the wrapped state.
func (s *Session) Status() agent.Status {
	return s.State.Status
}

// Apply replaces the wrapped state with a newer one.
func (s *Session) Apply(state agent.State, now time.Time) {
	s.State = state
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.State = s.State.Clone()
	return &c
}

// Matches reports whether the session satisfies the filter's criteria.
// Limit and Offset are not considered.
func (f ListFilter) Matches(s *Session) bool {
	if len(f.Status) > 0 {
		found := false
		for _, st := range f.Status {
			if s.State.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.FromTime.IsZero() && s.CreatedAt.Before(f.FromTime) {
		return false
	}
	if !f.ToTime.IsZero() && s.CreatedAt.After(f.ToTime) {
		return false
	}
	if f.GoalPattern != "" &&
		!strings.Contains(strings.ToLower(s.Goal), strings.ToLower(f.GoalPattern)) {
		return false
	}
	return true
}
