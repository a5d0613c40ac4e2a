package session

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
)

// Store defines the interface for session persistence.
// Implementations may be in-memory, SQLite, Badger, Redis or any other backend.
type Store interface {
	// Save persists a new session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*Session, error)

	// Update updates an existing session.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// List returns sessions matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Session, error)

	// Count returns the number of sessions matching the filter.
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

// ListFilter specifies criteria for listing sessions.
type ListFilter struct {
	// Status filters by agent status (empty means all).
	Status []agent.Status

	// FromTime filters sessions created after this time.
	FromTime time.Time

	// ToTime filters sessions created before this time.
	ToTime time.Time

	// GoalPattern filters by goal text (case-insensitive substring match).
	GoalPattern string

	// Limit is the maximum number of sessions to return (0 = no limit).
	Limit int

	// Offset is the number of sessions to skip for pagination.
	Offset int

	// OrderBy specifies the sort order.
	OrderBy OrderBy

	// Descending reverses the sort order.
	Descending bool
}

// OrderBy specifies how to sort session results.
type OrderBy string

const (
	OrderByCreatedAt OrderBy = "created_at"
	OrderByUpdatedAt OrderBy = "updated_at"
	OrderByID        OrderBy = "id"
	OrderByStatus    OrderBy = "status"
)

// Sort orders sessions in place according to the filter.
func (f ListFilter) Sort(sessions []*Session) {
	slices.SortStableFunc(sessions, func(a, b *Session) int {
		var c int
		switch f.OrderBy {
		case OrderByUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case OrderByID:
			c = strings.Compare(a.ID, b.ID)
		case OrderByStatus:
			c = strings.Compare(string(a.State.Status), string(b.State.Status))
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if f.Descending {
			return -c
		}
		return c
	})
}

// Page applies Offset and Limit to an already sorted slice.
func (f ListFilter) Page(sessions []*Session) []*Session {
	if f.Offset > 0 {
		if f.Offset >= len(sessions) {
			return []*Session{}
		}
		sessions = sessions[f.Offset:]
	}
	if f.Limit > 0 && len(sessions) > f.Limit {
		sessions = sessions[:f.Limit]
	}
	return sessions
}

// Apply filters, sorts and pages sessions in one pass.
func (f ListFilter) Apply(sessions []*Session) []*Session {
	matched := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if f.Matches(s) {
			matched = append(matched, s)
		}
	}
	f.Sort(matched)
	return f.Page(matched)
}

// Summary provides aggregate statistics about sessions.
type Summary struct {
	TotalSessions     int64
	SucceededSessions int64
	RunningSessions   int64
	AverageIterations float64
}

// Summarize computes aggregate statistics for the given sessions.
func Summarize(sessions []*Session) Summary {
	var sum Summary
	var iterations int64
	for _, s := range sessions {
		sum.TotalSessions++
		switch s.State.Status {
		case agent.StatusSuccess:
			sum.SucceededSessions++
		case agent.StatusRunning:
			sum.RunningSessions++
		}
		iterations += int64(s.State.Iteration)
	}
	if sum.TotalSessions > 0 {
		sum.AverageIterations = float64(iterations) / float64(sum.TotalSessions)
	}
	return sum
}

// SummaryProvider is implemented by stores that can aggregate without
// loading every session.
type SummaryProvider interface {
	Summary(ctx context.Context, filter ListFilter) (Summary, error)
}
