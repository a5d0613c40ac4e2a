package session_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

func mk(id, goal string, status agent.Status, created time.Time) *session.Session {
	return &session.Session{
		ID:        id,
		Goal:      goal,
		State:     agent.State{Goal: goal, Status: status},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestListFilter_Apply(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []*session.Session{
		mk("c", "Launch a beta", agent.StatusRunning, base.Add(2*time.Hour)),
		mk("a", "Write docs", agent.StatusSuccess, base),
		mk("b", "Launch v2", agent.StatusSuccess, base.Add(time.Hour)),
	}

	tests := []struct {
		name   string
		filter session.ListFilter
		want   []string
	}{
		{"default orders by creation", session.ListFilter{}, []string{"a", "b", "c"}},
		{"descending", session.ListFilter{Descending: true}, []string{"c", "b", "a"}},
		{"status", session.ListFilter{Status: []agent.Status{agent.StatusSuccess}}, []string{"a", "b"}},
		{"goal pattern", session.ListFilter{GoalPattern: "launch"}, []string{"b", "c"}},
		{"from time", session.ListFilter{FromTime: base.Add(30 * time.Minute)}, []string{"b", "c"}},
		{"limit and offset", session.ListFilter{Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", session.ListFilter{Offset: 5}, []string{}},
		{"order by id", session.ListFilter{OrderBy: session.OrderByID, Descending: true}, []string{"c", "b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.filter.Apply(all)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d sessions, want %d", len(got), len(tt.want))
			}
			for i, s := range got {
				if s.ID != tt.want[i] {
					t.Errorf("Apply()[%d] = %s, want %s", i, s.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSession_ApplyAndClone(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := session.New("s1", agent.State{Goal: "g", Status: agent.StatusRunning}, now)

	c := s.Clone()
	c.State.Goal = "changed"
	if s.State.Goal != "g" {
		t.Error("Clone() shares state with original")
	}

	s.Apply(agent.State{Goal: "g", Status: agent.StatusSuccess, Iteration: 4}, now.Add(time.Second))
	if s.Status() != agent.StatusSuccess {
		t.Errorf("Status() = %s, want success", s.Status())
	}
	if !s.UpdatedAt.After(s.CreatedAt) {
		t.Error("Apply() did not bump UpdatedAt")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := mk("a", "g", agent.StatusSuccess, now)
	a.State.Iteration = 10
	b := mk("b", "g", agent.StatusRunning, now)
	b.State.Iteration = 2

	sum := session.Summarize([]*session.Session{a, b})
	if sum.TotalSessions != 2 || sum.SucceededSessions != 1 || sum.RunningSessions != 1 {
		t.Errorf("Summarize() = %+v", sum)
	}
	if sum.AverageIterations != 6 {
		t.Errorf("AverageIterations = %v, want 6", sum.AverageIterations)
	}
}
