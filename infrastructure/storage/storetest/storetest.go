// Package storetest provides a behavioural test suite shared by every
// session.Store implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// Factory returns an empty store. Cleanup should be registered on t.
type Factory func(t testing.TB) session.Store

var base = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// NewSession builds a valid session fixture.
func NewSession(id, goal string, status agent.Status, created time.Time) *session.Session {
	steps := []plan.Step{
		plan.NewStep("step-1", plan.KindResearch, "Research how to "+goal, "desc"),
		plan.NewStep("step-2", plan.KindBuild, "Build what it takes to "+goal, "desc"),
	}
	if status == agent.StatusSuccess {
		for i := range steps {
			steps[i].Status = plan.StepCompleted
			steps[i].Attempts = 2
			steps[i].Notes = []string{"Attempt 1: note"}
		}
	} else {
		steps[0].Status = plan.StepInProgress
	}

	banks := knowledge.NewBanks()
	banks.Add(knowledge.BankEvidence, "users asked for this")

	return &session.Session{
		ID:   id,
		Goal: goal,
		State: agent.State{
			Goal:        goal,
			Constraints: []string{"budget under 5k"},
			Status:      status,
			Iteration:   3,
			Plan:        steps,
			Knowledge:   banks,
			Events: []event.Event{
				{ID: id + "-e1", Timestamp: created, Type: event.TypePlanCreated, Message: "planned"},
				{ID: id + "-e2", Timestamp: created.Add(time.Second), Type: event.TypeStepStarted, StepID: "step-1", Iteration: 1},
			},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Run exercises the full session.Store contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("save and get round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		want := NewSession("s-1", "launch a beta", agent.StatusRunning, base)

		if err := s.Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Get(ctx, "s-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Get() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("save duplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		sess := NewSession("dup", "g", agent.StatusRunning, base)

		if err := s.Save(ctx, sess); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := s.Save(ctx, sess); !errors.Is(err, session.ErrSessionExists) {
			t.Errorf("second Save() error = %v, want ErrSessionExists", err)
		}
	})

	t.Run("invalid ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Save(ctx, &session.Session{}); !errors.Is(err, session.ErrInvalidSessionID) {
			t.Errorf("Save(no id) error = %v, want ErrInvalidSessionID", err)
		}
		if _, err := s.Get(ctx, ""); !errors.Is(err, session.ErrInvalidSessionID) {
			t.Errorf("Get(\"\") error = %v, want ErrInvalidSessionID", err)
		}
		if err := s.Delete(ctx, ""); !errors.Is(err, session.ErrInvalidSessionID) {
			t.Errorf("Delete(\"\") error = %v, want ErrInvalidSessionID", err)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Get(ctx, "nope"); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
		}
		if err := s.Update(ctx, NewSession("nope", "g", agent.StatusRunning, base)); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("Update() error = %v, want ErrSessionNotFound", err)
		}
		if err := s.Delete(ctx, "nope"); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("Delete() error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("update replaces state", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		sess := NewSession("u-1", "g", agent.StatusRunning, base)
		if err := s.Save(ctx, sess); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		done := NewSession("u-1", "g", agent.StatusSuccess, base)
		sess.Apply(done.State, base.Add(time.Minute))
		if err := s.Update(ctx, sess); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		got, err := s.Get(ctx, "u-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status() != agent.StatusSuccess || !got.UpdatedAt.Equal(base.Add(time.Minute)) {
			t.Errorf("Get() after Update = status %s, updated %v", got.Status(), got.UpdatedAt)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Save(ctx, NewSession("d-1", "g", agent.StatusRunning, base)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := s.Delete(ctx, "d-1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(ctx, "d-1"); !errors.Is(err, session.ErrSessionNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("list and count", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i, status := range []agent.Status{agent.StatusRunning, agent.StatusSuccess, agent.StatusSuccess} {
			sess := NewSession(fmt.Sprintf("l-%d", i), fmt.Sprintf("goal %d", i), status, base.Add(time.Duration(i)*time.Hour))
			if err := s.Save(ctx, sess); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}

		all, err := s.List(ctx, session.ListFilter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 || all[0].ID != "l-0" || all[2].ID != "l-2" {
			t.Errorf("List() = %v, want l-0..l-2 by creation", ids(all))
		}

		succeeded, err := s.List(ctx, session.ListFilter{
			Status:     []agent.Status{agent.StatusSuccess},
			Descending: true,
		})
		if err != nil {
			t.Fatalf("List(success) error = %v", err)
		}
		if len(succeeded) != 2 || succeeded[0].ID != "l-2" {
			t.Errorf("List(success, desc) = %v, want [l-2 l-1]", ids(succeeded))
		}

		page, err := s.List(ctx, session.ListFilter{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("List(page) error = %v", err)
		}
		if len(page) != 1 || page[0].ID != "l-1" {
			t.Errorf("List(limit 1, offset 1) = %v, want [l-1]", ids(page))
		}

		n, err := s.Count(ctx, session.ListFilter{GoalPattern: "GOAL 1"})
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Count(goal 1) = %d, want 1", n)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := s.Save(ctx, NewSession("c-1", "g", agent.StatusRunning, base)); err == nil {
			t.Error("Save() with cancelled context succeeded")
		}
	})
}

func ids(sessions []*session.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
