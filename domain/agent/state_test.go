package agent_test

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

func validState() agent.State {
	now := time.Now()
	s1 := plan.NewStep("step-1", plan.KindResearch, "Research", "d")
	s1.Status = plan.StepCompleted
	s1.Attempts = 2
	s2 := plan.NewStep("step-2", plan.KindBuild, "Build", "d")
	s2.Status = plan.StepInProgress
	s2.Attempts = 1
	s3 := plan.NewStep("step-3", plan.KindValidate, "Validate", "d")

	return agent.State{
		Goal:      "Launch a beta",
		Status:    agent.StatusRunning,
		Iteration: 4,
		Plan:      []plan.Step{s1, s2, s3},
		Knowledge: knowledge.NewBanks(),
		Events: []event.Event{
			{ID: "e1", Timestamp: now, Type: event.TypePlanCreated},
			{ID: "e2", Timestamp: now.Add(time.Millisecond), Type: event.TypeStepStarted},
		},
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	if agent.StatusRunning.IsTerminal() {
		t.Error("running should not be terminal")
	}
	if !agent.StatusSuccess.IsTerminal() {
		t.Error("success should be terminal")
	}
	if agent.Status("failed").IsValid() {
		t.Error("failed is not a modelled status")
	}
}

func TestState_Validate(t *testing.T) {
	t.Parallel()

	if err := validState().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*agent.State)
	}{
		{"empty plan", func(s *agent.State) { s.Plan = nil }},
		{"unknown status", func(s *agent.State) { s.Status = "blocked" }},
		{"success with open steps", func(s *agent.State) { s.Status = agent.StatusSuccess }},
		{"two in progress", func(s *agent.State) { s.Plan[2].Status = plan.StepInProgress }},
		{"completed after open", func(s *agent.State) { s.Plan[2].Status = plan.StepCompleted }},
		{"duplicate step id", func(s *agent.State) { s.Plan[2].ID = "step-1" }},
		{"pending with attempts", func(s *agent.State) { s.Plan[2].Attempts = 1 }},
		{"empty timeline", func(s *agent.State) { s.Events = nil }},
		{"events out of order", func(s *agent.State) {
			s.Events[1].Timestamp = s.Events[0].Timestamp.Add(-time.Second)
		}},
		{"duplicate event id", func(s *agent.State) { s.Events[1].ID = "e1" }},
		{"running when all done", func(s *agent.State) {
			for i := range s.Plan {
				s.Plan[i].Status = plan.StepCompleted
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := validState()
			tt.mutate(&s)
			err := s.Validate()
			if !errors.Is(err, agent.ErrInvariantViolated) {
				t.Errorf("Validate() error = %v, want ErrInvariantViolated", err)
			}
		})
	}
}

func TestState_Clone(t *testing.T) {
	t.Parallel()

	s := validState()
	s.Constraints = []string{"six weeks"}
	s.Plan[1].AddNote("original")
	s.Knowledge.Add(knowledge.BankEvidence, "found")

	c := s.Clone()
	c.Constraints[0] = "changed"
	c.Plan[1].Notes[0] = "changed"
	c.Plan[0].Status = plan.StepPending
	c.Knowledge.Evidence[0] = "changed"
	c.Events[0].Message = "changed"

	if s.Constraints[0] != "six weeks" {
		t.Error("constraints shared with clone")
	}
	if s.Plan[1].Notes[0] != "original" {
		t.Error("step notes shared with clone")
	}
	if s.Plan[0].Status != plan.StepCompleted {
		t.Error("plan shared with clone")
	}
	if s.Knowledge.Evidence[0] != "found" {
		t.Error("knowledge shared with clone")
	}
	if s.Events[0].Message != "" {
		t.Error("events shared with clone")
	}
}

func TestState_Progress(t *testing.T) {
	t.Parallel()

	s := validState()
	done, total := s.Progress()
	if done != 1 || total != 3 {
		t.Errorf("Progress() = (%d, %d), want (1, 3)", done, total)
	}

	idx, ok := s.ActiveStep()
	if !ok || idx != 1 {
		t.Errorf("ActiveStep() = (%d, %v), want (1, true)", idx, ok)
	}

	last, ok := s.LastEvent()
	if !ok || last.ID != "e2" {
		t.Errorf("LastEvent() = %v, want e2", last.ID)
	}
}
