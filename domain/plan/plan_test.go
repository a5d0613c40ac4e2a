package plan_test

import (
	"testing"

	"github.com/felixgeelhaar/agentsim/domain/plan"
)

func steps(statuses ...plan.StepStatus) []plan.Step {
	out := make([]plan.Step, len(statuses))
	for i, s := range statuses {
		out[i] = plan.NewStep("step", plan.KindBuild, "t", "d")
		out[i].Status = s
	}
	return out
}

func TestActiveIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		steps   []plan.Step
		wantIdx int
		wantOK  bool
	}{
		{"empty", nil, -1, false},
		{"all pending", steps(plan.StepPending, plan.StepPending), 0, true},
		{"first completed", steps(plan.StepCompleted, plan.StepInProgress, plan.StepPending), 1, true},
		{"all completed", steps(plan.StepCompleted, plan.StepCompleted), -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			idx, ok := plan.ActiveIndex(tt.steps)
			if idx != tt.wantIdx || ok != tt.wantOK {
				t.Errorf("ActiveIndex() = (%d, %v), want (%d, %v)", idx, ok, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestAllCompleted(t *testing.T) {
	t.Parallel()

	if plan.AllCompleted(nil) {
		t.Error("AllCompleted(nil) should be false")
	}
	if plan.AllCompleted(steps(plan.StepCompleted, plan.StepInProgress)) {
		t.Error("AllCompleted() should be false with an in-progress step")
	}
	if !plan.AllCompleted(steps(plan.StepCompleted, plan.StepCompleted)) {
		t.Error("AllCompleted() should be true when every step is completed")
	}
}

func TestStep_Clone(t *testing.T) {
	t.Parallel()

	s := plan.NewStep("step-1", plan.KindResearch, "Research", "Look around")
	s.AddNote("first")

	c := s.Clone()
	c.AddNote("second")
	c.Notes[0] = "changed"

	if len(s.Notes) != 1 || s.Notes[0] != "first" {
		t.Errorf("original notes mutated: %v", s.Notes)
	}
}

func TestStepStatus(t *testing.T) {
	t.Parallel()

	if !plan.StepCompleted.IsTerminal() {
		t.Error("completed should be terminal")
	}
	if plan.StepInProgress.IsTerminal() {
		t.Error("in-progress should not be terminal")
	}
	if plan.StepStatus("blocked").IsValid() {
		t.Error("unknown status should be invalid")
	}
	if plan.StepInProgress.String() != "in-progress" {
		t.Errorf("String() = %s, want in-progress", plan.StepInProgress.String())
	}
}

func TestKinds(t *testing.T) {
	t.Parallel()

	for _, k := range plan.AllKinds() {
		if !k.IsValid() {
			t.Errorf("kind %s should be valid", k)
		}
	}
	if plan.Kind("deploy").IsValid() {
		t.Error("unknown kind should be invalid")
	}
	if got := plan.CountByStatus(steps(plan.StepCompleted, plan.StepPending, plan.StepPending), plan.StepPending); got != 2 {
		t.Errorf("CountByStatus() = %d, want 2", got)
	}
}
