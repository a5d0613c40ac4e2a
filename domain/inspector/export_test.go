package inspector_test

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    inspector.ExportFormat
		wantErr bool
	}{
		{"json", inspector.FormatJSON, false},
		{"csv", inspector.FormatCSV, false},
		{"mermaid", inspector.FormatMermaid, false},
		{"md", inspector.FormatMarkdown, false},
		{"markdown", inspector.FormatMarkdown, false},
		{"dot", inspector.FormatDOT, false},
		{"gv", inspector.FormatDOT, false},
		{"html", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := inspector.ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, inspector.ErrInvalidFormat) {
					t.Errorf("ParseFormat(%q) error = %v, want ErrInvalidFormat", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestNewSessionExport(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	research := plan.NewStep("step-1", plan.KindResearch, "Research", "")
	research.Status = plan.StepCompleted
	research.Attempts = 2
	research.Notes = []string{"a", "b"}
	design := plan.NewStep("step-2", plan.KindDesign, "Design", "")
	design.Status = plan.StepInProgress

	banks := knowledge.NewBanks()
	banks.Add(knowledge.BankEvidence, "users want it")

	s := &session.Session{
		ID: "s1",
		State: agent.State{
			Goal:      "Launch a beta",
			Status:    agent.StatusRunning,
			Iteration: 3,
			Plan:      []plan.Step{research, design},
			Knowledge: banks,
			Events: []event.Event{
				{ID: "e1", Timestamp: t0, Type: event.TypePlanCreated},
				{ID: "e2", Timestamp: t0.Add(2 * time.Second), Type: event.TypeStepStarted, StepID: "step-1"},
				{ID: "e3", Timestamp: t0.Add(5 * time.Second), Type: event.TypeStepStarted, StepID: "step-2"},
			},
		},
	}

	exp, err := inspector.NewSessionExport(s)
	if err != nil {
		t.Fatalf("NewSessionExport() error = %v", err)
	}

	if exp.Metrics.StepsCompleted != 1 || exp.Metrics.StepsTotal != 2 {
		t.Errorf("steps = %d/%d, want 1/2", exp.Metrics.StepsCompleted, exp.Metrics.StepsTotal)
	}
	if exp.Metrics.TotalAttempts != 2 {
		t.Errorf("TotalAttempts = %d, want 2", exp.Metrics.TotalAttempts)
	}
	if exp.Metrics.TotalDuration != 5*time.Second {
		t.Errorf("TotalDuration = %v, want 5s", exp.Metrics.TotalDuration)
	}
	if exp.Metrics.EventsByType[event.TypeStepStarted] != 2 {
		t.Errorf("EventsByType[step-started] = %d, want 2", exp.Metrics.EventsByType[event.TypeStepStarted])
	}
	if exp.Timeline[2].Duration != 3*time.Second {
		t.Errorf("Timeline[2].Duration = %v, want 3s", exp.Timeline[2].Duration)
	}
	if got := exp.Knowledge["evidence"]; len(got) != 1 {
		t.Errorf("Knowledge[evidence] = %v", got)
	}
	if exp.Metrics.KnowledgeCount != 1 {
		t.Errorf("KnowledgeCount = %d, want 1", exp.Metrics.KnowledgeCount)
	}

	if _, err := inspector.NewSessionExport(nil); !errors.Is(err, inspector.ErrNoData) {
		t.Errorf("NewSessionExport(nil) error = %v, want ErrNoData", err)
	}
}
