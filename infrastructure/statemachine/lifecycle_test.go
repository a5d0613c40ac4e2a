package statemachine

import (
	"errors"
	"sync"
	"testing"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
)

func TestNewMachines(t *testing.T) {
	t.Parallel()

	if m, err := NewStepMachine(); err != nil || m == nil {
		t.Fatalf("NewStepMachine() = %v, %v", m, err)
	}
	if m, err := NewAgentMachine(); err != nil || m == nil {
		t.Fatalf("NewAgentMachine() = %v, %v", m, err)
	}
}

func TestEventForStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to plan.StepStatus
		want     string
	}{
		{plan.StepPending, plan.StepInProgress, "START"},
		{plan.StepInProgress, plan.StepInProgress, "PROGRESS"},
		{plan.StepInProgress, plan.StepCompleted, "COMPLETE"},
		{plan.StepCompleted, plan.StepPending, "pending"},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			if got := EventForStep(tt.from, tt.to); string(got) != tt.want {
				t.Errorf("EventForStep(%s, %s) = %s, want %s", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestLifecycle_TransitionStep(t *testing.T) {
	t.Parallel()

	l := MustLifecycle(nil)

	tests := []struct {
		name    string
		from    plan.StepStatus
		to      plan.StepStatus
		wantErr bool
	}{
		{"activate", plan.StepPending, plan.StepInProgress, false},
		{"progress", plan.StepInProgress, plan.StepInProgress, false},
		{"complete", plan.StepInProgress, plan.StepCompleted, false},
		{"skip activation", plan.StepPending, plan.StepCompleted, true},
		{"reopen", plan.StepCompleted, plan.StepInProgress, true},
		{"rewind", plan.StepInProgress, plan.StepPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := l.TransitionStep(tt.from, tt.to)
			if tt.wantErr {
				if !errors.Is(err, policy.ErrInvalidTransition) {
					t.Errorf("TransitionStep() error = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Errorf("TransitionStep() error = %v", err)
			}
		})
	}
}

func TestLifecycle_CustomTransitions(t *testing.T) {
	t.Parallel()

	// A table without self-progress rejects repeated attempts.
	tr := policy.NewStepTransitionsWith(policy.TransitionRules{
		plan.StepPending:    {plan.StepInProgress},
		plan.StepInProgress: {plan.StepCompleted},
	})
	l := MustLifecycle(tr)

	if err := l.TransitionStep(plan.StepInProgress, plan.StepInProgress); !errors.Is(err, policy.ErrInvalidTransition) {
		t.Errorf("TransitionStep(progress) error = %v, want ErrInvalidTransition", err)
	}
}

func TestLifecycle_Achieve(t *testing.T) {
	t.Parallel()

	l := MustLifecycle(nil)

	got, err := l.Achieve(agent.StatusRunning, true)
	if err != nil {
		t.Fatalf("Achieve() error = %v", err)
	}
	if got != agent.StatusSuccess {
		t.Errorf("Achieve() = %s, want success", got)
	}

	if _, err := l.Achieve(agent.StatusRunning, false); !errors.Is(err, policy.ErrInvalidTransition) {
		t.Errorf("Achieve(incomplete) error = %v, want ErrInvalidTransition", err)
	}
	if _, err := l.Achieve(agent.StatusSuccess, true); !errors.Is(err, policy.ErrInvalidTransition) {
		t.Errorf("Achieve(success) error = %v, want ErrInvalidTransition", err)
	}
}

func TestLifecycle_Concurrent(t *testing.T) {
	t.Parallel()

	l := MustLifecycle(nil)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.TransitionStep(plan.StepInProgress, plan.StepCompleted); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent TransitionStep() error = %v", err)
	}
}
