package planner

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/policy"
)

func TestSynthesizer_Plan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		constraints []string
		wantKinds   []plan.Kind
	}{
		{
			name:      "no constraints",
			wantKinds: []plan.Kind{plan.KindResearch, plan.KindDesign, plan.KindBuild, plan.KindValidate},
		},
		{
			name:        "with constraints",
			constraints: []string{"budget under 5k", "ship by Friday"},
			wantKinds: []plan.Kind{
				plan.KindResearch, plan.KindDesign, plan.KindBuild, plan.KindValidate, plan.KindMitigate,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			steps := NewSynthesizer().Plan("Launch a beta", tt.constraints)
			if len(steps) != len(tt.wantKinds) {
				t.Fatalf("len(Plan()) = %d, want %d", len(steps), len(tt.wantKinds))
			}
			for i, s := range steps {
				if s.Kind != tt.wantKinds[i] {
					t.Errorf("step %d kind = %s, want %s", i, s.Kind, tt.wantKinds[i])
				}
				if s.ID != StepID(i+1) {
					t.Errorf("step %d id = %s, want %s", i, s.ID, StepID(i+1))
				}
				if s.Status != plan.StepPending || s.Attempts != 0 || len(s.Notes) != 0 {
					t.Errorf("step %d not fresh: %+v", i, s)
				}
				if !strings.Contains(s.Title, "launch a beta") {
					t.Errorf("step %d title %q does not mention the goal", i, s.Title)
				}
			}
		})
	}
}

func TestSynthesizer_Deterministic(t *testing.T) {
	t.Parallel()

	s := NewSynthesizer()
	a := s.Plan("Launch a beta", []string{"x"})
	b := s.Plan("Launch a beta", []string{"y"})
	for i := range a {
		if a[i].Title != b[i].Title || a[i].Description != b[i].Description {
			t.Errorf("step %d differs across equal constraint counts", i)
		}
	}
	if !strings.Contains(a[len(a)-1].Title, "1 constraint risk") {
		t.Errorf("mitigation title = %q", a[len(a)-1].Title)
	}
}

func TestTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Launch a beta", "launch a beta"},
		{"  Launch   a beta!  ", "launch a beta"},
		{"API cleanup.", "API cleanup"},
		{"Écrire la doc", "écrire la doc"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Topic(tt.in); got != tt.want {
			t.Errorf("Topic(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBanksFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind plan.Kind
		want []knowledge.Bank
	}{
		{plan.KindResearch, []knowledge.Bank{knowledge.BankEvidence, knowledge.BankInsights}},
		{plan.KindDesign, []knowledge.Bank{knowledge.BankFocusAreas, knowledge.BankRequirements}},
		{plan.KindBuild, []knowledge.Bank{knowledge.BankStrategy}},
		{plan.KindValidate, []knowledge.Bank{knowledge.BankEvidence, knowledge.BankInsights}},
		{plan.KindMitigate, []knowledge.Bank{knowledge.BankMitigations}},
	}

	for _, tt := range tests {
		got := BanksFor(tt.kind)
		if len(got) != len(tt.want) {
			t.Errorf("BanksFor(%s) = %v, want %v", tt.kind, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("BanksFor(%s)[%d] = %s, want %s", tt.kind, i, got[i], tt.want[i])
			}
		}
	}
}

func TestPhraseFindings_Generate(t *testing.T) {
	t.Parallel()

	f := NewPhraseFindings(NewSeededSource(7))
	for _, kind := range plan.AllKinds() {
		step := plan.NewStep("step-1", kind, "Title", "")
		step.Attempts = 2

		got := f.Generate("Launch a beta", step)
		if !strings.HasPrefix(got.Note, "Attempt 2: ") {
			t.Errorf("%s note = %q", kind, got.Note)
		}
		if len(got.Fragments) != len(BanksFor(kind)) {
			t.Errorf("%s fragments = %d, want %d", kind, len(got.Fragments), len(BanksFor(kind)))
		}
		for _, fr := range got.Fragments {
			if strings.TrimSpace(fr.Text) == "" {
				t.Errorf("%s produced a blank fragment for %s", kind, fr.Bank)
			}
		}
	}
}

func TestSeededSource_Reproducible(t *testing.T) {
	t.Parallel()

	a, b := NewSeededSource(42), NewSeededSource(42)
	for i := range 20 {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
	}
}

func TestRandomDecider(t *testing.T) {
	t.Parallel()

	if _, err := NewRandomDecider(nil, 1.5); !errors.Is(err, policy.ErrInvalidProbability) {
		t.Errorf("NewRandomDecider(1.5) error = %v, want ErrInvalidProbability", err)
	}

	always, _ := NewRandomDecider(NewSeededSource(1), 1)
	never, _ := NewRandomDecider(NewSeededSource(1), 0)
	step := plan.Step{Kind: plan.KindBuild}
	for range 10 {
		if always.Decide(step) != policy.OutcomeComplete {
			t.Fatal("probability 1 proposed progress")
		}
		if never.Decide(step) != policy.OutcomeProgress {
			t.Fatal("probability 0 proposed completion")
		}
	}
}

func TestScriptedDecider(t *testing.T) {
	t.Parallel()

	t.Run("sequence then fallback", func(t *testing.T) {
		t.Parallel()

		d := NewScriptedDecider(policy.OutcomeProgress, policy.OutcomeComplete)
		step := plan.Step{}

		if got := d.Decide(step); got != policy.OutcomeProgress {
			t.Errorf("Decide() #1 = %s", got)
		}
		if got := d.Decide(step); got != policy.OutcomeComplete {
			t.Errorf("Decide() #2 = %s", got)
		}
		if !d.IsComplete() {
			t.Error("IsComplete() = false after script consumed")
		}
		if got := d.Decide(step); got != policy.OutcomeComplete {
			t.Errorf("Decide() after exhaustion = %s, want complete", got)
		}

		d.Reset()
		if d.Remaining() != 2 {
			t.Errorf("Remaining() after Reset = %d, want 2", d.Remaining())
		}
	})

	t.Run("kind mismatch uses fallback", func(t *testing.T) {
		t.Parallel()

		d := NewScriptedDeciderSteps(ScriptStep{ExpectKind: plan.KindDesign, Outcome: policy.OutcomeProgress}).
			OnExhausted(policy.Always(policy.OutcomeComplete))

		if got := d.Decide(plan.Step{Kind: plan.KindResearch}); got != policy.OutcomeComplete {
			t.Errorf("Decide(research) = %s, want fallback complete", got)
		}
		if d.Mismatches() != 1 || d.Remaining() != 1 {
			t.Errorf("Mismatches() = %d, Remaining() = %d", d.Mismatches(), d.Remaining())
		}
		if got := d.Decide(plan.Step{Kind: plan.KindDesign}); got != policy.OutcomeProgress {
			t.Errorf("Decide(design) = %s, want progress", got)
		}
	})

	t.Run("concurrent", func(t *testing.T) {
		t.Parallel()

		outcomes := make([]policy.Outcome, 100)
		for i := range outcomes {
			outcomes[i] = policy.OutcomeProgress
		}
		d := NewScriptedDecider(outcomes...)

		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Decide(plan.Step{})
			}()
		}
		wg.Wait()

		if !d.IsComplete() {
			t.Errorf("Remaining() = %d after 100 concurrent calls", d.Remaining())
		}
	})
}
