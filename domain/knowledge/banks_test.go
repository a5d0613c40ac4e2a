package knowledge_test

import (
	"testing"

	"github.com/felixgeelhaar/agentsim/domain/knowledge"
)

func TestBanks_Add(t *testing.T) {
	t.Parallel()

	t.Run("appends in order", func(t *testing.T) {
		t.Parallel()

		k := knowledge.NewBanks()
		k.Add(knowledge.BankEvidence, "first")
		k.Add(knowledge.BankEvidence, "second")

		got := k.Get(knowledge.BankEvidence)
		if len(got) != 2 || got[0] != "first" || got[1] != "second" {
			t.Errorf("Get(evidence) = %v, want [first second]", got)
		}
	})

	t.Run("deduplicates", func(t *testing.T) {
		t.Parallel()

		k := knowledge.NewBanks()
		if !k.Add(knowledge.BankStrategy, "ship weekly") {
			t.Fatal("first Add() should grow the bank")
		}
		if k.Add(knowledge.BankStrategy, "  ship weekly ") {
			t.Error("duplicate Add() should not grow the bank")
		}
		if len(k.Strategy) != 1 {
			t.Errorf("len(Strategy) = %d, want 1", len(k.Strategy))
		}
	})

	t.Run("ignores blank and unknown", func(t *testing.T) {
		t.Parallel()

		k := knowledge.NewBanks()
		if k.Add(knowledge.BankInsights, "   ") {
			t.Error("blank entry should be ignored")
		}
		if k.Add(knowledge.Bank("rumours"), "x") {
			t.Error("unknown bank should be ignored")
		}
		if k.Len() != 0 {
			t.Errorf("Len() = %d, want 0", k.Len())
		}
	})
}

func TestBanks_Clone(t *testing.T) {
	t.Parallel()

	k := knowledge.NewBanks()
	k.Add(knowledge.BankMitigations, "buffer the schedule")

	c := k.Clone()
	c.Add(knowledge.BankMitigations, "cut scope")
	c.Mitigations[0] = "changed"

	if len(k.Mitigations) != 1 || k.Mitigations[0] != "buffer the schedule" {
		t.Errorf("original mutated: %v", k.Mitigations)
	}
}

func TestBank_IsValid(t *testing.T) {
	t.Parallel()

	for _, b := range knowledge.AllBanks() {
		if !b.IsValid() {
			t.Errorf("bank %s should be valid", b)
		}
	}
	if len(knowledge.AllBanks()) != 6 {
		t.Errorf("AllBanks() has %d banks, want 6", len(knowledge.AllBanks()))
	}
}
