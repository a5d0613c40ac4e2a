package planner

import (
	"fmt"

	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// Fragment is one entry destined for a knowledge bank.
type Fragment struct {
	Bank knowledge.Bank
	Text string
}

// Finding is what one progressing attempt on a step produces.
type Finding struct {
	Note      string
	Fragments []Fragment
}

// Findings produces the finding for an attempt on a step.
type Findings interface {
	Generate(goal string, step plan.Step) Finding
}

// BanksFor returns the knowledge banks a step kind contributes to, in order.
func BanksFor(kind plan.Kind) []knowledge.Bank {
	switch kind {
	case plan.KindResearch, plan.KindValidate:
		return []knowledge.Bank{knowledge.BankEvidence, knowledge.BankInsights}
	case plan.KindDesign:
		return []knowledge.Bank{knowledge.BankFocusAreas, knowledge.BankRequirements}
	case plan.KindBuild:
		return []knowledge.Bank{knowledge.BankStrategy}
	case plan.KindMitigate:
		return []knowledge.Bank{knowledge.BankMitigations}
	default:
		return nil
	}
}

var notePhrases = map[plan.Kind][]string{
	plan.KindResearch: {
		"Interviewed stakeholders about how to %s",
		"Surveyed comparable efforts to %s",
		"Collected baseline data on what it takes to %s",
		"Mapped open questions around how to %s",
	},
	plan.KindDesign: {
		"Sketched options for how to %s",
		"Ranked trade-offs in the approach to %s",
		"Drafted acceptance criteria to %s",
		"Reviewed the draft design to %s with the team",
	},
	plan.KindBuild: {
		"Shipped a first increment toward the effort to %s",
		"Resolved a blocker in the work to %s",
		"Paired on the riskiest part of the effort to %s",
		"Integrated the pieces needed to %s",
	},
	plan.KindValidate: {
		"Ran a pilot of the effort to %s",
		"Compared results to the baseline for the effort to %s",
		"Gathered feedback on the attempt to %s",
		"Checked the outcome to %s against acceptance criteria",
	},
	plan.KindMitigate: {
		"Identified a fallback in case the effort to %s slips",
		"Reworked the schedule to %s within the constraints",
		"Agreed on an escalation path for the effort to %s",
		"Trimmed scope so the effort to %s fits the constraints",
	},
}

var fragmentPhrases = map[knowledge.Bank][]string{
	knowledge.BankEvidence: {
		"users asked for this in recent feedback",
		"similar efforts succeeded with a staged rollout",
		"current tooling covers most of the need",
		"the main risk is adoption rather than delivery",
	},
	knowledge.BankInsights: {
		"early wins matter more than completeness",
		"clear ownership shortens every loop",
		"small batches surface problems sooner",
		"the audience cares most about reliability",
	},
	knowledge.BankFocusAreas: {
		"onboarding experience",
		"operational readiness",
		"communication plan",
		"success metrics",
	},
	knowledge.BankRequirements: {
		"must be reversible",
		"must be measurable within two weeks",
		"must not disrupt existing users",
		"must have a named owner",
	},
	knowledge.BankStrategy: {
		"deliver in thin vertical slices",
		"ship behind a feature flag",
		"start with the highest-value audience",
		"automate the repetitive checks first",
	},
	knowledge.BankMitigations: {
		"keep a rollback ready",
		"reserve buffer time before the deadline",
		"line up a second reviewer",
		"cut optional scope first",
	},
}

// PhraseFindings builds findings from fixed phrase pools using a Source.
type PhraseFindings struct {
	src Source
}

// NewPhraseFindings creates a findings generator. A nil source uses GlobalSource.
func NewPhraseFindings(src Source) *PhraseFindings {
	if src == nil {
		src = GlobalSource{}
	}
	return &PhraseFindings{src: src}
}

// Generate implements Findings. The step carries its current attempt count.
func (f *PhraseFindings) Generate(goal string, step plan.Step) Finding {
	topic := Topic(goal)
	note := "Worked on " + step.Title
	if phrase := pick(f.src, notePhrases[step.Kind]); phrase != "" {
		note = fmt.Sprintf(phrase, topic)
	}

	banks := BanksFor(step.Kind)
	frags := make([]Fragment, 0, len(banks))
	for _, b := range banks {
		frags = append(frags, Fragment{Bank: b, Text: pick(f.src, fragmentPhrases[b])})
	}

	return Finding{
		Note:      fmt.Sprintf("Attempt %d: %s", step.Attempts, note),
		Fragments: frags,
	}
}
