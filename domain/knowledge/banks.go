// Package knowledge provides the named banks an agent accumulates findings into.
package knowledge

import "strings"

// Bank names one accumulation bank.
type Bank string

const (
	BankFocusAreas   Bank = "focusAreas"
	BankRequirements Bank = "requirements"
	BankStrategy     Bank = "strategy"
	BankMitigations  Bank = "mitigations"
	BankEvidence     Bank = "evidence"
	BankInsights     Bank = "insights"
)

// AllBanks returns the six banks in display order.
func AllBanks() []Bank {
	return []Bank{
		BankFocusAreas,
		BankRequirements,
		BankStrategy,
		BankMitigations,
		BankEvidence,
		BankInsights,
	}
}

// IsValid returns true if the bank is one of the six known banks.
func (b Bank) IsValid() bool {
	for _, known := range AllBanks() {
		if b == known {
			return true
		}
	}
	return false
}

// String returns the bank name.
func (b Bank) String() string {
	return string(b)
}

// Banks holds the six ordered, append-only collections of findings.
// Entries are deduplicated per bank; blank entries are never stored.
type Banks struct {
	FocusAreas   []string `json:"focusAreas"`
	Requirements []string `json:"requirements"`
	Strategy     []string `json:"strategy"`
	Mitigations  []string `json:"mitigations"`
	Evidence     []string `json:"evidence"`
	Insights     []string `json:"insights"`
}

// NewBanks returns empty, non-nil banks.
func NewBanks() Banks {
	return Banks{
		FocusAreas:   make([]string, 0),
		Requirements: make([]string, 0),
		Strategy:     make([]string, 0),
		Mitigations:  make([]string, 0),
		Evidence:     make([]string, 0),
		Insights:     make([]string, 0),
	}
}

func (k *Banks) slot(b Bank) *[]string {
	switch b {
	case BankFocusAreas:
		return &k.FocusAreas
	case BankRequirements:
		return &k.Requirements
	case BankStrategy:
		return &k.Strategy
	case BankMitigations:
		return &k.Mitigations
	case BankEvidence:
		return &k.Evidence
	case BankInsights:
		return &k.Insights
	default:
		return nil
	}
}

// Get returns a copy of the entries in a bank.
func (k Banks) Get(b Bank) []string {
	s := k.slot(b)
	if s == nil {
		return nil
	}
	out := make([]string, len(*s))
	copy(out, *s)
	return out
}

// Add appends an entry to a bank and reports whether the bank grew.
// Unknown banks, blank entries and duplicates are ignored.
func (k *Banks) Add(b Bank, entry string) bool {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false
	}
	s := k.slot(b)
	if s == nil {
		return false
	}
	for _, existing := range *s {
		if existing == entry {
			return false
		}
	}
	*s = append(*s, entry)
	return true
}

// Len returns the total number of entries across all banks.
func (k Banks) Len() int {
	n := 0
	for _, b := range AllBanks() {
		n += len(*k.slot(b))
	}
	return n
}

// Clone returns a deep copy of the banks.
func (k Banks) Clone() Banks {
	out := NewBanks()
	for _, b := range AllBanks() {
		src := *k.slot(b)
		dst := out.slot(b)
		*dst = append(*dst, src...)
	}
	return out
}
