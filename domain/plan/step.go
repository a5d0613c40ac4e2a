// Package plan provides the step model an agent executes toward its goal.
package plan

// StepStatus is the lifecycle position of a single step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"     // Not yet started
	StepInProgress StepStatus = "in-progress" // Currently the active step
	StepCompleted  StepStatus = "completed"   // Done; terminal
)

// IsTerminal returns true if no transition leaves this status.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted
}

// IsValid returns true if the status is a recognized step status.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s StepStatus) String() string {
	return string(s)
}

// Kind categorizes the nature of the work a step performs.
type Kind string

const (
	KindResearch Kind = "research" // Understand the problem space
	KindDesign   Kind = "design"   // Shape requirements and approach
	KindBuild    Kind = "build"    // Execute the core work
	KindValidate Kind = "validate" // Confirm the outcome
	KindMitigate Kind = "mitigate" // Adapt for constraint risk
)

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	switch k {
	case KindResearch, KindDesign, KindBuild, KindValidate, KindMitigate:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// AllKinds returns every step kind in logical plan order.
func AllKinds() []Kind {
	return []Kind{KindResearch, KindDesign, KindBuild, KindValidate, KindMitigate}
}

// Step is one unit of planned work.
// Title, Description and Kind are fixed at synthesis; Status, Attempts and
// Notes change as the step is worked.
type Step struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Kind        Kind       `json:"kind"`
	Status      StepStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	Notes       []string   `json:"notes"`
}

// NewStep creates a pending step.
func NewStep(id string, kind Kind, title, description string) Step {
	return Step{
		ID:          id,
		Title:       title,
		Description: description,
		Kind:        kind,
		Status:      StepPending,
		Notes:       make([]string, 0),
	}
}

// IsActive returns true if the step is currently being worked.
func (s Step) IsActive() bool {
	return s.Status == StepInProgress
}

// AddNote appends a finding to the step.
func (s *Step) AddNote(note string) {
	s.Notes = append(s.Notes, note)
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	c := s
	c.Notes = make([]string, len(s.Notes))
	copy(c.Notes, s.Notes)
	return c
}
