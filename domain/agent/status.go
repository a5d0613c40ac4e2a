// Package agent provides the core domain model for the goal-pursuing agent simulation.
package agent

// Status is the overall lifecycle status of an agent.
type Status string

const (
	StatusRunning Status = "running" // Working through the plan
	StatusSuccess Status = "success" // Terminal: every step completed
)

// IsTerminal returns true if no further advancement is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess
}

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	switch s {
	case StatusRunning, StatusSuccess:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
