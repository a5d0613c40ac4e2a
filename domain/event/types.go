package event

// Type classifies timeline events.
type Type string

// Event types emitted by the simulation engine.
const (
	TypePlanCreated      Type = "plan-created"
	TypeStepStarted      Type = "step-started"
	TypeStepProgressed   Type = "step-progressed"
	TypeStepCompleted    Type = "step-completed"
	TypeKnowledgeUpdated Type = "knowledge-updated"
	TypeGoalAchieved     Type = "goal-achieved"
)

// IsValid returns true if the type is a recognized event type.
func (t Type) IsValid() bool {
	switch t {
	case TypePlanCreated, TypeStepStarted, TypeStepProgressed,
		TypeStepCompleted, TypeKnowledgeUpdated, TypeGoalAchieved:
		return true
	default:
		return false
	}
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// AllTypes returns every event type.
func AllTypes() []Type {
	return []Type{
		TypePlanCreated,
		TypeStepStarted,
		TypeStepProgressed,
		TypeStepCompleted,
		TypeKnowledgeUpdated,
		TypeGoalAchieved,
	}
}
