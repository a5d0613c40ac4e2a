package inspector

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
	"github.com/felixgeelhaar/agentsim/domain/plan"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// ExportFormat identifies the export format.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatCSV      ExportFormat = "csv"
	FormatMermaid  ExportFormat = "mermaid"
	FormatMarkdown ExportFormat = "markdown"
	FormatDOT      ExportFormat = "dot"
)

// AllFormats lists every supported format.
func AllFormats() []ExportFormat {
	return []ExportFormat{FormatJSON, FormatCSV, FormatMermaid, FormatMarkdown, FormatDOT}
}

// ParseFormat converts a user supplied name into an ExportFormat.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case FormatJSON, FormatCSV, FormatMermaid, FormatMarkdown, FormatDOT:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "graphviz", "gv":
		return FormatDOT, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// SessionExport contains exported data for a single session.
type SessionExport struct {
	Session   SessionMetadata     `json:"session"`
	Plan      []StepExport        `json:"plan"`
	Timeline  []TimelineEntry     `json:"timeline"`
	Knowledge map[string][]string `json:"knowledge"`
	Metrics   SessionMetrics      `json:"metrics"`
}

// SessionMetadata contains session metadata for export.
type SessionMetadata struct {
	ID          string       `json:"id"`
	Goal        string       `json:"goal"`
	Constraints []string     `json:"constraints"`
	Status      agent.Status `json:"status"`
	Iteration   int          `json:"iteration"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// StepExport contains step details for export.
type StepExport struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Kind        plan.Kind       `json:"kind"`
	Status      plan.StepStatus `json:"status"`
	Attempts    int             `json:"attempts"`
	Notes       []string        `json:"notes"`
}

// TimelineEntry represents a single event in the timeline.
type TimelineEntry struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type identifies the event type.
	Type event.Type `json:"type"`

	// Label is the event message.
	Label string `json:"label"`

	// StepID is the step the event concerns, if any.
	StepID string `json:"step_id,omitempty"`

	// Iteration is the agent iteration that produced the event.
	Iteration int `json:"iteration"`

	// Duration is the time since the previous event.
	Duration time.Duration `json:"duration,omitempty"`
}

// SessionMetrics contains computed metrics for a session.
type SessionMetrics struct {
	TotalDuration  time.Duration      `json:"total_duration"`
	StepsCompleted int                `json:"steps_completed"`
	StepsTotal     int                `json:"steps_total"`
	TotalAttempts  int                `json:"total_attempts"`
	EventCount     int                `json:"event_count"`
	EventsByType   map[event.Type]int `json:"events_by_type"`
	KnowledgeCount int                `json:"knowledge_count"`
}

// NewSessionExport converts a session into its export model.
func NewSessionExport(s *session.Session) (*SessionExport, error) {
	if s == nil {
		return nil, ErrNoData
	}
	st := s.State

	exp := &SessionExport{
		Session: SessionMetadata{
			ID:          s.ID,
			Goal:        st.Goal,
			Constraints: append([]string{}, st.Constraints...),
			Status:      st.Status,
			Iteration:   st.Iteration,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		},
		Plan:      make([]StepExport, 0, len(st.Plan)),
		Timeline:  make([]TimelineEntry, 0, len(st.Events)),
		Knowledge: make(map[string][]string, len(knowledge.AllBanks())),
		Metrics: SessionMetrics{
			EventsByType: make(map[event.Type]int),
		},
	}

	for _, step := range st.Plan {
		exp.Plan = append(exp.Plan, StepExport{
			ID:          step.ID,
			Title:       step.Title,
			Description: step.Description,
			Kind:        step.Kind,
			Status:      step.Status,
			Attempts:    step.Attempts,
			Notes:       append([]string{}, step.Notes...),
		})
		exp.Metrics.TotalAttempts += step.Attempts
	}
	exp.Metrics.StepsCompleted, exp.Metrics.StepsTotal = st.Progress()

	var prev time.Time
	for i, e := range st.Events {
		entry := TimelineEntry{
			Timestamp: e.Timestamp,
			Type:      e.Type,
			Label:     e.Message,
			StepID:    e.StepID,
			Iteration: e.Iteration,
		}
		if i > 0 {
			entry.Duration = e.Timestamp.Sub(prev)
		}
		prev = e.Timestamp
		exp.Timeline = append(exp.Timeline, entry)
		exp.Metrics.EventsByType[e.Type]++
	}
	exp.Metrics.EventCount = len(st.Events)
	if n := len(st.Events); n > 1 {
		exp.Metrics.TotalDuration = st.Events[n-1].Timestamp.Sub(st.Events[0].Timestamp)
	}

	for _, b := range knowledge.AllBanks() {
		exp.Knowledge[b.String()] = st.Knowledge.Get(b)
	}
	exp.Metrics.KnowledgeCount = st.Knowledge.Len()

	return exp, nil
}

// LifecycleExport describes the step lifecycle chart.
type LifecycleExport struct {
	Initial     plan.StepStatus       `json:"initial"`
	Terminal    []plan.StepStatus     `json:"terminal"`
	States      []LifecycleState      `json:"states"`
	Transitions []LifecycleTransition `json:"transitions"`
}

// LifecycleState is one node of the lifecycle chart.
type LifecycleState struct {
	Name        plan.StepStatus `json:"name"`
	Description string          `json:"description"`
	IsTerminal  bool            `json:"is_terminal"`
}

// LifecycleTransition is one edge of the lifecycle chart.
type LifecycleTransition struct {
	From  plan.StepStatus `json:"from"`
	To    plan.StepStatus `json:"to"`
	Label string          `json:"label,omitempty"`
}
