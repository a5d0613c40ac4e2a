package application

import (
	"context"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
)

// InspectionService exports sessions and the step lifecycle.
type InspectionService struct {
	inspector inspector.Inspector
}

// NewInspectionService creates a new inspection service.
func NewInspectionService(insp inspector.Inspector) *InspectionService {
	return &InspectionService{
		inspector: insp,
	}
}

// ExportSession exports a session in the specified format.
func (s *InspectionService) ExportSession(ctx context.Context, sessionID string, format inspector.ExportFormat) ([]byte, error) {
	if s.inspector == nil {
		return nil, inspector.ErrExportFailed
	}
	return s.inspector.ExportSession(ctx, sessionID, format)
}

// ExportLifecycle exports the step lifecycle chart.
func (s *InspectionService) ExportLifecycle(ctx context.Context, format inspector.ExportFormat) ([]byte, error) {
	if s.inspector == nil {
		return nil, inspector.ErrExportFailed
	}
	return s.inspector.ExportLifecycle(ctx, format)
}

// GetSessionAsJSON exports a session as JSON (convenience method).
func (s *InspectionService) GetSessionAsJSON(ctx context.Context, sessionID string) ([]byte, error) {
	return s.ExportSession(ctx, sessionID, inspector.FormatJSON)
}

// GetSessionAsMarkdown exports a session as a Markdown report (convenience method).
func (s *InspectionService) GetSessionAsMarkdown(ctx context.Context, sessionID string) ([]byte, error) {
	return s.ExportSession(ctx, sessionID, inspector.FormatMarkdown)
}

// GetLifecycleAsMermaid exports the lifecycle as a Mermaid diagram (convenience method).
func (s *InspectionService) GetLifecycleAsMermaid(ctx context.Context) ([]byte, error) {
	return s.ExportLifecycle(ctx, inspector.FormatMermaid)
}

// GetLifecycleAsDOT exports the lifecycle as a DOT graph (convenience method).
func (s *InspectionService) GetLifecycleAsDOT(ctx context.Context) ([]byte, error) {
	return s.ExportLifecycle(ctx, inspector.FormatDOT)
}
