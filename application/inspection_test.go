package application

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
)

type recordingInspector struct {
	sessionID string
	format    inspector.ExportFormat
}

func (r *recordingInspector) ExportSession(_ context.Context, sessionID string, format inspector.ExportFormat) ([]byte, error) {
	r.sessionID, r.format = sessionID, format
	return []byte("session"), nil
}

func (r *recordingInspector) ExportLifecycle(_ context.Context, format inspector.ExportFormat) ([]byte, error) {
	r.format = format
	return []byte("lifecycle"), nil
}

func TestInspectionService_Shortcuts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name string
		call func(*InspectionService) ([]byte, error)
		want inspector.ExportFormat
		body string
	}{
		{"json", func(s *InspectionService) ([]byte, error) { return s.GetSessionAsJSON(ctx, "s1") }, inspector.FormatJSON, "session"},
		{"markdown", func(s *InspectionService) ([]byte, error) { return s.GetSessionAsMarkdown(ctx, "s1") }, inspector.FormatMarkdown, "session"},
		{"mermaid", func(s *InspectionService) ([]byte, error) { return s.GetLifecycleAsMermaid(ctx) }, inspector.FormatMermaid, "lifecycle"},
		{"dot", func(s *InspectionService) ([]byte, error) { return s.GetLifecycleAsDOT(ctx) }, inspector.FormatDOT, "lifecycle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recordingInspector{}
			got, err := tt.call(NewInspectionService(rec))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if string(got) != tt.body {
				t.Errorf("body = %q, want %q", got, tt.body)
			}
			if rec.format != tt.want {
				t.Errorf("format = %q, want %q", rec.format, tt.want)
			}
		})
	}
}

func TestInspectionService_NilInspector(t *testing.T) {
	t.Parallel()

	s := NewInspectionService(nil)
	if _, err := s.ExportSession(context.Background(), "s1", inspector.FormatJSON); !errors.Is(err, inspector.ErrExportFailed) {
		t.Errorf("ExportSession() error = %v, want ErrExportFailed", err)
	}
	if _, err := s.ExportLifecycle(context.Background(), inspector.FormatDOT); !errors.Is(err, inspector.ErrExportFailed) {
		t.Errorf("ExportLifecycle() error = %v, want ErrExportFailed", err)
	}
}
