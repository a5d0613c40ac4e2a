// Package inspector provides types for inspecting and exporting simulation sessions.
package inspector

import "context"

// Exporter builds the export model for a session.
type Exporter interface {
	// Export loads a session and converts it to its export model.
	Export(ctx context.Context, sessionID string) (*SessionExport, error)
}

// LifecycleExporter describes the step lifecycle chart.
type LifecycleExporter interface {
	Export(ctx context.Context) (*LifecycleExport, error)
}

// Formatter formats export data to a specific format.
type Formatter interface {
	// Format formats the data.
	Format(data any) ([]byte, error)

	// FormatType returns the format type.
	FormatType() ExportFormat
}

// Inspector exports sessions and the step lifecycle in a chosen format.
type Inspector interface {
	// ExportSession exports a single session.
	ExportSession(ctx context.Context, sessionID string, format ExportFormat) ([]byte, error)

	// ExportLifecycle exports the step lifecycle chart.
	ExportLifecycle(ctx context.Context, format ExportFormat) ([]byte, error)
}
