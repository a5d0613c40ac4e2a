// Package inspector exports sessions and the step lifecycle in several formats.
package inspector

import (
	"context"
	"fmt"
	"slices"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
)

// DefaultInspector pairs exporters with the registered formatters.
type DefaultInspector struct {
	sessions   inspector.Exporter
	lifecycle  inspector.LifecycleExporter
	formatters map[inspector.ExportFormat]inspector.Formatter
}

// NewDefaultInspector creates an inspector with every built-in formatter registered.
// Either exporter may be nil; the matching export then fails with ErrExportFailed.
func NewDefaultInspector(sessions inspector.Exporter, lifecycle inspector.LifecycleExporter) *DefaultInspector {
	i := &DefaultInspector{
		sessions:   sessions,
		lifecycle:  lifecycle,
		formatters: make(map[inspector.ExportFormat]inspector.Formatter),
	}

	i.RegisterFormatter(NewJSONFormatter(WithPrettyPrint()))
	i.RegisterFormatter(NewCSVFormatter())
	i.RegisterFormatter(NewMermaidFormatter())
	i.RegisterFormatter(NewMarkdownFormatter())
	i.RegisterFormatter(NewDOTFormatter())

	return i
}

// RegisterFormatter registers a formatter for its format, replacing any previous one.
func (i *DefaultInspector) RegisterFormatter(formatter inspector.Formatter) {
	i.formatters[formatter.FormatType()] = formatter
}

// Formats returns the registered formats in a stable order.
func (i *DefaultInspector) Formats() []inspector.ExportFormat {
	out := make([]inspector.ExportFormat, 0, len(i.formatters))
	for f := range i.formatters {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// ExportSession exports a single session.
func (i *DefaultInspector) ExportSession(ctx context.Context, sessionID string, format inspector.ExportFormat) ([]byte, error) {
	if i.sessions == nil {
		return nil, inspector.ErrExportFailed
	}

	data, err := i.sessions.Export(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return i.format(data, format)
}

// ExportLifecycle exports the step lifecycle chart.
func (i *DefaultInspector) ExportLifecycle(ctx context.Context, format inspector.ExportFormat) ([]byte, error) {
	if i.lifecycle == nil {
		return nil, inspector.ErrExportFailed
	}

	data, err := i.lifecycle.Export(ctx)
	if err != nil {
		return nil, err
	}

	return i.format(data, format)
}

func (i *DefaultInspector) format(data any, format inspector.ExportFormat) ([]byte, error) {
	formatter, ok := i.formatters[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", inspector.ErrInvalidFormat, format)
	}

	result, err := formatter.Format(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", inspector.ErrExportFailed, err)
	}

	return result, nil
}

var _ inspector.Inspector = (*DefaultInspector)(nil)
