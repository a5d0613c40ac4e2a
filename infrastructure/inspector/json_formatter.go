package inspector

import (
	"bytes"
	"encoding/json"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
)

// JSONFormatter formats any export as JSON.
type JSONFormatter struct {
	indent string
}

// JSONFormatterOption configures the JSON formatter.
type JSONFormatterOption func(*JSONFormatter)

// WithPrettyPrint indents output by two spaces.
func WithPrettyPrint() JSONFormatterOption {
	return WithIndent("  ")
}

// WithIndent indents output with the given string.
func WithIndent(indent string) JSONFormatterOption {
	return func(f *JSONFormatter) {
		f.indent = indent
	}
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts ...JSONFormatterOption) *JSONFormatter {
	f := &JSONFormatter{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format encodes data as one JSON document followed by a newline. Goal and
// constraint text is written as-is, without HTML escaping.
func (f *JSONFormatter) Format(data any) ([]byte, error) {
	if data == nil {
		return nil, inspector.ErrNoData
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", f.indent)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatType returns the format type.
func (f *JSONFormatter) FormatType() inspector.ExportFormat {
	return inspector.FormatJSON
}

var _ inspector.Formatter = (*JSONFormatter)(nil)
