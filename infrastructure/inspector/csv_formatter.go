package inspector

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/knowledge"
)

// CSVFormatter formats exports as CSV sections separated by "# NAME" rows.
type CSVFormatter struct {
	includeHeaders bool
	delimiter      rune
}

// CSVFormatterOption configures the CSV formatter.
type CSVFormatterOption func(*CSVFormatter)

// WithoutCSVHeaders omits the column header row of each section.
func WithoutCSVHeaders() CSVFormatterOption {
	return func(f *CSVFormatter) {
		f.includeHeaders = false
	}
}

// WithDelimiter sets a custom delimiter (default is comma).
func WithDelimiter(d rune) CSVFormatterOption {
	return func(f *CSVFormatter) {
		f.delimiter = d
	}
}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(opts ...CSVFormatterOption) *CSVFormatter {
	f := &CSVFormatter{
		includeHeaders: true,
		delimiter:      ',',
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats the data as CSV.
func (f *CSVFormatter) Format(data any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = f.delimiter

	var err error
	switch d := data.(type) {
	case *inspector.SessionExport:
		err = f.formatSession(w, d)
	case *inspector.LifecycleExport:
		err = f.formatLifecycle(w, d)
	default:
		return nil, fmt.Errorf("%w: unsupported data type for CSV: %T", inspector.ErrInvalidFormat, data)
	}
	if err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv write error: %w", err)
	}

	return buf.Bytes(), nil
}

// section writes a titled block of rows followed by a blank separator row.
func (f *CSVFormatter) section(w *csv.Writer, title string, header []string, rows [][]string) error {
	if err := w.Write([]string{"# " + title}); err != nil {
		return err
	}
	if f.includeHeaders {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Write([]string{""})
}

func (f *CSVFormatter) formatSession(w *csv.Writer, data *inspector.SessionExport) error {
	meta := data.Session
	for _, line := range []string{
		"# Session: " + meta.ID,
		"# Goal: " + meta.Goal,
		"# Status: " + string(meta.Status),
		"# Iteration: " + strconv.Itoa(meta.Iteration),
	} {
		if err := w.Write([]string{line}); err != nil {
			return err
		}
	}
	if err := w.Write([]string{""}); err != nil {
		return err
	}

	steps := make([][]string, 0, len(data.Plan))
	for _, s := range data.Plan {
		steps = append(steps, []string{
			s.ID,
			string(s.Kind),
			s.Title,
			string(s.Status),
			strconv.Itoa(s.Attempts),
			strings.Join(s.Notes, "; "),
		})
	}
	if err := f.section(w, "PLAN", []string{"id", "kind", "title", "status", "attempts", "notes"}, steps); err != nil {
		return err
	}

	timeline := make([][]string, 0, len(data.Timeline))
	for _, e := range data.Timeline {
		timeline = append(timeline, []string{
			e.Timestamp.Format(time.RFC3339Nano),
			string(e.Type),
			e.Label,
			e.StepID,
			strconv.Itoa(e.Iteration),
			strconv.FormatInt(e.Duration.Milliseconds(), 10),
		})
	}
	if err := f.section(w, "TIMELINE", []string{"timestamp", "type", "label", "step_id", "iteration", "duration_ms"}, timeline); err != nil {
		return err
	}

	var entries [][]string
	for _, b := range knowledge.AllBanks() {
		for _, entry := range data.Knowledge[b.String()] {
			entries = append(entries, []string{b.String(), entry})
		}
	}
	return f.section(w, "KNOWLEDGE", []string{"bank", "entry"}, entries)
}

func (f *CSVFormatter) formatLifecycle(w *csv.Writer, data *inspector.LifecycleExport) error {
	states := make([][]string, 0, len(data.States))
	for _, s := range data.States {
		states = append(states, []string{
			string(s.Name),
			strconv.FormatBool(s.Name == data.Initial),
			strconv.FormatBool(s.IsTerminal),
			s.Description,
		})
	}
	if err := f.section(w, "STATES", []string{"name", "is_initial", "is_terminal", "description"}, states); err != nil {
		return err
	}

	transitions := make([][]string, 0, len(data.Transitions))
	for _, t := range data.Transitions {
		transitions = append(transitions, []string{string(t.From), string(t.To), t.Label})
	}
	return f.section(w, "TRANSITIONS", []string{"from", "to", "label"}, transitions)
}

// FormatType returns the format type.
func (f *CSVFormatter) FormatType() inspector.ExportFormat {
	return inspector.FormatCSV
}

var _ inspector.Formatter = (*CSVFormatter)(nil)
