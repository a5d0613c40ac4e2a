package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/plan"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestConfigs(t *testing.T) {
	t.Parallel()

	if c := DefaultConfig(); c.Level != "info" || c.Format != "console" {
		t.Errorf("DefaultConfig() = %+v", c)
	}
	if c := CLIConfig("debug", "json"); c.Level != "debug" || c.Output == nil {
		t.Errorf("CLIConfig() = %+v", c)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"INFO", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  []string
	}{
		{"session id", SessionID("s-1"), []string{`"session_id":"s-1"`}},
		{"step id", StepID("step-2"), []string{`"step_id":"step-2"`}},
		{"step kind", StepKind(plan.KindMitigate), []string{`"step_kind":"mitigate"`}},
		{"iteration", Iteration(7), []string{`"iteration":7`}},
		{"status", Status(agent.StatusSuccess), []string{`"status":"success"`}},
		{"goal", Goal("Launch a beta"), []string{`"goal":"Launch a beta"`}},
		{"event type", EventType(event.TypeGoalAchieved), []string{`"event_type":"goal-achieved"`}},
		{"progress", Progress(2, 5), []string{`"steps_completed":2`, `"steps_total":5`}},
		{"duration", Duration(150 * time.Millisecond), []string{`"duration_ms":150`}},
		{"error", ErrorField(errors.New("boom")), []string{`"error":"boom"`}},
		{"component", Component("driver"), []string{`"component":"driver"`}},
		{"backend", Backend("sqlite"), []string{`"backend":"sqlite"`}},
		{"count", Count("events", 3), []string{`"events":3`}},
		{"str", Str("k", "v"), []string{`"k":"v"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")

			for _, w := range tt.want {
				if !bytes.Contains(buf.Bytes(), []byte(w)) {
					t.Errorf("expected %s in output: %s", w, buf.String())
				}
			}
		})
	}
}

func TestErrorField_Nil(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(nil)(logger.Info()).Msg("test")

	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("nil error produced an error field: %s", buf.String())
	}
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()

	(&LogEvent{event: logger.Info()}).
		Add(SessionID("s-1")).
		Add(Status(agent.StatusRunning)).
		Msg("advanced")

	for _, w := range []string{`"session_id":"s-1"`, `"status":"running"`, "advanced"} {
		if !bytes.Contains(buf.Bytes(), []byte(w)) {
			t.Errorf("expected %s in output: %s", w, buf.String())
		}
	}
}

func TestRedirect(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get() returned nil")
	}

	var buf bytes.Buffer
	restore := Redirect(&buf)
	Info().Add(SessionID("s-9")).Msg("redirected")
	if !bytes.Contains(buf.Bytes(), []byte("s-9")) {
		t.Fatalf("redirected output missing field: %q", buf.String())
	}

	SetLevel("error")
	Info().Msg("filtered")
	if bytes.Contains(buf.Bytes(), []byte("filtered")) {
		t.Error("info line written at error level")
	}

	restore()
	n := buf.Len()
	Error().Msg("after restore")
	if buf.Len() != n {
		t.Error("log line written to the redirected writer after restore")
	}
	SetLevel("info")
}
