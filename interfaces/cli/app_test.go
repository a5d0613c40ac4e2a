package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/config"
	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, nil, args...)
}

func executeWithInput(t *testing.T, stdin *strings.Reader, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	if stdin != nil {
		app.WithInput(stdin)
	}
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

var sessionLine = regexp.MustCompile(`Session (\S+): success`)

func TestApp_Version(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "agentsim version") {
		t.Errorf("version output missing 'agentsim version', got: %s", out)
	}
}

func TestApp_Help(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"run", "plan", "tui", "sessions", "export", "lifecycle", "config"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestApp_Run(t *testing.T) {
	out, err := execute(t, "run", "Launch a beta", "--constraint", "budget under 5k", "--seed", "1", "--interval", "0")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{string(event.TypePlanCreated), string(event.TypeGoalAchieved), "success"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}
	if !sessionLine.MatchString(out) {
		t.Errorf("run output missing session summary:\n%s", out)
	}
}

func TestApp_Run_JSON(t *testing.T) {
	out, err := execute(t, "run", "Launch a beta", "--seed", "1", "--interval", "0", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var types []event.Type
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var e event.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %q is not an event: %v", scanner.Text(), err)
		}
		types = append(types, e.Type)
	}
	if len(types) < 2 {
		t.Fatalf("got %d events", len(types))
	}
	if types[0] != event.TypePlanCreated {
		t.Errorf("first event = %q, want plan-created", types[0])
	}
	if types[len(types)-1] != event.TypeGoalAchieved {
		t.Errorf("last event = %q, want goal-achieved", types[len(types)-1])
	}
}

func TestApp_Run_Manual(t *testing.T) {
	input := strings.NewReader(strings.Repeat("\n", 500))
	out, err := executeWithInput(t, input, "run", "Launch a beta", "--seed", "3", "--manual")
	if err != nil {
		t.Fatalf("run --manual failed: %v", err)
	}
	if !sessionLine.MatchString(out) {
		t.Errorf("manual run did not finish:\n%s", out)
	}
}

func TestApp_Run_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"blank goal", []string{"run", "   "}, agent.ErrInvalidGoal},
		{"missing goal", []string{"run"}, agent.ErrInvalidGoal},
		{"unknown backend", []string{"run", "x", "--store", "bogus"}, config.ErrValidationFailed},
		{"sqlite without dsn", []string{"run", "x", "--store", "sqlite"}, config.ErrValidationFailed},
		{"unknown trace exporter", []string{"run", "x", "--trace", "zipkin"}, config.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApp_Run_Trace(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(),
		[]string{"run", "Launch a beta", "--seed", "1", "--interval", "0", "--trace", "stdout"})
	if err != nil {
		t.Fatalf("run --trace failed: %v", err)
	}
	for _, want := range []string{"agentsim.launch", "agentsim.advance", "agentsim.session.id"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("span output missing %q", want)
		}
	}
	if strings.Contains(stdout.String(), "agentsim.advance") {
		t.Error("spans leaked into stdout")
	}
}

func TestApp_Run_ConstraintsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constraints.txt")
	if err := os.WriteFile(path, []byte("budget under 5k\n\n  ship by May  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "plan", "Launch a beta", "--constraints-file", path)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	for _, want := range []string{"Goal: Launch a beta", "Constraint: budget under 5k", "Constraint: ship by May", "1. ["} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestApp_SessionsAndExport_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "agentsim.db")
	store := []string{"--store", "sqlite", "--dsn", dsn}

	out, err := execute(t, append([]string{"run", "Launch a beta", "--seed", "5", "--interval", "0"}, store...)...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	m := sessionLine.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no session id in output:\n%s", out)
	}
	id := m[1]

	out, err = execute(t, append([]string{"sessions", "list"}, store...)...)
	if err != nil {
		t.Fatalf("sessions list failed: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "success") {
		t.Errorf("sessions list missing %s:\n%s", id, out)
	}

	out, err = execute(t, append([]string{"sessions", "show", id}, store...)...)
	if err != nil {
		t.Fatalf("sessions show failed: %v", err)
	}
	if !strings.Contains(out, "# Session "+id) {
		t.Errorf("sessions show output:\n%s", out)
	}

	out, err = execute(t, append([]string{"sessions", "summary"}, store...)...)
	if err != nil {
		t.Fatalf("sessions summary failed: %v", err)
	}
	if !strings.Contains(out, "Succeeded:          1") {
		t.Errorf("sessions summary output:\n%s", out)
	}

	out, err = execute(t, append([]string{"sessions", "replay", id}, store...)...)
	if err != nil {
		t.Fatalf("sessions replay failed: %v", err)
	}
	if !strings.Contains(out, "Session "+id+":") || !strings.Contains(out, "step-1") || !strings.Contains(out, "completed") {
		t.Errorf("sessions replay output:\n%s", out)
	}
	if _, err := execute(t, append([]string{"sessions", "replay", "nope"}, store...)...); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("replay unknown session error = %v, want ErrSessionNotFound", err)
	}

	out, err = execute(t, append([]string{"export", id, "-f", "dot"}, store...)...)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(out, "digraph Plan {") {
		t.Errorf("export output:\n%s", out)
	}

	exportPath := filepath.Join(t.TempDir(), "session.json")
	if _, err := execute(t, append([]string{"export", id, "-o", exportPath}, store...)...); err != nil {
		t.Fatalf("export -o failed: %v", err)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var exp inspector.SessionExport
	if err := json.Unmarshal(data, &exp); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if exp.Session.ID != id || exp.Session.Status != agent.StatusSuccess {
		t.Errorf("export session = %s/%s", exp.Session.ID, exp.Session.Status)
	}

	if _, err := execute(t, append([]string{"export", id, "-f", "html"}, store...)...); !errors.Is(err, inspector.ErrInvalidFormat) {
		t.Errorf("export -f html error = %v, want ErrInvalidFormat", err)
	}

	if _, err := execute(t, append([]string{"sessions", "delete", id}, store...)...); err != nil {
		t.Fatalf("sessions delete failed: %v", err)
	}
	if _, err := execute(t, append([]string{"export", id}, store...)...); !errors.Is(err, inspector.ErrSessionNotFound) {
		t.Errorf("export after delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestApp_Lifecycle(t *testing.T) {
	out, err := execute(t, "lifecycle")
	if err != nil {
		t.Fatalf("lifecycle failed: %v", err)
	}
	if !strings.Contains(out, "stateDiagram-v2") {
		t.Errorf("lifecycle output:\n%s", out)
	}

	out, err = execute(t, "lifecycle", "-f", "md")
	if err != nil {
		t.Fatalf("lifecycle -f md failed: %v", err)
	}
	if !strings.Contains(out, "# Step lifecycle") {
		t.Errorf("lifecycle markdown output:\n%s", out)
	}
}

func TestApp_Config(t *testing.T) {
	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "backend: memory") {
		t.Errorf("config show output:\n%s", out)
	}

	out, err = execute(t, "config", "show", "-f", "json", "--store", "badger", "--dir", "/tmp/agentsim")
	if err != nil {
		t.Fatalf("config show -f json failed: %v", err)
	}
	var cfg config.SimulatorConfig
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("config show output is not JSON: %v", err)
	}
	if cfg.Storage.Backend != config.BackendBadger || cfg.Storage.Dir != "/tmp/agentsim" {
		t.Errorf("storage = %+v, want badger overrides", cfg.Storage)
	}

	out, err = execute(t, "config", "schema")
	if err != nil {
		t.Fatalf("config schema failed: %v", err)
	}
	if !json.Valid([]byte(out)) {
		t.Errorf("config schema is not JSON:\n%s", out)
	}
}

func TestApp_ConfigValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	if err := os.WriteFile(valid, []byte("name: demo\nstorage:\n  backend: memory\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("engine:\n  completion_probability: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "validate", valid)
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Errorf("config validate output:\n%s", out)
	}

	if _, err := execute(t, "config", "validate", invalid); !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("invalid config error = %v, want ErrValidationFailed", err)
	}

	if _, err := execute(t, "-c", invalid, "version"); !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("-c invalid error = %v, want ErrValidationFailed", err)
	}
}
