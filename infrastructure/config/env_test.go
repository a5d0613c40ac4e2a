package config

import (
	"errors"
	"testing"

	domainconfig "github.com/felixgeelhaar/agentsim/domain/config"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestEnvExpander_Expand(t *testing.T) {
	t.Parallel()

	env := fakeEnv(map[string]string{
		"HOST":  "db.local",
		"PORT":  "5432",
		"EMPTY": "",
	})

	tests := []struct {
		name    string
		input   string
		strict  bool
		want    string
		wantErr bool
	}{
		{"bracketed", "host: ${HOST}", false, "host: db.local", false},
		{"simple", "port: $PORT", false, "port: 5432", false},
		{"default used", "dir: ${DIR:-/tmp/agentsim}", false, "dir: /tmp/agentsim", false},
		{"default on empty", "v: ${EMPTY:-x}", false, "v: x", false},
		{"default ignored", "h: ${HOST:-other}", false, "h: db.local", false},
		{"unset lenient", "k: ${NOPE}", false, "k: ", false},
		{"unset strict", "k: ${NOPE}", true, "", true},
		{"required present", "h: ${HOST:?host is required}", false, "h: db.local", false},
		{"required missing", "h: ${NOPE:?host is required}", false, "", true},
		{"escaped dollar", "price: $$5", false, "price: $5", false},
		{"mixed", "dsn: postgres://${HOST}:$PORT/app", false, "dsn: postgres://db.local:5432/app", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := &envExpander{strict: tt.strict, lookup: env}
			got, err := e.Expand(tt.input)
			if tt.wantErr {
				if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
					t.Fatalf("Expand() error = %v, want ErrMissingEnvVar", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Expand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("AGENTSIM_TEST_LEVEL", "debug")

	if got := ExpandEnv("level: ${AGENTSIM_TEST_LEVEL}"); got != "level: debug" {
		t.Errorf("ExpandEnv() = %q", got)
	}
	if got := ExpandEnv("x: ${AGENTSIM_TEST_UNSET:?needed}"); got != "x: ${AGENTSIM_TEST_UNSET:?needed}" {
		t.Errorf("ExpandEnv() = %q, want input unchanged", got)
	}
	if _, err := ExpandEnvStrict("x: $AGENTSIM_TEST_UNSET"); err == nil {
		t.Error("ExpandEnvStrict() succeeded with an unset variable")
	}
}
