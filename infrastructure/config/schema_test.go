package config

import (
	"encoding/json"
	"testing"
)

func TestGenerateSchema(t *testing.T) {
	t.Parallel()

	schema := GenerateSchema()
	for _, section := range []string{"engine", "driver", "storage", "resilience", "logging", "telemetry"} {
		if schema.Properties[section] == nil {
			t.Errorf("schema is missing %q", section)
		}
	}

	backends := schema.Properties["storage"].Properties["backend"].Enum
	if len(backends) != 7 {
		t.Errorf("backend enum = %v, want 7 entries", backends)
	}

	prob := schema.Properties["engine"].Properties["completion_probability"]
	if prob.Minimum == nil || *prob.Minimum != 0 || prob.Maximum == nil || *prob.Maximum != 1 {
		t.Errorf("completion_probability bounds = %v..%v", prob.Minimum, prob.Maximum)
	}
}

func TestSchemaJSON(t *testing.T) {
	t.Parallel()

	out, err := SchemaJSON()
	if err != nil {
		t.Fatalf("SchemaJSON() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("SchemaJSON() is not valid JSON: %v", err)
	}
	if decoded["title"] != "Simulator Configuration" {
		t.Errorf("title = %v", decoded["title"])
	}
}
