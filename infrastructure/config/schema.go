package config

import (
	"encoding/json"

	domainconfig "github.com/felixgeelhaar/agentsim/domain/config"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *JSONSchema            `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	MinLength            *int                   `json:"minLength,omitempty"`
	MaxLength            *int                   `json:"maxLength,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
	Ref                  string                 `json:"$ref,omitempty"`
	Definitions          map[string]*JSONSchema `json:"$defs,omitempty"`
	OneOf                []*JSONSchema          `json:"oneOf,omitempty"`
	AnyOf                []*JSONSchema          `json:"anyOf,omitempty"`
	AllOf                []*JSONSchema          `json:"allOf,omitempty"`
}

// GenerateSchema generates a JSON Schema for SimulatorConfig.
func GenerateSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/felixgeelhaar/agentsim/simulator-config.schema.json",
		Title:       "Simulator Configuration",
		Description: "Configuration schema for the agentsim simulator",
		Type:        "object",
		Required:    []string{"name"},
		Properties: map[string]*JSONSchema{
			"name": {
				Type:        "string",
				Description: "A human-readable name for this configuration",
				Default:     "agentsim",
			},
			"version": {
				Type:        "string",
				Description: "The configuration schema version",
				Default:     "1",
			},
			"engine":     generateEngineSchema(),
			"driver":     generateDriverSchema(),
			"storage":    generateStorageSchema(),
			"resilience": generateResilienceSchema(),
			"logging":    generateLoggingSchema(),
			"telemetry":  generateTelemetrySchema(),
		},
	}
}

func durationSchema(description, def string) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: description,
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Default:     def,
	}
}

func generateEngineSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "How the agent advances through its plan",
		Properties: map[string]*JSONSchema{
			"min_attempts": {
				Type:        "integer",
				Description: "Attempts before a step may complete",
				Default:     1,
				Minimum:     floatPtr(1),
			},
			"max_attempts": {
				Type:        "integer",
				Description: "Attempt at which a step is forced to complete",
				Default:     3,
				Minimum:     floatPtr(1),
			},
			"completion_probability": {
				Type:        "number",
				Description: "Chance an eligible attempt completes its step",
				Default:     0.5,
				Minimum:     floatPtr(0),
				Maximum:     floatPtr(1),
			},
			"seed": {
				Type:        "integer",
				Description: "Makes a run reproducible when non-zero",
				Minimum:     floatPtr(0),
			},
		},
	}
}

func generateDriverSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Cadence of a live run",
		Properties: map[string]*JSONSchema{
			"interval": durationSchema("Delay between advancements", "750ms"),
			"max_iterations": {
				Type:        "integer",
				Description: "Stops a run that has not finished (0 derives the bound from the plan)",
				Minimum:     floatPtr(0),
			},
			"rate_limit": {
				Type:        "integer",
				Description: "Manual advancements per second (0 = unlimited)",
				Minimum:     floatPtr(0),
			},
		},
	}
}

func generateStorageSchema() *JSONSchema {
	str := func(description string) *JSONSchema {
		return &JSONSchema{Type: "string", Description: description}
	}
	return &JSONSchema{
		Type:        "object",
		Description: "Session persistence",
		Properties: map[string]*JSONSchema{
			"backend": {
				Type:        "string",
				Description: "Store implementation",
				Enum: []string{
					domainconfig.BackendMemory,
					domainconfig.BackendSQLite,
					domainconfig.BackendBadger,
					domainconfig.BackendRedis,
					domainconfig.BackendPostgres,
					domainconfig.BackendMongoDB,
					domainconfig.BackendDynamoDB,
				},
				Default: domainconfig.BackendMemory,
			},
			"dsn":        str("SQLite data source or Postgres connection string"),
			"schema":     str("Postgres schema"),
			"dir":        str("Badger data directory"),
			"address":    str("Redis address (host:port)"),
			"password":   str("Redis password"),
			"key_prefix": str("Namespace for Redis and Badger keys"),
			"uri":        str("MongoDB connection URI"),
			"database":   str("MongoDB database"),
			"region":     str("AWS region for DynamoDB"),
			"table":      str("DynamoDB table"),
			"endpoint":   str("DynamoDB endpoint override"),
			"retention":  durationSchema("How long Redis, Badger and DynamoDB keep a succeeded session (0 keeps it)", "0s"),
		},
	}
}

func generateResilienceSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Retry and circuit breaking around the session store",
		Properties: map[string]*JSONSchema{
			"retry": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"enabled": {Type: "boolean", Default: false},
					"max_attempts": {
						Type:    "integer",
						Default: 3,
						Minimum: floatPtr(1),
					},
					"initial_delay": durationSchema("Delay before the second attempt", "50ms"),
					"multiplier": {
						Type:    "number",
						Default: 2.0,
						Minimum: floatPtr(1),
					},
				},
			},
			"circuit_breaker": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"enabled": {Type: "boolean", Default: false},
					"threshold": {
						Type:        "integer",
						Description: "Consecutive failures before opening",
						Default:     5,
						Minimum:     floatPtr(1),
					},
					"timeout": durationSchema("How long the circuit stays open", "30s"),
				},
			},
		},
	}
}

func generateLoggingSchema() *JSONSchema {
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"level": {
				Type:    "string",
				Enum:    []string{"trace", "debug", "info", "warn", "error"},
				Default: "info",
			},
			"format": {
				Type:    "string",
				Enum:    []string{"json", "console"},
				Default: "console",
			},
		},
	}
}

func generateTelemetrySchema() *JSONSchema {
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"enabled":    {Type: "boolean", Default: false},
			"meter_name": {Type: "string", Default: "agentsim"},
			"metrics": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"exporter": {
						Type:        "string",
						Description: "Metric exporter",
						Enum:        []string{"none", "otlp"},
						Default:     "none",
					},
					"endpoint": {Type: "string", Description: "OTLP HTTP endpoint"},
					"insecure": {Type: "boolean", Default: false},
					"interval": durationSchema("Push period", "15s"),
				},
			},
			"tracing": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"exporter": {
						Type:        "string",
						Description: "Span exporter",
						Enum:        []string{"none", "stdout", "otlp"},
						Default:     "none",
					},
					"endpoint": {Type: "string", Description: "OTLP gRPC endpoint"},
					"insecure": {Type: "boolean", Default: false},
					"sample_rate": {
						Type:    "number",
						Minimum: floatPtr(0),
						Maximum: floatPtr(1),
						Default: 1,
					},
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

// SchemaJSON returns the schema as indented JSON.
func SchemaJSON() (string, error) {
	data, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
