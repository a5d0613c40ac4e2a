package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "no validation errors"
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// Unwrap lets errors.Is match ErrValidationFailed.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates simulator configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *SimulatorConfig) ValidationErrors {
	v.errors = nil

	v.validateRequired(config)
	v.validateEngine(config)
	v.validateDriver(config)
	v.validateStorage(config)
	v.validateResilience(config)
	v.validateLogging(config)
	v.validateMetrics(config)
	v.validateTracing(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateRequired(config *SimulatorConfig) {
	if config.Name == "" {
		v.addError("name", "name is required")
	}
	if config.Version == "" {
		v.addError("version", "version is required")
	}
}

func (v *Validator) validateEngine(config *SimulatorConfig) {
	e := config.Engine
	if e.MaxAttempts < 1 {
		v.addError("engine.max_attempts", "must be at least 1")
	}
	if e.MinAttempts < 0 {
		v.addError("engine.min_attempts", "must be non-negative")
	}
	if e.MinAttempts > e.MaxAttempts {
		v.addError("engine.min_attempts", "must not exceed max_attempts")
	}
	if e.CompletionProbability < 0 || e.CompletionProbability > 1 {
		v.addError("engine.completion_probability", "must be between 0 and 1")
	}
}

func (v *Validator) validateDriver(config *SimulatorConfig) {
	if config.Driver.Interval < 0 {
		v.addError("driver.interval", "must be non-negative")
	}
	if config.Driver.MaxIterations < 0 {
		v.addError("driver.max_iterations", "must be non-negative")
	}
	if config.Driver.RateLimit < 0 {
		v.addError("driver.rate_limit", "must be non-negative")
	}
}

func (v *Validator) validateStorage(config *SimulatorConfig) {
	s := config.Storage
	switch s.Backend {
	case "", BackendMemory:
	case BackendSQLite:
		if s.DSN == "" {
			v.addError("storage.dsn", "dsn is required for sqlite backend")
		}
	case BackendBadger:
		if s.Dir == "" {
			v.addError("storage.dir", "dir is required for badger backend")
		}
	case BackendRedis:
		if s.Address == "" {
			v.addError("storage.address", "address is required for redis backend")
		}
	case BackendPostgres:
		if s.DSN == "" {
			v.addError("storage.dsn", "dsn is required for postgres backend")
		}
	case BackendMongoDB:
		if s.URI == "" {
			v.addError("storage.uri", "uri is required for mongodb backend")
		}
	case BackendDynamoDB:
		if s.Region == "" && s.Endpoint == "" {
			v.addError("storage.region", "region or endpoint is required for dynamodb backend")
		}
	default:
		v.addError("storage.backend", fmt.Sprintf("unknown backend %q", s.Backend))
	}
	if s.Retention < 0 {
		v.addError("storage.retention", "must not be negative")
	}
}

func (v *Validator) validateResilience(config *SimulatorConfig) {
	r := config.Resilience
	if r.Retry.Enabled {
		if r.Retry.MaxAttempts < 1 {
			v.addError("resilience.retry.max_attempts", "must be at least 1")
		}
		if r.Retry.Multiplier != 0 && r.Retry.Multiplier < 1 {
			v.addError("resilience.retry.multiplier", "must be at least 1")
		}
	}
	if r.CircuitBreaker.Enabled && r.CircuitBreaker.Threshold < 1 {
		v.addError("resilience.circuit_breaker.threshold", "must be at least 1")
	}
}

func (v *Validator) validateLogging(config *SimulatorConfig) {
	switch strings.ToLower(config.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("unknown level %q", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "", "json", "console":
	default:
		v.addError("logging.format", fmt.Sprintf("unknown format %q", config.Logging.Format))
	}
}

func (v *Validator) validateMetrics(config *SimulatorConfig) {
	m := config.Telemetry.Metrics
	switch m.Exporter {
	case "", "none":
	case "otlp":
		if m.Endpoint == "" {
			v.addError("telemetry.metrics.endpoint", "is required for the otlp exporter")
		}
	default:
		v.addError("telemetry.metrics.exporter", fmt.Sprintf("unknown exporter %q", m.Exporter))
	}
	if m.Interval < 0 {
		v.addError("telemetry.metrics.interval", "must not be negative")
	}
}

func (v *Validator) validateTracing(config *SimulatorConfig) {
	t := config.Telemetry.Tracing
	switch t.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if t.Endpoint == "" {
			v.addError("telemetry.tracing.endpoint", "is required for the otlp exporter")
		}
	default:
		v.addError("telemetry.tracing.exporter", fmt.Sprintf("unknown exporter %q", t.Exporter))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		v.addError("telemetry.tracing.sample_rate", "must be between 0 and 1")
	}
}
