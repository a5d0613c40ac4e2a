// Package config provides domain models for simulator configuration.
package config

import (
	"fmt"
	"time"
)

// SimulatorConfig represents the complete simulator configuration.
type SimulatorConfig struct {
	// Name is a human-readable name for this configuration.
	Name string `json:"name" yaml:"name"`
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`

	// Engine tunes how the agent advances.
	Engine EngineSettings `json:"engine,omitempty" yaml:"engine,omitempty"`
	// Driver tunes the cadence of a live run.
	Driver DriverSettings `json:"driver,omitempty" yaml:"driver,omitempty"`
	// Storage selects where sessions are persisted.
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	// Resilience wraps the session store.
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
	// Logging configures the structured logger.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// EngineSettings controls step attempts and outcome randomness.
type EngineSettings struct {
	// MinAttempts is the number of attempts before a step may complete.
	MinAttempts int `json:"min_attempts,omitempty" yaml:"min_attempts,omitempty"`
	// MaxAttempts is the attempt at which a step is forced to complete.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// CompletionProbability is the chance an eligible attempt completes its step.
	CompletionProbability float64 `json:"completion_probability,omitempty" yaml:"completion_probability,omitempty"`
	// Seed makes a run reproducible when non-zero.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DriverSettings controls a live run.
type DriverSettings struct {
	// Interval is the delay between advancements.
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	// MaxIterations stops a run that has not finished (0 = derived from the plan).
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	// RateLimit caps advancements per second across sessions (0 = unlimited).
	RateLimit int `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
	BackendDynamoDB = "dynamodb"
)

// StorageConfig selects and configures the session store backend.
type StorageConfig struct {
	// Backend names the store implementation.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// DSN is the SQLite data source or the Postgres connection string.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Schema is the Postgres schema.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// URI is the MongoDB connection URI.
	URI string `json:"uri,omitempty" yaml:"uri,omitempty"`
	// Database is the MongoDB database.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	// Region is the AWS region for DynamoDB.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
	// Table is the DynamoDB table.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
	// Endpoint overrides the DynamoDB endpoint (local development).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Dir is the Badger data directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// Address is the Redis server address.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Password is the Redis password.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// KeyPrefix namespaces Redis and Badger keys.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	// Retention expires succeeded sessions in Redis, Badger and DynamoDB (0 keeps them).
	Retention Duration `json:"retention,omitempty" yaml:"retention,omitempty"`
}

// ResilienceConfig contains resilience settings for store access.
type ResilienceConfig struct {
	// Retry configures retry behavior.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configures circuit breaker behavior.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// Enabled enables retry.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// MaxAttempts is the maximum retry attempts.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// InitialDelay is the first retry delay.
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	// Multiplier is the backoff multiplier.
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Enabled enables circuit breaker.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Threshold is consecutive failures before opening.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Timeout is how long the circuit stays open.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or console.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	Enabled   bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MeterName string        `json:"meter_name,omitempty" yaml:"meter_name,omitempty"`
	Metrics   MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing   TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures where measurements are pushed when telemetry
// is enabled. Without an exporter nothing is recorded.
type MetricsConfig struct {
	// Exporter is none or otlp.
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	// Endpoint is the OTLP HTTP collector, host:port.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// Interval is the push period.
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// TracingConfig configures span export for launches and advancements.
type TracingConfig struct {
	// Exporter is none, stdout or otlp.
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	// Endpoint is the OTLP gRPC endpoint.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Insecure disables TLS to the endpoint.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// SampleRate is the fraction of sessions traced.
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// Default returns a configuration with every field populated.
func Default() SimulatorConfig {
	return SimulatorConfig{
		Name:    "agentsim",
		Version: "1",
		Engine: EngineSettings{
			MinAttempts:           1,
			MaxAttempts:           3,
			CompletionProbability: 0.5,
		},
		Driver: DriverSettings{
			Interval: Duration(750 * time.Millisecond),
		},
		Storage: StorageConfig{
			Backend:   BackendMemory,
			KeyPrefix: "agentsim:",
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(50 * time.Millisecond),
				Multiplier:   2,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold: 5,
				Timeout:   Duration(30 * time.Second),
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			MeterName: "agentsim",
			Metrics: MetricsConfig{
				Exporter: "none",
				Interval: Duration(15 * time.Second),
			},
			Tracing: TracingConfig{
				Exporter:   "none",
				SampleRate: 1,
			},
		},
	}
}

// ApplyDefaults fills zero-valued fields from Default.
func (c *SimulatorConfig) ApplyDefaults() {
	d := Default()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Engine.MaxAttempts == 0 {
		c.Engine.MaxAttempts = d.Engine.MaxAttempts
		if c.Engine.MinAttempts == 0 {
			c.Engine.MinAttempts = d.Engine.MinAttempts
		}
	}
	if c.Engine.CompletionProbability == 0 {
		c.Engine.CompletionProbability = d.Engine.CompletionProbability
	}
	if c.Driver.Interval == 0 {
		c.Driver.Interval = d.Driver.Interval
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = d.Storage.KeyPrefix
	}
	if c.Resilience.Retry.MaxAttempts == 0 {
		c.Resilience.Retry.MaxAttempts = d.Resilience.Retry.MaxAttempts
	}
	if c.Resilience.Retry.InitialDelay == 0 {
		c.Resilience.Retry.InitialDelay = d.Resilience.Retry.InitialDelay
	}
	if c.Resilience.Retry.Multiplier == 0 {
		c.Resilience.Retry.Multiplier = d.Resilience.Retry.Multiplier
	}
	if c.Resilience.CircuitBreaker.Threshold == 0 {
		c.Resilience.CircuitBreaker.Threshold = d.Resilience.CircuitBreaker.Threshold
	}
	if c.Resilience.CircuitBreaker.Timeout == 0 {
		c.Resilience.CircuitBreaker.Timeout = d.Resilience.CircuitBreaker.Timeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Telemetry.MeterName == "" {
		c.Telemetry.MeterName = d.Telemetry.MeterName
	}
	if c.Telemetry.Metrics.Exporter == "" {
		c.Telemetry.Metrics.Exporter = d.Telemetry.Metrics.Exporter
	}
	if c.Telemetry.Metrics.Interval == 0 {
		c.Telemetry.Metrics.Interval = d.Telemetry.Metrics.Interval
	}
	if c.Telemetry.Tracing.Exporter == "" {
		c.Telemetry.Tracing.Exporter = d.Telemetry.Tracing.Exporter
	}
	if c.Telemetry.Tracing.SampleRate == 0 {
		c.Telemetry.Tracing.SampleRate = d.Telemetry.Tracing.SampleRate
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
