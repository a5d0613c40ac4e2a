package config

import "errors"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidFormat wraps YAML, JSON and duration parse failures.
	ErrInvalidFormat = errors.New("invalid configuration format")

	// ErrUnsupportedFormat is returned for extensions other than .yaml, .yml and .json.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrValidationFailed is matched by every ValidationErrors value.
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrMissingEnvVar is returned by strict expansion of an unset ${VAR}.
	ErrMissingEnvVar = errors.New("required environment variable not set")
)
