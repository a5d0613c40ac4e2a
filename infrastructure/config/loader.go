// Package config loads simulator configuration and builds runtime components from it.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/agentsim/domain/config"
)

// Format is a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", config.ErrUnsupportedFormat, ext)
	}
}

// EnvMode selects how environment references in a file are treated.
type EnvMode int

const (
	// EnvLenient expands references and leaves unset ones empty.
	EnvLenient EnvMode = iota
	// EnvStrict expands references and fails on unset ones.
	EnvStrict
	// EnvOff keeps references as written.
	EnvOff
)

// Loader decodes simulator configuration. The zero value is not usable;
// call NewLoader.
type Loader struct {
	env     EnvMode
	lookup  func(string) (string, bool)
	raw     bool
	lenient bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnvMode sets how ${VAR} and $VAR references are handled.
func WithEnvMode(m EnvMode) LoaderOption {
	return func(l *Loader) { l.env = m }
}

// WithLookupEnv replaces os.LookupEnv as the variable source.
func WithLookupEnv(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.lookup = fn }
}

// WithRaw returns exactly what the file says: no defaults, no validation.
func WithRaw() LoaderOption {
	return func(l *Loader) { l.raw = true }
}

// WithUnknownFields tolerates keys the configuration does not define.
func WithUnknownFields() LoaderOption {
	return func(l *Loader) { l.lenient = true }
}

// NewLoader returns a loader that expands the environment leniently,
// rejects unknown keys, applies defaults and validates.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile reads and decodes the file at path, picking the format from
// its extension.
func (l *Loader) LoadFile(path string) (*config.SimulatorConfig, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("stat %s: %w", path, err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: %s is a directory", config.ErrInvalidFormat, path)
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l.Decode(data, format)
}

// Load decodes everything r yields.
func (l *Loader) Load(r io.Reader, format Format) (*config.SimulatorConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return l.Decode(data, format)
}

// Decode turns raw file content into a configuration.
func (l *Loader) Decode(data []byte, format Format) (*config.SimulatorConfig, error) {
	if l.env != EnvOff {
		e := &envExpander{strict: l.env == EnvStrict, lookup: l.lookup}
		expanded, err := e.Expand(string(data))
		if err != nil {
			return nil, err
		}
		data = []byte(expanded)
	}

	cfg := &config.SimulatorConfig{}
	if err := l.unmarshal(data, format, cfg); err != nil {
		return nil, err
	}
	if l.raw {
		return cfg, nil
	}

	cfg.ApplyDefaults()
	if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %v", config.ErrValidationFailed, errs)
	}
	return cfg, nil
}

func (l *Loader) unmarshal(data []byte, format Format, cfg *config.SimulatorConfig) error {
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(!l.lenient)
		if err = dec.Decode(cfg); errors.Is(err, io.EOF) {
			// An empty document is an empty configuration.
			err = nil
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if !l.lenient {
			dec.DisallowUnknownFields()
		}
		err = dec.Decode(cfg)
	default:
		return fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
	}
	return nil
}

// Encode writes cfg in the given format.
func Encode(w io.Writer, cfg *config.SimulatorConfig, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}
}
