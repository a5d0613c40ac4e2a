// Package logging provides structured logging using bolt.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"
)

// Config configures the logger.
type Config struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format is the output format (json or console).
	Format string

	// Output is the output destination.
	Output io.Writer
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: os.Stderr,
	}
}

// CLIConfig returns a configuration that keeps logs off stdout so command
// output stays machine-readable.
func CLIConfig(level, format string) Config {
	return Config{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	}
}

var (
	mu          sync.RWMutex
	initialized bool
	current     Config
	logger      *bolt.Logger
)

// parseLevel converts a string level to bolt.Level.
func parseLevel(s string) bolt.Level {
	switch strings.ToLower(s) {
	case "trace":
		return bolt.TRACE
	case "debug":
		return bolt.DEBUG
	case "info":
		return bolt.INFO
	case "warn":
		return bolt.WARN
	case "error":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

func build(cfg Config) *bolt.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var handler bolt.Handler
	if cfg.Format == "json" {
		handler = bolt.NewJSONHandler(out)
	} else {
		handler = bolt.NewConsoleHandler(out)
	}
	return bolt.New(handler).SetLevel(parseLevel(cfg.Level))
}

// Init configures the default logger. Only the first call takes effect;
// later changes go through SetLevel and Redirect.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	current = cfg
	logger = build(cfg)
	initialized = true
}

// Get returns the default logger, initializing it with DefaultConfig if
// Init was never called.
func Get() *bolt.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(DefaultConfig())
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLevel changes the log level of the default logger.
func SetLevel(level string) {
	Get()
	mu.Lock()
	defer mu.Unlock()
	current.Level = level
	logger.SetLevel(parseLevel(level))
}

// Redirect sends subsequent log lines to w and returns a function that
// restores the previous destination. The dashboard uses it to keep the
// terminal clean while it owns the screen.
func Redirect(w io.Writer) (restore func()) {
	Get()
	mu.Lock()
	defer mu.Unlock()

	prev := current
	next := current
	next.Output = w
	current = next
	logger = build(next)

	return func() {
		mu.Lock()
		defer mu.Unlock()
		// Keep any level change made while redirected.
		prev.Level = current.Level
		current = prev
		logger = build(prev)
	}
}

// LogEvent is a wrapper that allows adding Fields to a bolt.Event.
type LogEvent struct {
	event *bolt.Event
}

// Add applies a field to the event and returns the wrapper for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg sends the log event with a message.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

// Send sends the log event without a message.
func (l *LogEvent) Send() {
	l.event.Send()
}

// Debug returns a LogEvent wrapper for debug level logging.
func Debug() *LogEvent {
	return &LogEvent{event: Get().Debug()}
}

// Info returns a LogEvent wrapper for info level logging.
func Info() *LogEvent {
	return &LogEvent{event: Get().Info()}
}

// Warn returns a LogEvent wrapper for warn level logging.
func Warn() *LogEvent {
	return &LogEvent{event: Get().Warn()}
}

// Error returns a LogEvent wrapper for error level logging.
func Error() *LogEvent {
	return &LogEvent{event: Get().Error()}
}
