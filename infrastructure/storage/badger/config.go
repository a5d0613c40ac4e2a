// Package badger provides BadgerDB-backed session and event stores.
package badger

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config configures BadgerDB storage.
type Config struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM (tests).
	InMemory bool

	// SyncWrites fsyncs every advancement before Update returns.
	SyncWrites bool

	// ValueLogFileSize is the size of each value log file in bytes.
	ValueLogFileSize int64

	// KeyPrefix is added to every session and event key.
	KeyPrefix string

	// Retention expires a session this long after it succeeds. Zero keeps it.
	Retention time.Duration

	// GCInterval is the time between value log collections (0 disables).
	GCInterval time.Duration

	// GCDiscardRatio is the garbage fraction that makes a file eligible.
	GCDiscardRatio float64
}

// DefaultConfig returns an on-disk configuration that never expires sessions.
func DefaultConfig() Config {
	return Config{
		ValueLogFileSize: 64 << 20,
		GCInterval:       5 * time.Minute,
		GCDiscardRatio:   0.5,
	}
}

// Option configures BadgerDB storage.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithInMemory keeps the database in memory.
func WithInMemory() Option {
	return func(c *Config) {
		c.InMemory = true
	}
}

// WithSyncWrites enables synchronous writes.
func WithSyncWrites() Option {
	return func(c *Config) {
		c.SyncWrites = true
	}
}

// WithValueLogFileSize sets the value log file size.
func WithValueLogFileSize(size int64) Option {
	return func(c *Config) {
		c.ValueLogFileSize = size
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithRetention expires succeeded sessions after d.
func WithRetention(d time.Duration) Option {
	return func(c *Config) {
		c.Retention = d
	}
}

// WithGCInterval sets the value log GC interval.
func WithGCInterval(d time.Duration) Option {
	return func(c *Config) {
		c.GCInterval = d
	}
}

// ErrOpenFailed is returned when the database cannot be opened.
var ErrOpenFailed = errors.New("badger: open failed")

func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.Join(ErrOpenFailed, errors.New("dir is required"))
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		// Badger's own logger would interleave with command output.
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrOpenFailed, err)
	}
	return db, nil
}
