// Package sqlite provides SQLite-backed session and event stores.
package sqlite

import (
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Config configures SQLite storage.
type Config struct {
	// DSN is a file path or a go-sqlite3 "file:" URI.
	DSN string

	// MaxOpenConns caps the pool. In-memory databases always use one
	// connection since each connection would see its own database.
	MaxOpenConns int

	// ConnMaxIdleTime closes connections idle longer than this.
	ConnMaxIdleTime time.Duration

	// AutoMigrate creates the sessions and events tables if missing.
	AutoMigrate bool

	// JournalMode is the journal mode for every connection (e.g., "WAL").
	JournalMode string

	// BusyTimeout is how long a writer waits for a lock.
	BusyTimeout time.Duration
}

// Option configures SQLite storage.
type Option func(*Config)

// WithDSN sets the data source name.
func WithDSN(dsn string) Option {
	return func(c *Config) {
		c.DSN = dsn
	}
}

// WithMaxOpenConns sets the maximum open connections.
func WithMaxOpenConns(n int) Option {
	return func(c *Config) {
		c.MaxOpenConns = n
	}
}

// WithAutoMigrate enables automatic table creation.
func WithAutoMigrate() Option {
	return func(c *Config) {
		c.AutoMigrate = true
	}
}

// WithJournalMode sets the SQLite journal mode.
func WithJournalMode(mode string) Option {
	return func(c *Config) {
		c.JournalMode = mode
	}
}

// WithBusyTimeout sets the lock wait.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.BusyTimeout = d
	}
}

// DefaultConfig returns a WAL-mode database in the working directory.
func DefaultConfig() Config {
	return Config{
		DSN:             "file:agentsim.db?mode=rwc",
		MaxOpenConns:    4,
		ConnMaxIdleTime: 10 * time.Minute,
		AutoMigrate:     true,
		JournalMode:     "WAL",
		BusyTimeout:     5 * time.Second,
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("sqlite: connection failed")
	ErrMigrationFailed  = errors.New("sqlite: migration failed")
)

// inMemory reports whether dsn names a private in-memory database.
func inMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// connectionDSN adds the pragmas as go-sqlite3 DSN parameters so every
// pooled connection gets them. Parameters already in the DSN win.
func connectionDSN(cfg Config) string {
	base, rawQuery, _ := strings.Cut(cfg.DSN, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return cfg.DSN
	}

	set := func(key, value string) {
		if value != "" && !q.Has(key) {
			q.Set(key, value)
		}
	}
	if !inMemory(cfg.DSN) {
		set("_journal_mode", cfg.JournalMode)
	}
	if cfg.BusyTimeout > 0 {
		set("_busy_timeout", strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10))
	}
	set("_foreign_keys", "on")

	if !strings.HasPrefix(base, "file:") && base != ":memory:" {
		base = "file:" + base
	}
	return base + "?" + q.Encode()
}

func openDB(cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.Join(ErrConnectionFailed, errors.New("dsn is required"))
	}

	db, err := sql.Open("sqlite3", connectionDSN(cfg))
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	conns := cfg.MaxOpenConns
	if inMemory(cfg.DSN) || conns <= 0 {
		conns = 1
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}
