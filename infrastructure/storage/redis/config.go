// Package redis provides a Redis-backed session store.
package redis

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection and retention settings.
type Config struct {
	Address  string
	Password string
	DB       int

	// KeyPrefix namespaces session keys so several simulators can share a server.
	KeyPrefix string

	// Retention expires a session this long after it succeeds. Zero keeps
	// finished sessions until they are deleted.
	Retention time.Duration

	DialTimeout time.Duration
	PoolSize    int
}

// DefaultConfig returns a local, non-expiring configuration.
func DefaultConfig() Config {
	return Config{
		Address:     "localhost:6379",
		KeyPrefix:   "agentsim:",
		DialTimeout: 5 * time.Second,
		PoolSize:    10,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("redis: invalid config")

// Validate reports settings the store cannot work with.
func (c Config) Validate() error {
	switch {
	case c.Address == "":
		return errors.Join(ErrInvalidConfig, errors.New("address is required"))
	case c.Retention < 0:
		return errors.Join(ErrInvalidConfig, errors.New("retention must not be negative"))
	}
	return nil
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:        c.Address,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
		PoolSize:    c.PoolSize,
	}
}

// ConfigOption configures the Redis connection.
type ConfigOption func(*Config)

// WithAddress sets the Redis server address.
func WithAddress(addr string) ConfigOption {
	return func(c *Config) {
		c.Address = addr
	}
}

// WithPassword sets the authentication password.
func WithPassword(password string) ConfigOption {
	return func(c *Config) {
		c.Password = password
	}
}

// WithDB sets the database index.
func WithDB(db int) ConfigOption {
	return func(c *Config) {
		c.DB = db
	}
}

// WithKeyPrefix sets the key prefix for namespacing.
func WithKeyPrefix(prefix string) ConfigOption {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithRetention expires succeeded sessions after d.
func WithRetention(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Retention = d
	}
}
