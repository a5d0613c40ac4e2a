// Package postgres provides a PostgreSQL-backed session store on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/agentsim/domain/session"
)

// Config configures the connection pool.
type Config struct {
	// DSN is a postgres:// URL or a keyword/value string.
	DSN string

	// Schema holds the sessions table.
	Schema string

	// MaxConns caps the pool. A simulator writes from one driver at a time.
	MaxConns int32

	// ConnectTimeout bounds dialing and the initial ping.
	ConnectTimeout time.Duration
}

// DefaultConfig returns a small pool on the public schema.
func DefaultConfig() Config {
	return Config{
		Schema:         "public",
		MaxConns:       4,
		ConnectTimeout: 10 * time.Second,
	}
}

// poolConfig parses the DSN and applies the overrides.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	if c.DSN == "" {
		return nil, errors.New("dsn is required")
	}
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}
	return pc, nil
}

// Connect opens a pool and verifies the server is reachable.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, errors.Join(session.ErrConnectionFailed, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.Join(session.ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(session.ErrConnectionFailed, err)
	}
	return pool, nil
}
