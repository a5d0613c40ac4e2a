// Package mongodb provides a MongoDB-backed session store.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/felixgeelhaar/agentsim/domain/session"
)

// Config configures the MongoDB connection.
type Config struct {
	// URI is the connection string (mongodb://...).
	URI string

	// Database holds the sessions collection.
	Database string

	// Collection is the sessions collection name.
	Collection string

	// ConnectTimeout bounds the initial connection and ping.
	ConnectTimeout time.Duration

	// QueryTimeout bounds every store operation.
	QueryTimeout time.Duration
}

// DefaultConfig returns a Config for a local development server.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "agentsim",
		Collection:     "sessions",
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   5 * time.Second,
	}
}

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Join(session.ErrConnectionFailed, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Join(session.ErrConnectionFailed, err)
	}

	return client, nil
}
