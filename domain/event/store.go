package event

import "context"

// Store persists the event feed of driver sessions.
type Store interface {
	// Append persists records and assigns their sequence numbers in order.
	Append(ctx context.Context, records ...Record) error

	// Load retrieves all records for a session in sequence order.
	Load(ctx context.Context, sessionID string) ([]Record, error)

	// LoadFrom retrieves records with a sequence number >= fromSeq.
	LoadFrom(ctx context.Context, sessionID string, fromSeq uint64) ([]Record, error)

	// Subscribe returns a channel that receives new records for a session.
	// The channel is closed when the context is cancelled.
	Subscribe(ctx context.Context, sessionID string) (<-chan Record, error)
}

// Publisher publishes timeline records to a feed.
type Publisher interface {
	// Publish sends records to the feed.
	Publish(ctx context.Context, records ...Record) error

	// Close releases any resources held by the publisher.
	Close() error
}
