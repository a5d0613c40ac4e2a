// Package event provides the buffered publisher that feeds session timelines
// into an event store.
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/event"
)

// Publisher publishes timeline records to an event store.
type Publisher struct {
	store        event.Store
	buffer       []event.Record
	bufSize      int
	closeTimeout time.Duration
	closed       bool
	mu           sync.Mutex
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithBufferSize sets the record buffer size. Zero publishes immediately.
func WithBufferSize(size int) PublisherOption {
	return func(p *Publisher) {
		p.bufSize = size
	}
}

// WithCloseTimeout bounds the final flush performed by Close.
func WithCloseTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.closeTimeout = d
	}
}

// NewPublisher creates a new publisher.
func NewPublisher(store event.Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:        store,
		closeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize > 0 {
		p.buffer = make([]event.Record, 0, p.bufSize)
	}
	return p
}

// Publish sends records to the event store.
func (p *Publisher) Publish(ctx context.Context, records ...event.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.SessionID == "" {
			return event.ErrInvalidSessionID
		}
		if !r.Event.Type.IsValid() {
			return fmt.Errorf("%w: unknown type %q", event.ErrInvalidEvent, r.Event.Type)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return event.ErrSubscriptionClosed
	}

	if p.bufSize == 0 {
		return p.store.Append(ctx, records...)
	}

	p.buffer = append(p.buffer, records...)
	if len(p.buffer) >= p.bufSize {
		return p.flush(ctx)
	}
	return nil
}

// Flush writes all buffered records to the store.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flush(ctx)
}

// Buffered returns the number of records waiting to be flushed.
func (p *Publisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// flush writes buffered records to the store (must hold lock).
func (p *Publisher) flush(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}
	if err := p.store.Append(ctx, p.buffer...); err != nil {
		return fmt.Errorf("flush %d records: %w", len(p.buffer), err)
	}
	p.buffer = p.buffer[:0]
	return nil
}

// Close flushes remaining records. Publishing after Close fails.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), p.closeTimeout)
	defer cancel()
	return p.flush(ctx)
}

// Ensure Publisher implements event.Publisher
var _ event.Publisher = (*Publisher)(nil)
