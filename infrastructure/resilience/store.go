// Package resilience wraps session persistence in fortify's bulkhead,
// circuit breaker and retry patterns.
package resilience

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/agentsim/domain/session"
	"github.com/felixgeelhaar/agentsim/infrastructure/logging"
)

// Store is the persistence surface the decorator protects.
type Store = session.Store

// Config configures the resilient session store.
type Config struct {
	// MaxConcurrent limits concurrent store calls.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts per call.
	RetryMaxAttempts int

	// RetryInitialDelay is the delay before the second attempt.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// CallTimeout bounds a single call including its retries (0 = none).
	CallTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       50 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		CallTimeout:             10 * time.Second,
	}
}

// SessionStore decorates a session.Store. Transient backend failures are
// retried with exponential backoff and repeated failures open the circuit.
// Domain outcomes such as ErrSessionNotFound pass through on the first
// attempt and never count against the breaker.
type SessionStore struct {
	inner    Store
	bulkhead bulkhead.Bulkhead[any]
	breaker  circuitbreaker.CircuitBreaker[any]
	retry    retry.Retry[any]
	timeout  time.Duration
}

// NewSessionStore wraps inner with the given configuration.
func NewSessionStore(inner Store, config Config) *SessionStore {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	threshold := config.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	attempts := config.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	multiplier := config.RetryBackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	return &SessionStore{
		inner: inner,
		bulkhead: bulkhead.New[any](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[any](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		retry: retry.New[any](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  config.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    multiplier,
		}),
		timeout: config.CallTimeout,
	}
}

// permanent reports errors that describe the request rather than the backend.
func permanent(err error) bool {
	return errors.Is(err, session.ErrSessionNotFound) ||
		errors.Is(err, session.ErrSessionExists) ||
		errors.Is(err, session.ErrInvalidSessionID) ||
		errors.Is(err, session.ErrStoreClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// do runs fn through bulkhead, timeout, breaker and retry.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry
func (s *SessionStore) do(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var outcome error
	attempt := 0
	_, err := s.bulkhead.Execute(ctx, func(ctx context.Context) (any, error) {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return s.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return s.retry.Do(ctx, func(ctx context.Context) (any, error) {
				attempt++
				err := fn(ctx)
				if err != nil && permanent(err) {
					// Reported to the caller without tripping retry or breaker.
					outcome = err
					return nil, nil
				}
				if err != nil {
					logging.Debug().
						Add(logging.Component("resilience")).
						Add(logging.Str("op", op)).
						Add(logging.Count("attempt", attempt)).
						Add(logging.ErrorField(err)).
						Msg("store call failed")
				}
				return nil, err
			})
		})
	})
	if err != nil {
		logging.Warn().
			Add(logging.Component("resilience")).
			Add(logging.Str("op", op)).
			Add(logging.Str("breaker", s.breaker.State().String())).
			Add(logging.ErrorField(err)).
			Msg("store call gave up")
		return err
	}
	return outcome
}

// Save persists a new session.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	return s.do(ctx, "save", func(ctx context.Context) error {
		return s.inner.Save(ctx, sess)
	})
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var out *session.Session
	err := s.do(ctx, "get", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	return s.do(ctx, "update", func(ctx context.Context) error {
		return s.inner.Update(ctx, sess)
	})
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.do(ctx, "delete", func(ctx context.Context) error {
		return s.inner.Delete(ctx, id)
	})
}

// List returns sessions matching the filter.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	var out []*session.Session
	err := s.do(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = s.inner.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter session.ListFilter) (int64, error) {
	var out int64
	err := s.do(ctx, "count", func(ctx context.Context) error {
		var err error
		out, err = s.inner.Count(ctx, filter)
		return err
	})
	return out, err
}

// Summary aggregates through the inner store when it supports it and
// falls back to summarizing a full listing otherwise.
func (s *SessionStore) Summary(ctx context.Context, filter session.ListFilter) (session.Summary, error) {
	var out session.Summary
	err := s.do(ctx, "summary", func(ctx context.Context) error {
		if p, ok := s.inner.(session.SummaryProvider); ok {
			var err error
			out, err = p.Summary(ctx, filter)
			return err
		}
		filter.Limit, filter.Offset = 0, 0
		all, err := s.inner.List(ctx, filter)
		if err != nil {
			return err
		}
		out = session.Summarize(all)
		return nil
	})
	return out, err
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (s *SessionStore) CircuitBreakerState() circuitbreaker.State {
	return s.breaker.State()
}

// Unwrap returns the decorated store.
func (s *SessionStore) Unwrap() Store {
	return s.inner
}

// Close closes the inner store when it holds resources.
func (s *SessionStore) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var (
	_ session.Store           = (*SessionStore)(nil)
	_ session.SummaryProvider = (*SessionStore)(nil)
)
