package resilience

import (
	"math"
	"time"
)

// Option adjusts a Config.
type Option func(*Config)

// NewConfig returns DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Wrap decorates inner with NewConfig(opts...).
func Wrap(inner Store, opts ...Option) *SessionStore {
	return NewSessionStore(inner, NewConfig(opts...))
}

// WithRetry sets the attempts per call and the backoff curve. A zero delay
// or multiplier keeps the current value.
func WithRetry(attempts int, delay time.Duration, multiplier float64) Option {
	return func(c *Config) {
		c.RetryMaxAttempts = attempts
		if delay > 0 {
			c.RetryInitialDelay = delay
		}
		if multiplier > 0 {
			c.RetryBackoffMultiplier = multiplier
		}
	}
}

// WithoutRetry makes exactly one attempt per call.
func WithoutRetry() Option {
	return func(c *Config) { c.RetryMaxAttempts = 1 }
}

// WithBreaker opens the circuit after threshold consecutive failures and
// keeps it open for timeout. A zero timeout keeps the current value.
func WithBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) {
		c.CircuitBreakerThreshold = threshold
		if timeout > 0 {
			c.CircuitBreakerTimeout = timeout
		}
	}
}

// WithoutBreaker sets a threshold no run can reach.
func WithoutBreaker() Option {
	return func(c *Config) { c.CircuitBreakerThreshold = math.MaxInt32 }
}

// WithBulkhead caps concurrent store calls.
func WithBulkhead(n int) Option {
	return func(c *Config) { c.MaxConcurrent = n }
}

// WithTimeout bounds every store call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.CallTimeout = d }
}
