package resilience

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/memory"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/storetest"
)

var created = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// flakyStore fails the first n calls to Get with a connection error.
type flakyStore struct {
	session.Store
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyStore) Get(ctx context.Context, id string) (*session.Session, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, session.ErrConnectionFailed
	}
	return f.Store.Get(ctx, id)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryInitialDelay = time.Millisecond
	cfg.CallTimeout = time.Second
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", config.MaxConcurrent)
	}
	if config.CircuitBreakerThreshold != 5 {
		t.Errorf("CircuitBreakerThreshold = %d, want 5", config.CircuitBreakerThreshold)
	}
	if config.RetryMaxAttempts != 3 {
		t.Errorf("RetryMaxAttempts = %d, want 3", config.RetryMaxAttempts)
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
		want func(*Config)
	}{
		{
			name: "all set",
			opts: []Option{
				WithBulkhead(20),
				WithBreaker(7, time.Minute),
				WithRetry(4, time.Second, 1.5),
				WithTimeout(2 * time.Second),
			},
			want: func(c *Config) {
				c.MaxConcurrent = 20
				c.CircuitBreakerThreshold = 7
				c.CircuitBreakerTimeout = time.Minute
				c.RetryMaxAttempts = 4
				c.RetryInitialDelay = time.Second
				c.RetryBackoffMultiplier = 1.5
				c.CallTimeout = 2 * time.Second
			},
		},
		{
			name: "zero backoff keeps defaults",
			opts: []Option{WithRetry(6, 0, 0), WithBreaker(2, 0)},
			want: func(c *Config) {
				c.RetryMaxAttempts = 6
				c.CircuitBreakerThreshold = 2
			},
		},
		{
			name: "disabled",
			opts: []Option{WithoutRetry(), WithoutBreaker()},
			want: func(c *Config) {
				c.RetryMaxAttempts = 1
				c.CircuitBreakerThreshold = math.MaxInt32
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := DefaultConfig()
			tt.want(&want)
			if got := NewConfig(tt.opts...); got != want {
				t.Errorf("NewConfig() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestSessionStore_Conformance(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(testing.TB) session.Store {
		return NewSessionStore(memory.NewSessionStore(), fastConfig())
	})
}

func TestSessionStore_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{Store: memory.NewSessionStore()}
	store := NewSessionStore(inner, fastConfig())
	ctx := context.Background()

	if err := store.Save(ctx, storetest.NewSession("r-1", "goal", agent.StatusRunning, created)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	inner.failures.Store(2)
	got, err := store.Get(ctx, "r-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "r-1" {
		t.Errorf("Get() id = %q, want r-1", got.ID)
	}
	if n := inner.calls.Load(); n != 3 {
		t.Errorf("inner Get calls = %d, want 3", n)
	}
}

func TestSessionStore_DomainErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{Store: memory.NewSessionStore()}
	store := NewSessionStore(inner, fastConfig())

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("Get() error = %v, want ErrSessionNotFound", err)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner Get calls = %d, want 1", n)
	}
	if got := store.CircuitBreakerState().String(); got != "closed" {
		t.Errorf("breaker = %s, want closed", got)
	}
}

func TestSessionStore_BreakerOpens(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{Store: memory.NewSessionStore()}
	inner.failures.Store(1000)
	store := Wrap(inner, WithoutRetry(), WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := store.Get(ctx, "x"); err == nil {
			t.Fatalf("Get() #%d succeeded against a failing backend", i)
		}
	}
	if got := store.CircuitBreakerState().String(); got == "closed" {
		t.Fatalf("breaker still closed after threshold failures")
	}

	before := inner.calls.Load()
	if _, err := store.Get(ctx, "x"); err == nil {
		t.Fatal("Get() succeeded with an open circuit")
	}
	if after := inner.calls.Load(); after != before {
		t.Errorf("open circuit still reached the backend (%d -> %d calls)", before, after)
	}
}

func TestSessionStore_SummaryFallback(t *testing.T) {
	t.Parallel()

	// Embedding hides the SummaryProvider implementation of the memory store.
	inner := &flakyStore{Store: memory.NewSessionStore()}
	store := NewSessionStore(inner, fastConfig())
	ctx := context.Background()

	_ = store.Save(ctx, storetest.NewSession("s-1", "a", agent.StatusRunning, created))
	_ = store.Save(ctx, storetest.NewSession("s-2", "b", agent.StatusSuccess, created.Add(time.Second)))

	sum, err := store.Summary(ctx, session.ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalSessions != 2 || sum.SucceededSessions != 1 || sum.RunningSessions != 1 {
		t.Errorf("Summary() = %+v", sum)
	}
}

func TestSessionStore_CancelledContext(t *testing.T) {
	t.Parallel()

	inner := &flakyStore{Store: memory.NewSessionStore()}
	store := NewSessionStore(inner, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Get(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if n := inner.calls.Load(); n != 0 {
		t.Errorf("inner Get calls = %d, want 0", n)
	}
}
