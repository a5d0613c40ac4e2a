package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/agentsim/domain/session"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/storetest"
)

func TestSessionStore_Keys(t *testing.T) {
	t.Parallel()

	s := NewSessionStoreFromClient(nil, "test:")

	if got := s.sessionKey("abc"); got != "test:session:abc" {
		t.Errorf("sessionKey() = %s, want test:session:abc", got)
	}
	if got := s.indexKey(); got != "test:sessions" {
		t.Errorf("indexKey() = %s, want test:sessions", got)
	}
}

func TestSessionStore_Validation(t *testing.T) {
	t.Parallel()

	s := NewSessionStoreFromClient(nil, "test:")
	ctx := context.Background()

	if err := s.Save(ctx, &session.Session{}); !errors.Is(err, session.ErrInvalidSessionID) {
		t.Errorf("Save() error = %v, want ErrInvalidSessionID", err)
	}
	if err := s.Update(ctx, nil); !errors.Is(err, session.ErrInvalidSessionID) {
		t.Errorf("Update() error = %v, want ErrInvalidSessionID", err)
	}
	if _, err := s.Get(ctx, ""); !errors.Is(err, session.ErrInvalidSessionID) {
		t.Errorf("Get() error = %v, want ErrInvalidSessionID", err)
	}
	if err := s.Delete(ctx, ""); !errors.Is(err, session.ErrInvalidSessionID) {
		t.Errorf("Delete() error = %v, want ErrInvalidSessionID", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.List(cancelled, session.ListFilter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	if wrapError(nil) != nil {
		t.Error("wrapError(nil) != nil")
	}
	if err := wrapError(redis.ErrClosed); !errors.Is(err, session.ErrStoreClosed) {
		t.Errorf("wrapError(ErrClosed) = %v, want ErrStoreClosed", err)
	}
	if err := wrapError(context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("wrapError(deadline) = %v", err)
	}
}

// TestSessionStore_Conformance runs against a live server when
// AGENTSIM_REDIS_ADDR is set.
func TestSessionStore_Conformance(t *testing.T) {
	addr := os.Getenv("AGENTSIM_REDIS_ADDR")
	if addr == "" {
		t.Skip("AGENTSIM_REDIS_ADDR not set")
	}

	storetest.Run(t, func(t testing.TB) session.Store {
		prefix := "agentsim-test:" + uuid.NewString() + ":"
		s, err := NewSessionStore(DefaultConfig(), WithAddress(addr), WithKeyPrefix(prefix))
		if err != nil {
			t.Fatalf("NewSessionStore() error = %v", err)
		}
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := s.client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				_ = s.client.Del(ctx, keys...).Err()
			}
			_ = s.Close()
		})
		return s
	})
}
