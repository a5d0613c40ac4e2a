package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// SessionStore is a Redis-backed implementation of session.Store.
//
// Each session is a JSON string under prefix + "session:" + id. A sorted set
// under prefix + "sessions" indexes IDs by creation time. With a retention
// set, a session key expires once the session succeeds; its index entry is
// pruned by the next scan.
type SessionStore struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
}

// NewSessionStore connects to Redis and returns a session store.
func NewSessionStore(cfg Config, opts ...ConfigOption) (*SessionStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(session.ErrConnectionFailed, err)
	}

	return &SessionStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		retention: cfg.Retention,
	}, nil
}

// NewSessionStoreFromClient creates a session store from an existing Redis
// client. Finished sessions are never expired.
func NewSessionStoreFromClient(client *redis.Client, keyPrefix string) *SessionStore {
	return &SessionStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// ttl is the expiry applied when a session is written; running sessions
// get fallback.
func (s *SessionStore) ttl(sess *session.Session, fallback time.Duration) time.Duration {
	if s.retention > 0 && sess.State.Status == agent.StatusSuccess {
		return s.retention
	}
	return fallback
}

func (s *SessionStore) sessionKey(id string) string {
	return s.keyPrefix + "session:" + id
}

func (s *SessionStore) indexKey() string {
	return s.keyPrefix + "sessions"
}

// Save persists a new session.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.sessionKey(sess.ID), data, s.ttl(sess, 0)).Result()
	if err != nil {
		return wrapError(err)
	}
	if !ok {
		return session.ErrSessionExists
	}

	err = s.client.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(sess.CreatedAt.UnixNano()),
		Member: sess.ID,
	}).Err()
	return wrapError(err)
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, session.ErrInvalidSessionID
	}

	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, wrapError(err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Update updates an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, s.sessionKey(sess.ID), data, s.ttl(sess, redis.KeepTTL)).Result()
	if err != nil {
		return wrapError(err)
	}
	if !ok {
		return session.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return session.ErrInvalidSessionID
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.sessionKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapError(err)
	}

	if del.Val() == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

// List returns sessions matching the filter.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter session.ListFilter) (int64, error) {
	filter.Limit, filter.Offset = 0, 0
	matched, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// scan loads every indexed session in creation order.
func (s *SessionStore) scan(ctx context.Context) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, wrapError(err)
	}
	if len(ids) == 0 {
		return []*session.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapError(err)
	}

	out := make([]*session.Session, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Expired, or deleted between ZRANGE and MGET.
			expired = append(expired, ids[i])
			continue
		}
		var sess session.Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			continue // Skip malformed entries
		}
		out = append(out, &sess)
	}
	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), expired...).Err(); err != nil {
			return nil, wrapError(err)
		}
	}
	return out, nil
}

// Ping checks the Redis connection.
func (s *SessionStore) Ping(ctx context.Context) error {
	return wrapError(s.client.Ping(ctx).Err())
}

// Close closes the Redis connection.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for advanced operations.
func (s *SessionStore) Client() *redis.Client {
	return s.client
}

// wrapError marks transport failures with session.ErrConnectionFailed.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(session.ErrConnectionFailed, err)
	}
	if errors.Is(err, redis.ErrClosed) {
		return errors.Join(session.ErrStoreClosed, err)
	}

	return err
}

// Ensure SessionStore implements session.Store
var _ session.Store = (*SessionStore)(nil)
