package badger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// SessionStore is a BadgerDB-backed implementation of session.Store.
// Each session is one JSON value under prefix + "session:" + id. With a
// retention set, the value of a succeeded session carries a TTL.
type SessionStore struct {
	db        *badger.DB
	keyPrefix string
	retention time.Duration
	gc        *valueLogGC
}

// NewSessionStore opens a BadgerDB database and returns a session store that owns it.
func NewSessionStore(cfg Config, opts ...Option) (*SessionStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	return &SessionStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		retention: cfg.Retention,
		gc:        startGC(db, cfg.GCInterval, cfg.GCDiscardRatio),
	}, nil
}

func (s *SessionStore) key(id string) []byte {
	return []byte(s.keyPrefix + "session:" + id)
}

// entry builds the value written for sess.
func (s *SessionStore) entry(sess *session.Session, data []byte) *badger.Entry {
	e := badger.NewEntry(s.key(sess.ID), data)
	if s.retention > 0 && sess.State.Status == agent.StatusSuccess {
		e = e.WithTTL(s.retention)
	}
	return e
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

	return s.db.Update(func(txn *badger.Txn) error {
		key := s.key(sess.ID)
		_, err := txn.Get(key)
		if err == nil {
			return session.ErrSessionExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.SetEntry(s.entry(sess, data))
	})
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, session.ErrInvalidSessionID
	}

	var sess session.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return session.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
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

	return s.db.Update(func(txn *badger.Txn) error {
		key := s.key(sess.ID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return session.ErrSessionNotFound
		} else if err != nil {
			return err
		}
		return txn.SetEntry(s.entry(sess, data))
	})
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return session.ErrInvalidSessionID
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := s.key(id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return session.ErrSessionNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
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

// scan decodes every stored session.
func (s *SessionStore) scan(ctx context.Context) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*session.Session
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.keyPrefix + "session:")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var sess session.Session
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			})
			if err != nil {
				continue // Skip malformed entries
			}
			out = append(out, &sess)
		}
		return nil
	})
	return out, err
}

// Close stops value log GC and closes the database.
func (s *SessionStore) Close() error {
	s.gc.Stop()
	return s.db.Close()
}

// DB returns the underlying BadgerDB database.
func (s *SessionStore) DB() *badger.DB {
	return s.db
}

// Ensure SessionStore implements session.Store
var _ session.Store = (*SessionStore)(nil)
