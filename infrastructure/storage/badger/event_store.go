package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/internal/fanout"
)

// EventStore is a BadgerDB-backed implementation of event.Store.
type EventStore struct {
	db        *badger.DB
	keyPrefix string
	ownsDB    bool
	gc        *valueLogGC
	hub       *fanout.Hub
}

// NewEventStore opens a BadgerDB database and returns an event store that owns it.
func NewEventStore(cfg Config, opts ...Option) (*EventStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	return &EventStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		ownsDB:    true,
		gc:        startGC(db, cfg.GCInterval, cfg.GCDiscardRatio),
		hub:       fanout.New(fanout.DefaultBuffer),
	}, nil
}

// NewEventStoreFromDB creates an event store on a database owned by someone else,
// typically a SessionStore. Close leaves the database open.
func NewEventStoreFromDB(db *badger.DB, keyPrefix string) *EventStore {
	return &EventStore{
		db:        db,
		keyPrefix: keyPrefix,
		gc:        startGC(db, 0, 0),
		hub:       fanout.New(fanout.DefaultBuffer),
	}
}

// Key format: prefix + "events:" + sessionID + ":" + sequence (8 bytes, big-endian)
func (s *EventStore) eventKey(sessionID string, seq uint64) []byte {
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, seq)
	return append([]byte(s.keyPrefix+"events:"+sessionID+":"), seqBytes...)
}

// Key format: prefix + "seq:" + sessionID for storing the sequence counter
func (s *EventStore) seqKey(sessionID string) []byte {
	return []byte(s.keyPrefix + "seq:" + sessionID)
}

// Append persists one or more records atomically.
func (s *EventStore) Append(ctx context.Context, records ...event.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r.SessionID == "" {
			return event.ErrInvalidSessionID
		}
		if r.Event.Type == "" {
			return event.ErrInvalidEvent
		}
	}

	var processed []event.Record

	err := s.db.Update(func(txn *badger.Txn) error {
		processed = processed[:0]
		sequences := make(map[string]uint64)

		for _, r := range records {
			seq, ok := sequences[r.SessionID]
			if !ok {
				item, err := txn.Get(s.seqKey(r.SessionID))
				if err == nil {
					err = item.Value(func(val []byte) error {
						if len(val) == 8 {
							seq = binary.BigEndian.Uint64(val)
						}
						return nil
					})
					if err != nil {
						return err
					}
				} else if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}

			if r.Event.ID == "" {
				r.Event.ID = uuid.New().String()
			}
			seq++
			r.Sequence = seq
			sequences[r.SessionID] = seq

			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := txn.Set(s.eventKey(r.SessionID, seq), data); err != nil {
				return err
			}

			processed = append(processed, r)
		}

		for id, seq := range sequences {
			seqBytes := make([]byte, 8)
			binary.BigEndian.PutUint64(seqBytes, seq)
			if err := txn.Set(s.seqKey(id), seqBytes); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.hub.Publish(processed...)

	return nil
}

// Load retrieves all records for a session in sequence order.
func (s *EventStore) Load(ctx context.Context, sessionID string) ([]event.Record, error) {
	return s.LoadFrom(ctx, sessionID, 0)
}

// LoadFrom retrieves records starting from a specific sequence number.
func (s *EventStore) LoadFrom(ctx context.Context, sessionID string, fromSeq uint64) ([]event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]event.Record, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.keyPrefix + "events:" + sessionID + ":")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(s.eventKey(sessionID, fromSeq)); it.Valid(); it.Next() {
			var r event.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				continue // Skip malformed entries
			}
			records = append(records, r)
		}

		return nil
	})

	return records, err
}

// Subscribe returns a channel that receives records appended after the
// call. The channel is closed when ctx ends or the store is closed.
func (s *EventStore) Subscribe(ctx context.Context, sessionID string) (<-chan event.Record, error) {
	return s.hub.Subscribe(ctx, sessionID)
}

// Sessions returns every session ID with records in the store.
func (s *EventStore) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(s.keyPrefix + "seq:")
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})

	return ids, err
}

// DeleteSession removes all records for a session.
func (s *EventStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.DropPrefix([]byte(s.keyPrefix + "events:" + sessionID + ":")); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.seqKey(sessionID))
	})
}

// Close closes all subscriber channels and, when the store owns it, the database.
func (s *EventStore) Close() error {
	s.gc.Stop()

	s.hub.Close()

	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying BadgerDB database.
func (s *EventStore) DB() *badger.DB {
	return s.db
}

// Ensure EventStore implements event.Store
var _ event.Store = (*EventStore)(nil)
