package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/internal/fanout"
)

// EventStore is a SQLite-backed implementation of event.Store.
type EventStore struct {
	db  *sql.DB
	hub *fanout.Hub
}

// NewEventStore creates a new SQLite event store with the given configuration.
func NewEventStore(cfg Config, opts ...Option) (*EventStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &EventStore{
		db:  db,
		hub: fanout.New(fanout.DefaultBuffer),
	}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// NewEventStoreFromDB creates an event store sharing an existing connection,
// typically the one owned by a SessionStore.
func NewEventStoreFromDB(db *sql.DB) (*EventStore, error) {
	s := &EventStore{
		db:  db,
		hub: fanout.New(fanout.DefaultBuffer),
	}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// migrate creates the events table if it doesn't exist.
func (s *EventStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_events_session_seq_unique ON events(session_id, sequence);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, session_id, type, sequence, timestamp, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().Unix()
	sequences := make(map[string]uint64)
	processed := make([]event.Record, 0, len(records))

	for _, r := range records {
		seq, ok := sequences[r.SessionID]
		if !ok {
			var maxSeq sql.NullInt64
			err := tx.QueryRowContext(ctx,
				"SELECT MAX(sequence) FROM events WHERE session_id = ?",
				r.SessionID,
			).Scan(&maxSeq)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if maxSeq.Valid {
				seq = uint64(maxSeq.Int64)
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

		_, err = stmt.ExecContext(ctx,
			r.Event.ID, r.SessionID, string(r.Event.Type), r.Sequence, r.Event.Timestamp.UnixNano(), data, now,
		)
		if err != nil {
			return err
		}

		processed = append(processed, r)
	}

	if err := tx.Commit(); err != nil {
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

	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM events WHERE session_id = ? AND sequence >= ? ORDER BY sequence",
		sessionID, fromSeq,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]event.Record, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var r event.Record
		if err := json.Unmarshal(data, &r); err != nil {
			continue // Skip malformed entries
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

// Subscribe returns a channel that receives records appended after the
// call. The channel is closed when ctx ends or the store is closed.
func (s *EventStore) Subscribe(ctx context.Context, sessionID string) (<-chan event.Record, error) {
	return s.hub.Subscribe(ctx, sessionID)
}

// Count returns the number of records for a session.
func (s *EventStore) Count(ctx context.Context, sessionID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE session_id = ?",
		sessionID,
	).Scan(&count)

	return count, err
}

// Sessions returns every session ID with records in the store.
func (s *EventStore) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT session_id FROM events ORDER BY session_id",
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DeleteSession removes all records for a session.
func (s *EventStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE session_id = ?", sessionID)
	return err
}

// Close closes all subscriber channels and the database connection.
// Stores built with NewEventStoreFromDB should let the connection's
// owner close it instead.
func (s *EventStore) Close() error {
	s.hub.Close()

	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *EventStore) DB() *sql.DB {
	return s.db
}

// Ensure EventStore implements event.Store
var _ event.Store = (*EventStore)(nil)
