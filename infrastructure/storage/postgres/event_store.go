package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/agentsim/domain/event"
	"github.com/felixgeelhaar/agentsim/domain/session"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/internal/fanout"
)

// EventStore is a PostgreSQL-backed implementation of event.Store.
// Appends for one session are serialised with a transaction-scoped
// advisory lock so sequences stay gapless under concurrent writers.
type EventStore struct {
	pool   *pgxpool.Pool
	schema string
	hub    *fanout.Hub
}

// NewEventStore creates an event store on a pool owned by the caller.
func NewEventStore(pool *pgxpool.Pool, schema string) *EventStore {
	if schema == "" {
		schema = "public"
	}
	return &EventStore{
		pool:   pool,
		schema: schema,
		hub:    fanout.New(fanout.DefaultBuffer),
	}
}

func (s *EventStore) tableName() string {
	return s.schema + ".events"
}

// Migrate creates the events table if it doesn't exist.
func (s *EventStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			session_id TEXT NOT NULL,
			sequence BIGINT NOT NULL,
			event_id TEXT NOT NULL,
			type TEXT NOT NULL,
			step_id TEXT NOT NULL DEFAULT '',
			iteration INTEGER NOT NULL,
			message TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, sequence)
		);
	`, s.tableName())

	_, err := s.pool.Exec(ctx, ddl)
	return wrapEventError(err)
}

// Append persists records in one transaction and assigns their sequences.
func (s *EventStore) Append(ctx context.Context, records ...event.Record) error {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapEventError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := fmt.Sprintf(`
		INSERT INTO %s (session_id, sequence, event_id, type, step_id, iteration, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.tableName())

	last := make(map[string]uint64)
	out := make([]event.Record, len(records))
	for i, r := range records {
		seq, ok := last[r.SessionID]
		if !ok {
			if seq, err = s.lockTail(ctx, tx, r.SessionID); err != nil {
				return err
			}
		}
		seq++
		last[r.SessionID] = seq

		r.Sequence = seq
		if r.Event.ID == "" {
			r.Event.ID = uuid.NewString()
		}
		e := r.Event
		if _, err := tx.Exec(ctx, insert,
			r.SessionID, int64(seq), e.ID, string(e.Type), e.StepID, e.Iteration, e.Message, e.Timestamp,
		); err != nil {
			return wrapEventError(err)
		}
		out[i] = r
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapEventError(err)
	}
	s.hub.Publish(out...)
	return nil
}

// lockTail takes the session's advisory lock and returns its last sequence.
func (s *EventStore) lockTail(ctx context.Context, tx pgx.Tx, sessionID string) (uint64, error) {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", sessionID); err != nil {
		return 0, wrapEventError(err)
	}
	var tail int64
	err := tx.QueryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(sequence), 0) FROM %s WHERE session_id = $1", s.tableName()),
		sessionID,
	).Scan(&tail)
	if err != nil {
		return 0, wrapEventError(err)
	}
	return uint64(tail), nil
}

// Load retrieves all records for a session in sequence order.
func (s *EventStore) Load(ctx context.Context, sessionID string) ([]event.Record, error) {
	return s.LoadFrom(ctx, sessionID, 0)
}

// LoadFrom retrieves records with a sequence number >= fromSeq.
func (s *EventStore) LoadFrom(ctx context.Context, sessionID string, fromSeq uint64) ([]event.Record, error) {
	query := fmt.Sprintf(`
		SELECT session_id, sequence, event_id, type, step_id, iteration, message, occurred_at
		FROM %s
		WHERE session_id = $1 AND sequence >= $2
		ORDER BY sequence
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, sessionID, int64(fromSeq))
	if err != nil {
		return nil, wrapEventError(err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, wrapEventError(err)
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (event.Record, error) {
	var (
		r   event.Record
		seq int64
		typ string
	)
	err := row.Scan(&r.SessionID, &seq, &r.Event.ID, &typ, &r.Event.StepID,
		&r.Event.Iteration, &r.Event.Message, &r.Event.Timestamp)
	r.Sequence = uint64(seq)
	r.Event.Type = event.Type(typ)
	r.Event.Timestamp = r.Event.Timestamp.UTC()
	return r, err
}

// Subscribe returns a channel that receives records appended by this
// process after the call. The channel is closed when ctx ends or the
// store is closed.
func (s *EventStore) Subscribe(ctx context.Context, sessionID string) (<-chan event.Record, error) {
	return s.hub.Subscribe(ctx, sessionID)
}

// DeleteSession removes all records for a session.
func (s *EventStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", s.tableName()), sessionID)
	return wrapEventError(err)
}

// Close ends every subscription. The pool belongs to the caller.
func (s *EventStore) Close() error {
	s.hub.Close()
	return nil
}

func wrapEventError(err error) error {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(session.ErrConnectionFailed, err)
}

var _ event.Store = (*EventStore)(nil)
