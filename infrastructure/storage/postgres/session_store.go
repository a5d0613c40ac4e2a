package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/agentsim/domain/session"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// SessionStore is a PostgreSQL-backed implementation of session.Store.
type SessionStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewSessionStore creates a new PostgreSQL session store.
func NewSessionStore(pool *pgxpool.Pool, schema string) *SessionStore {
	if schema == "" {
		schema = "public"
	}
	return &SessionStore{
		pool:   pool,
		schema: schema,
	}
}

// tableName returns the fully qualified table name.
func (s *SessionStore) tableName() string {
	return fmt.Sprintf("%s.sessions", s.schema)
}

// Migrate creates the sessions table if it doesn't exist.
func (s *SessionStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			goal TEXT NOT NULL,
			status TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			state JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sessions_status_idx ON %[1]s (status);
		CREATE INDEX IF NOT EXISTS sessions_created_at_idx ON %[1]s (created_at);
	`, s.tableName())

	_, err := s.pool.Exec(ctx, ddl)
	return s.wrapError(err)
}

// Save persists a new session.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, goal, status, iteration, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.tableName())

	_, err = s.pool.Exec(ctx, query,
		sess.ID,
		sess.Goal,
		string(sess.Status()),
		sess.State.Iteration,
		state,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return session.ErrSessionExists
		}
		return s.wrapError(err)
	}

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrInvalidSessionID
	}

	query := fmt.Sprintf(`
		SELECT id, goal, state, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, s.tableName())

	sess, err := scanSession(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, s.wrapError(err)
	}

	return sess, nil
}

// Update updates an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET goal = $2,
			status = $3,
			iteration = $4,
			state = $5,
			updated_at = $6
		WHERE id = $1
	`, s.tableName())

	result, err := s.pool.Exec(ctx, query,
		sess.ID,
		sess.Goal,
		string(sess.Status()),
		sess.State.Iteration,
		state,
		sess.UpdatedAt,
	)
	if err != nil {
		return s.wrapError(err)
	}

	if result.RowsAffected() == 0 {
		return session.ErrSessionNotFound
	}

	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return session.ErrInvalidSessionID
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tableName())

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return s.wrapError(err)
	}

	if result.RowsAffected() == 0 {
		return session.ErrSessionNotFound
	}

	return nil
}

// List returns sessions matching the filter.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	sessions := make([]*session.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, s.wrapError(err)
	}

	return sessions, nil
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter session.ListFilter) (int64, error) {
	whereClause, args := s.buildWhereClause(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, s.tableName(), whereClause)

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, s.wrapError(err)
	}

	return count, nil
}

// Summary returns aggregate statistics.
func (s *SessionStore) Summary(ctx context.Context, filter session.ListFilter) (session.Summary, error) {
	whereClause, args := s.buildWhereClause(filter)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COALESCE(AVG(iteration), 0)::float8
		FROM %s
		%s
	`, s.tableName(), whereClause)

	var summary session.Summary
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&summary.TotalSessions,
		&summary.SucceededSessions,
		&summary.RunningSessions,
		&summary.AverageIterations,
	)
	if err != nil {
		return session.Summary{}, s.wrapError(err)
	}

	return summary, nil
}

// buildListQuery constructs the SELECT query for listing sessions.
func (s *SessionStore) buildListQuery(filter session.ListFilter) (string, []any) {
	whereClause, args := s.buildWhereClause(filter)

	query := fmt.Sprintf(`
		SELECT id, goal, state, created_at, updated_at
		FROM %s
		%s
	`, s.tableName(), whereClause)

	orderBy := "created_at"
	switch filter.OrderBy {
	case session.OrderByUpdatedAt:
		orderBy = "updated_at"
	case session.OrderByID:
		orderBy = "id"
	case session.OrderByStatus:
		orderBy = "status"
	}

	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	query += fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return query, args
}

// buildWhereClause constructs the WHERE clause from filter.
func (s *SessionStore) buildWhereClause(filter session.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			statuses[i] = string(status)
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	if !filter.FromTime.IsZero() {
		args = append(args, filter.FromTime)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	if !filter.ToTime.IsZero() {
		args = append(args, filter.ToTime)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if filter.GoalPattern != "" {
		args = append(args, "%"+filter.GoalPattern+"%")
		conditions = append(conditions, fmt.Sprintf("goal ILIKE $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// scanSession scans a single row into a Session.
func scanSession(row pgx.Row) (*session.Session, error) {
	var sess session.Session
	var state []byte

	if err := row.Scan(&sess.ID, &sess.Goal, &state, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(state, &sess.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()

	return &sess, nil
}

// wrapError wraps database errors with domain errors.
func (s *SessionStore) wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	return errors.Join(session.ErrConnectionFailed, err)
}

// Ensure SessionStore implements session.Store and session.SummaryProvider
var (
	_ session.Store           = (*SessionStore)(nil)
	_ session.SummaryProvider = (*SessionStore)(nil)
)
