package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/felixgeelhaar/agentsim/domain/session"
)

// SessionStore is a SQLite-backed implementation of session.Store.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SQLite session store with the given configuration.
func NewSessionStore(cfg Config, opts ...Option) (*SessionStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &SessionStore{db: db}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// NewSessionStoreFromDB creates a session store from an existing database connection.
func NewSessionStoreFromDB(db *sql.DB) (*SessionStore, error) {
	s := &SessionStore{db: db}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// migrate creates the sessions table if it doesn't exist.
func (s *SessionStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			goal TEXT NOT NULL,
			status TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
		CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, goal, status, iteration, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Goal, string(sess.Status()), sess.State.Iteration,
		data, sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return session.ErrSessionExists
		}
		return err
	}

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if id == "" {
		return nil, session.ErrInvalidSessionID
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE id = ?",
		id,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
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

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET
			goal = ?, status = ?, iteration = ?, data = ?, updated_at = ?
		 WHERE id = ?`,
		sess.Goal, string(sess.Status()), sess.State.Iteration,
		data, sess.UpdatedAt.UnixNano(), sess.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
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

	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return session.ErrSessionNotFound
	}

	return nil
}

// List returns sessions matching the filter.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query, args := buildListQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*session.Session, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var sess session.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue // Skip malformed entries
		}

		sessions = append(sessions, &sess)
	}

	return sessions, rows.Err()
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter session.ListFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	query, args := buildListQuery(filter, true)

	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Summary returns aggregate statistics.
func (s *SessionStore) Summary(ctx context.Context, filter session.ListFilter) (session.Summary, error) {
	if err := ctx.Err(); err != nil {
		return session.Summary{}, err
	}

	where, args := buildWhereClause(filter)

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(iteration), 0)
		FROM sessions
	`
	if where != "" {
		query += " WHERE " + where
	}

	var summary session.Summary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.TotalSessions,
		&summary.SucceededSessions,
		&summary.RunningSessions,
		&summary.AverageIterations,
	)
	if err != nil {
		return session.Summary{}, err
	}

	return summary, nil
}

// buildListQuery builds the SQL query for listing sessions.
func buildListQuery(filter session.ListFilter, countOnly bool) (string, []any) {
	query := "SELECT data FROM sessions"
	if countOnly {
		query = "SELECT COUNT(*) FROM sessions"
	}

	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}

	if countOnly {
		return query, args
	}

	orderBy := "created_at"
	switch filter.OrderBy {
	case session.OrderByUpdatedAt:
		orderBy = "updated_at"
	case session.OrderByID:
		orderBy = "id"
	case session.OrderByStatus:
		orderBy = "status"
	}

	query += " ORDER BY " + orderBy
	if filter.Descending {
		query += " DESC"
	}

	// SQLite only accepts OFFSET after a LIMIT; -1 means unbounded.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return query, args
}

// buildWhereClause builds the WHERE clause for filtering.
func buildWhereClause(filter session.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if !filter.FromTime.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.FromTime.UnixNano())
	}

	if !filter.ToTime.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.ToTime.UnixNano())
	}

	// LIKE is case-insensitive for ASCII in SQLite.
	if filter.GoalPattern != "" {
		conditions = append(conditions, "goal LIKE ?")
		args = append(args, "%"+filter.GoalPattern+"%")
	}

	return strings.Join(conditions, " AND "), args
}

// Close closes the database connection.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *SessionStore) DB() *sql.DB {
	return s.db
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure SessionStore implements session.Store and session.SummaryProvider
var (
	_ session.Store           = (*SessionStore)(nil)
	_ session.SummaryProvider = (*SessionStore)(nil)
)
