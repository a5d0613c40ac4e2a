package inspector

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/agentsim/domain/inspector"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// SessionExporter builds session exports from a session store.
type SessionExporter struct {
	store session.Store
}

// NewSessionExporter creates a new session exporter.
func NewSessionExporter(store session.Store) *SessionExporter {
	return &SessionExporter{store: store}
}

// Export loads the session and converts it.
func (e *SessionExporter) Export(ctx context.Context, sessionID string) (*inspector.SessionExport, error) {
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, errors.Join(inspector.ErrSessionNotFound, err)
		}
		return nil, err
	}
	return inspector.NewSessionExport(s)
}

var _ inspector.Exporter = (*SessionExporter)(nil)
