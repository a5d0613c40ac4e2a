package session

import "errors"

// Domain errors for session store operations.
var (
	// ErrSessionNotFound is returned when a session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when attempting to create a session that already exists.
	ErrSessionExists = errors.New("session already exists")

	// ErrInvalidSessionID is returned when a session ID is empty.
	ErrInvalidSessionID = errors.New("invalid session ID")

	// ErrConnectionFailed is returned when connection to the store backend fails.
	ErrConnectionFailed = errors.New("store connection failed")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store closed")
)
