package event

import "errors"

// Domain errors for event feeds.
var (
	// ErrInvalidEvent is returned when a record is malformed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidSessionID is returned when a record has no session ID.
	ErrInvalidSessionID = errors.New("invalid session ID")

	// ErrSubscriptionClosed is returned when a subscription channel is closed.
	ErrSubscriptionClosed = errors.New("event subscription closed")
)
