package session

import "errors"

var (
	// ErrInvalidToken is returned when a presented token matches no live session.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpired is returned when the session exists but its expiration has passed.
	// HTTP callers surface it with the same message as ErrInvalidToken; the
	// distinction exists for internal observability only.
	ErrExpired = errors.New("session expired")

	// ErrSessionNotFound is the store-level miss; the service maps it to ErrInvalidToken.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
