package session

import (
	"context"
	"time"
)

// Row mirrors the refind.sessions row used by the session subsystem.
// Token plaintexts never appear here; only their 64-char hex hashes.
type Row struct {
	ID               string
	UserID           string
	SessionTokenHash string
	RefreshTokenHash string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	LastRefreshedAt  *time.Time
}

// Store abstracts persistence for session state.
//
// The store is the single source of truth: implementations must not cache
// token validity, since expiration is always judged against current time.
//
// RenewByRefreshHash must be atomic (row lock or equivalent compare-and-set):
// concurrent renewals of the same refresh token are linearized so that exactly
// one final session token survives.
type Store interface {
	// Create inserts a new session row. Token hash columns are unique across
	// all sessions, so a generated token can never alias a live one.
	Create(ctx context.Context, row Row) error

	// GetBySessionTokenHash loads a session by session-token hash.
	// Returns ErrSessionNotFound on miss. Read-only.
	GetBySessionTokenHash(ctx context.Context, hash string) (Row, error)

	// RenewByRefreshHash finds the session owning refreshHash, overwrites its
	// session-token hash and expiration in place, and returns the updated row.
	// The refresh-token hash is left untouched. Returns ErrSessionNotFound on miss.
	RenewByRefreshHash(ctx context.Context, now time.Time, refreshHash, newSessionTokenHash string, expiresAt time.Time) (Row, error)

	// DeleteByID removes a session row entirely (logout).
	// Returns ErrSessionNotFound when the row is already gone.
	DeleteByID(ctx context.Context, sessionID string) error
}
