package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"refind/cmd/identity/ids"
	"refind/cmd/security/token"
)

// Service implements the high-level session operations for Refind.
//
// It issues credential pairs, validates session tokens, renews session tokens
// against refresh tokens, and destroys sessions on logout. All durable state
// lives behind Store; the service itself is stateless and safe for concurrent
// use from any number of request workers.
type Service struct {
	cfg   Config
	store Store
}

// Issued is the result of issuing or refreshing a session.
type Issued struct {
	SessionID    string
	SessionToken string
	Expiration   time.Time
	RefreshToken string
}

// Identity is the resolved principal behind a validated session token.
type Identity struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// NewService constructs a Service with the provided configuration and store.
func NewService(cfg Config, store Store) (*Service, error) {
	if store == nil {
		return nil, ErrConfig
	}
	if cfg.SessionTTL <= 0 || cfg.TokenBytes <= 0 {
		return nil, ErrConfig
	}
	return &Service{cfg: cfg, store: store}, nil
}

// Issue creates a new session row and returns a fresh credential pair.
//
// Prior sessions for the same user stay valid: logging in from a second
// device does not kick the first one out. Expiration is always in the future
// at issuance time (now + SessionTTL).
func (s *Service) Issue(ctx context.Context, now time.Time, userID string) (Issued, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Issued{}, ErrInvalidToken
	}

	sessionPlain, err := token.NewOpaque(s.cfg.TokenBytes)
	if err != nil {
		return Issued{}, err
	}
	refreshPlain, err := token.NewOpaque(s.cfg.TokenBytes)
	if err != nil {
		return Issued{}, err
	}

	sessionID, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, err
	}

	exp := now.Add(s.cfg.SessionTTL)

	row := Row{
		ID:               sessionID,
		UserID:           userID,
		SessionTokenHash: token.HashTokenHex(sessionPlain),
		RefreshTokenHash: token.HashTokenHex(refreshPlain),
		CreatedAt:        now,
		ExpiresAt:        exp,
	}

	if err := s.store.Create(ctx, row); err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    sessionID,
		SessionToken: sessionPlain,
		Expiration:   exp,
		RefreshToken: refreshPlain,
	}, nil
}

// Validate resolves a bearer session token to the owning user.
//
// It is read-only and performs no mutation, so it is safe to call repeatedly
// and concurrently. Refresh tokens live in a disjoint hash namespace and can
// never resolve here.
func (s *Service) Validate(ctx context.Context, now time.Time, sessionToken string) (Identity, error) {
	sessionToken = strings.TrimSpace(sessionToken)
	// Basic sanity bounds to avoid pathological inputs.
	if sessionToken == "" || len(sessionToken) > 4096 {
		return Identity{}, ErrInvalidToken
	}

	row, err := s.store.GetBySessionTokenHash(ctx, token.HashTokenHex(sessionToken))
	if errors.Is(err, ErrSessionNotFound) {
		return Identity{}, ErrInvalidToken
	}
	if err != nil {
		return Identity{}, err
	}

	// Strict boundary: a token is dead the instant now reaches expiration.
	if !row.ExpiresAt.After(now) {
		return Identity{}, ErrExpired
	}

	return Identity{
		UserID:    row.UserID,
		SessionID: row.ID,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a new session token + expiration.
//
// The refresh token itself is preserved; only the session token and expiration
// are replaced, in place, under a row lock in the store. This is the only path
// that extends a session's lifetime without re-authenticating with a password.
// Refresh tokens are never expired by time, so expiration is not checked here.
func (s *Service) Refresh(ctx context.Context, now time.Time, refreshToken string) (Issued, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > 4096 {
		return Issued{}, ErrInvalidToken
	}

	newSessionPlain, err := token.NewOpaque(s.cfg.TokenBytes)
	if err != nil {
		return Issued{}, err
	}

	row, err := s.store.RenewByRefreshHash(
		ctx,
		now,
		token.HashTokenHex(refreshToken),
		token.HashTokenHex(newSessionPlain),
		now.Add(s.cfg.SessionTTL),
	)
	if errors.Is(err, ErrSessionNotFound) {
		return Issued{}, ErrInvalidToken
	}
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    row.ID,
		SessionToken: newSessionPlain,
		Expiration:   row.ExpiresAt,
		RefreshToken: refreshToken,
	}, nil
}

// Logout destroys the session identified by the presented session token.
//
// Resolution follows Validate's rules: a missing or expired token yields the
// same ErrInvalidToken outcome, so callers cannot distinguish "never existed"
// from "already logged out" from "expired". On success the row is deleted and
// both the session token and its paired refresh token are dead for good.
func (s *Service) Logout(ctx context.Context, now time.Time, sessionToken string) error {
	ident, err := s.Validate(ctx, now, sessionToken)
	if errors.Is(err, ErrExpired) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}

	err = s.store.DeleteByID(ctx, ident.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		// Lost a race with another logout; same outcome for the caller.
		return ErrInvalidToken
	}
	return err
}
