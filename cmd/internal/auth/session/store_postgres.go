package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL.
//
// The pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "refind").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("session: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "refind",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, row Row) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (
			id, user_id, session_token_hash, refresh_token_hash,
			created_at, expires_at, last_refreshed_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULL)
	`, row.ID, row.UserID, row.SessionTokenHash, row.RefreshTokenHash, row.CreatedAt, row.ExpiresAt)
	return err
}

// GetBySessionTokenHash loads a session row by session-token hash.
func (s *PostgresStore) GetBySessionTokenHash(ctx context.Context, hash string) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, `
		SELECT
			id, user_id, session_token_hash, refresh_token_hash,
			created_at, expires_at, last_refreshed_at
		FROM `+s.table()+`
		WHERE session_token_hash = $1
	`, hash).Scan(
		&row.ID,
		&row.UserID,
		&row.SessionTokenHash,
		&row.RefreshTokenHash,
		&row.CreatedAt,
		&row.ExpiresAt,
		&row.LastRefreshedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// RenewByRefreshHash overwrites the session token and expiration in place.
//
// The row is locked by refresh hash (SELECT ... FOR UPDATE) inside a single
// transaction, so concurrent renewals of the same refresh token serialize and
// the committed state always holds exactly one live session token.
func (s *PostgresStore) RenewByRefreshHash(ctx context.Context, now time.Time, refreshHash, newSessionTokenHash string, expiresAt time.Time) (Row, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Row{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var row Row
	err = tx.QueryRow(ctx, `
		SELECT
			id, user_id, session_token_hash, refresh_token_hash,
			created_at, expires_at, last_refreshed_at
		FROM `+s.table()+`
		WHERE refresh_token_hash = $1
		FOR UPDATE
	`, refreshHash).Scan(
		&row.ID,
		&row.UserID,
		&row.SessionTokenHash,
		&row.RefreshTokenHash,
		&row.CreatedAt,
		&row.ExpiresAt,
		&row.LastRefreshedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE `+s.table()+`
		SET session_token_hash = $2,
		    expires_at = $3,
		    last_refreshed_at = $4
		WHERE id = $1
	`, row.ID, newSessionTokenHash, expiresAt, now)
	if err != nil {
		return Row{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}

	row.SessionTokenHash = newSessionTokenHash
	row.ExpiresAt = expiresAt
	row.LastRefreshedAt = &now

	return row, nil
}

// DeleteByID removes a session row entirely.
func (s *PostgresStore) DeleteByID(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.table()+`
		WHERE id = $1
	`, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
