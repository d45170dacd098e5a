package lostfound

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
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
			return fmt.Errorf("lostfound: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("lostfound: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
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
		return nil, fmt.Errorf("lostfound: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "posts"}.Sanitize()
}

// Create inserts the post row.
func (s *PostgresStore) Create(ctx context.Context, p Post) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, user_id, title, item, status, text, location, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID,
		p.UserID,
		p.Title,
		p.Item,
		p.Status,
		p.Text,
		p.Location,
		p.CreatedAt,
	)
	return err
}

// Get loads one post by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Post, error) {
	var p Post
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, item, status, text, location, created_at
		   FROM `+s.table()+`
		  WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.UserID, &p.Title, &p.Item, &p.Status, &p.Text, &p.Location, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

// List returns the newest posts first. ULIDs sort by creation time, so the
// id is a stable tiebreaker for rows sharing a timestamp.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, item, status, text, location, created_at
		   FROM `+s.table()+`
		  ORDER BY created_at DESC, id DESC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Post, 0, limit)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Item, &p.Status, &p.Text, &p.Location, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update overwrites the mutable columns.
func (s *PostgresStore) Update(ctx context.Context, p Post) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET title = $2, item = $3, status = $4, text = $5, location = $6
		  WHERE id = $1`,
		p.ID,
		p.Title,
		p.Item,
		p.Status,
		p.Text,
		p.Location,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the post row.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
