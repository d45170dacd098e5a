package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"refind/cmd/identity/ids"

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
			return fmt.Errorf("chat: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("chat: invalid schema identifier")
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
		return nil, fmt.Errorf("chat: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) conversations() string {
	return pgx.Identifier{s.schema, "conversations"}.Sanitize()
}

func (s *PostgresStore) messages() string {
	return pgx.Identifier{s.schema, "messages"}.Sanitize()
}

// GetOrCreateConversation inserts the pair row if missing, then reads it
// back. ON CONFLICT DO NOTHING makes racing creators converge on one row:
// whoever loses the insert still finds the winner's row in the select.
func (s *PostgresStore) GetOrCreateConversation(ctx context.Context, now time.Time, user1ID, user2ID string) (Conversation, error) {
	u1, u2 := NormalizePair(user1ID, user2ID)
	if u1 == "" || u1 == u2 {
		return Conversation{}, fmt.Errorf("%w: bad user pair", ErrInvalidInput)
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Conversation{}, err
	}

	convs := s.conversations()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+convs+` (id, user1_id, user2_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user1_id, user2_id) DO NOTHING`,
		id, u1, u2, now.UTC(),
	)
	if err != nil {
		return Conversation{}, err
	}

	var c Conversation
	err = s.pool.QueryRow(ctx,
		`SELECT id, user1_id, user2_id, created_at
		   FROM `+convs+`
		  WHERE user1_id = $1 AND user2_id = $2`,
		u1, u2,
	).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// GetConversation loads one conversation by id.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, user1_id, user2_id, created_at
		   FROM `+s.conversations()+`
		  WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// ListConversations returns the user's conversations, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user1_id, user2_id, created_at
		   FROM `+s.conversations()+`
		  WHERE user1_id = $1 OR user2_id = $1
		  ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendMessage inserts the message row.
func (s *PostgresStore) AppendMessage(ctx context.Context, m Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.messages()+` (id, conversation_id, sender_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt,
	)
	return err
}

// ListMessages returns the most recent limit messages in chronological
// order. ULID ids order by creation time, so the inner sort can use the id.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender_id, content, created_at FROM (
		     SELECT id, conversation_id, sender_id, content, created_at
		       FROM `+s.messages()+`
		      WHERE conversation_id = $1
		      ORDER BY id DESC
		      LIMIT $2
		 ) latest
		 ORDER BY id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
