package chat

import (
	"context"
	"time"
)

// Store is the persistence boundary for conversations and messages.
//
// Implementations must report ErrNotFound for unknown conversation ids.
// GetOrCreateConversation must be safe under concurrent callers racing to
// create the same pair: exactly one row wins.
type Store interface {
	// GetOrCreateConversation returns the conversation for the normalized
	// (user1, user2) pair, inserting it first if missing.
	GetOrCreateConversation(ctx context.Context, now time.Time, user1ID, user2ID string) (Conversation, error)

	// GetConversation returns one conversation by id.
	GetConversation(ctx context.Context, id string) (Conversation, error)

	// ListConversations returns every conversation the user participates in,
	// newest first.
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)

	// AppendMessage inserts a message row.
	AppendMessage(ctx context.Context, m Message) error

	// ListMessages returns up to limit of the most recent messages in the
	// conversation, in chronological order.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
}
