package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxMessageChars = 2000

var (
	// ErrNotFound reports an unknown conversation id.
	ErrNotFound = errors.New("chat: conversation not found")

	// ErrForbidden reports access by a user who is not a participant.
	ErrForbidden = errors.New("chat: not a participant")

	// ErrInvalidInput reports a request that fails validation.
	ErrInvalidInput = errors.New("chat: invalid input")
)

// Conversation is the persistent handle for one user pair. User1ID/User2ID
// are stored in normalized (lexicographic) order so each pair maps to
// exactly one row.
type Conversation struct {
	ID        string
	User1ID   string
	User2ID   string
	CreatedAt time.Time
}

// Participant reports whether userID is one of the two members.
func (c Conversation) Participant(userID string) bool {
	return userID != "" && (userID == c.User1ID || userID == c.User2ID)
}

// Peer returns the other member, or "" when userID is not a participant.
func (c Conversation) Peer(userID string) string {
	switch userID {
	case c.User1ID:
		return c.User2ID
	case c.User2ID:
		return c.User1ID
	default:
		return ""
	}
}

// Message is one persisted chat message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// NormalizePair orders two user ids lexicographically. Both orderings of the
// same pair normalize to the same (u1, u2).
func NormalizePair(a, b string) (u1, u2 string) {
	if a <= b {
		return a, b
	}
	return b, a
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	if len([]rune(content)) > maxMessageChars {
		return "", fmt.Errorf("%w: message too long: max=%d chars", ErrInvalidInput, maxMessageChars)
	}
	return content, nil
}
