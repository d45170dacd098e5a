package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"refind/cmd/identity/ids"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Service implements messaging on top of a Store, with optional live fanout
// through a Hub. A nil hub disables fanout; persistence still happens.
type Service struct {
	store Store
	hub   *Hub
}

// NewService constructs a Service.
func NewService(store Store, hub *Hub) (*Service, error) {
	if store == nil {
		return nil, errors.New("chat: nil store")
	}
	return &Service{store: store, hub: hub}, nil
}

// Start returns the conversation between userID and peerID, creating it on
// first contact. Either participant can start it; both get the same row.
func (s *Service) Start(ctx context.Context, now time.Time, userID, peerID string) (Conversation, error) {
	userID = strings.TrimSpace(userID)
	peerID = strings.TrimSpace(peerID)

	if userID == "" || peerID == "" {
		return Conversation{}, fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if userID == peerID {
		return Conversation{}, fmt.Errorf("%w: cannot message yourself", ErrInvalidInput)
	}

	u1, u2 := NormalizePair(userID, peerID)
	return s.store.GetOrCreateConversation(ctx, now, u1, u2)
}

// List returns the user's conversations, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	return s.store.ListConversations(ctx, userID)
}

// History returns the most recent messages of a conversation, oldest first,
// participants only.
func (s *Service) History(ctx context.Context, userID, conversationID string, limit int) ([]Message, error) {
	conv, err := s.store.GetConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, err
	}
	if !conv.Participant(userID) {
		return nil, ErrForbidden
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.ListMessages(ctx, conv.ID, limit)
}

// Send persists a message from userID into the conversation and fans it out
// to connected participants. The write is the source of truth; fanout is
// best-effort and never blocks.
func (s *Service) Send(ctx context.Context, now time.Time, userID, conversationID, content string) (Message, error) {
	conv, err := s.store.GetConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return Message{}, err
	}
	if !conv.Participant(userID) {
		return Message{}, ErrForbidden
	}

	content, err = validateContent(content)
	if err != nil {
		return Message{}, err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Message{}, err
	}

	m := Message{
		ID:             id,
		ConversationID: conv.ID,
		SenderID:       userID,
		Content:        content,
		CreatedAt:      now.UTC(),
	}
	if err := s.store.AppendMessage(ctx, m); err != nil {
		return Message{}, err
	}

	if s.hub != nil {
		s.hub.Publish([]string{conv.User1ID, conv.User2ID}, NewMessageEvent(m))
	}
	return m, nil
}
