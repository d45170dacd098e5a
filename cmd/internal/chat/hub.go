package chat

import (
	"log/slog"
	"sync"
	"time"
)

// Event is one unit of WebSocket fanout.
type Event struct {
	Type    string        `json:"type"`
	Message *MessageEvent `json:"message,omitempty"`
}

// MessageEvent is the wire form of a newly stored message.
type MessageEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessageEvent wraps a stored message for fanout.
func NewMessageEvent(m Message) Event {
	return Event{
		Type: "message.new",
		Message: &MessageEvent{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
		},
	}
}

// Client represents one connected WebSocket for one user. A user may hold
// several concurrent clients (multiple tabs or devices).
//
// Send is intentionally never closed by the server, so broadcasters cannot
// panic on a closed channel; done signals shutdown instead.
type Client struct {
	ID     string
	UserID string
	Send   chan Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id, userID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		ID:     id,
		UserID: userID,
		Send:   make(chan Event, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent). It does NOT
// close Send.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Hub tracks live clients per user and fans events out to them.
//
// Concurrency guarantees:
// - Register/Unregister are safe under concurrent Publish.
// - Publish never blocks: full queues and closing clients are dropped.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	byUser map[string]map[string]*Client
}

// NewHub constructs a Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:    log,
		byUser: make(map[string]map[string]*Client),
	}
}

// Register adds a client to its user's connection set.
func (h *Hub) Register(client *Client) {
	if h == nil || client == nil || client.ID == "" || client.UserID == "" {
		return
	}

	h.mu.Lock()
	set, ok := h.byUser[client.UserID]
	if !ok {
		set = make(map[string]*Client)
		h.byUser[client.UserID] = set
	}
	set[client.ID] = client
	h.mu.Unlock()

	h.log.Info("chat.hub.register", "user_id", client.UserID, "client_id", client.ID)
}

// Unregister removes a client and signals its shutdown. Removal happens
// before Close so broadcasters never hold a pointer to a torn-down client.
func (h *Hub) Unregister(client *Client) {
	if h == nil || client == nil {
		return
	}

	h.mu.Lock()
	if set, ok := h.byUser[client.UserID]; ok {
		delete(set, client.ID)
		if len(set) == 0 {
			delete(h.byUser, client.UserID)
		}
	}
	h.mu.Unlock()

	client.Close()

	h.log.Info("chat.hub.unregister", "user_id", client.UserID, "client_id", client.ID)
}

// Publish fans an event out to every live client of the given users.
// Non-blocking: a full queue drops the event for that client only.
func (h *Hub) Publish(userIDs []string, ev Event) {
	if h == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, uid := range userIDs {
		for _, c := range h.byUser[uid] {
			if c == nil {
				continue
			}

			select {
			case <-c.Done():
				continue
			default:
			}

			select {
			case c.Send <- ev:
			default:
				// Drop rather than block every other recipient.
			}
		}
	}
}
