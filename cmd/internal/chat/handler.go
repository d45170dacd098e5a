package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"refind/cmd/identity"
	"refind/cmd/internal/auth/session"
	"refind/cmd/internal/web"
)

// Handler exposes messaging over HTTP.
//
// Routes (all protected by the session gate):
//
//	POST /api/conversations/                   get-or-create with a peer
//	GET  /api/conversations/                   list own conversations
//	GET  /api/conversations/{id}/messages/     history (?limit=N)
//	POST /api/conversations/{id}/messages/     send
type Handler struct {
	log          *slog.Logger
	svc          *Service
	users        identity.Store
	sessions     *session.Service
	maxBodyBytes int64

	now func() time.Time
}

// NewHandler constructs the messaging HTTP handler.
func NewHandler(log *slog.Logger, svc *Service, users identity.Store, sessions *session.Service, maxBodyBytes int64) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("chat: nil service")
	}
	if users == nil {
		return nil, errors.New("chat: nil identity store")
	}
	if sessions == nil {
		return nil, errors.New("chat: nil session service")
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{
		log:          log,
		svc:          svc,
		users:        users,
		sessions:     sessions,
		maxBodyBytes: maxBodyBytes,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register wires the messaging routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/conversations/", h.handleConversations)
}

func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			web.RequireSession(h.sessions, h.start)(w, r)
		case http.MethodGet:
			web.RequireSession(h.sessions, h.list)(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "messages" {
		http.NotFound(w, r)
		return
	}
	convID := parts[0]

	switch r.Method {
	case http.MethodGet:
		web.RequireSession(h.sessions, h.history(convID))(w, r)
	case http.MethodPost:
		web.RequireSession(h.sessions, h.send(convID))(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type startConversationRequest struct {
	PeerID string `json:"peer_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type conversationResponse struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1_id"`
	User2ID   string    `json:"user2_id"`
	PeerID    string    `json:"peer_id"`
	CreatedAt time.Time `json:"created_at"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	var req startConversationRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	peerID := strings.TrimSpace(req.PeerID)
	if peerID == "" {
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	// Verify the peer before creating the row, so a typo yields a clean 404
	// instead of a foreign key violation.
	if _, err := h.users.GetUserByID(r.Context(), peerID); err != nil {
		if identity.IsNotFound(err) {
			web.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error("chat.start.peer_lookup.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	conv, err := h.svc.Start(r.Context(), h.now(), ident.UserID, peerID)
	if err != nil {
		h.writeErr(w, err, "chat.start")
		return
	}

	web.WriteJSON(w, http.StatusOK, toConversationResponse(conv, ident.UserID))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	convs, err := h.svc.List(r.Context(), ident.UserID)
	if err != nil {
		h.writeErr(w, err, "chat.list")
		return
	}

	out := make([]conversationResponse, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversationResponse(c, ident.UserID))
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

func (h *Handler) history(convID string) web.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, ident session.Identity) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				web.WriteError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = n
		}

		msgs, err := h.svc.History(r.Context(), ident.UserID, convID, limit)
		if err != nil {
			h.writeErr(w, err, "chat.history")
			return
		}

		out := make([]messageResponse, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, toMessageResponse(m))
		}
		web.WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
	}
}

func (h *Handler) send(convID string) web.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, ident session.Identity) {
		var req sendMessageRequest
		if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
			web.WriteError(w, http.StatusBadRequest, "Invalid body")
			return
		}

		m, err := h.svc.Send(r.Context(), h.now(), ident.UserID, convID, req.Content)
		if err != nil {
			h.writeErr(w, err, "chat.send")
			return
		}

		web.WriteJSON(w, http.StatusCreated, toMessageResponse(m))
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		web.WriteError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, ErrForbidden):
		web.WriteError(w, http.StatusForbidden, "Not a participant")
	case errors.Is(err, ErrInvalidInput):
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
	default:
		h.log.Error(op+".fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
	}
}

func toConversationResponse(c Conversation, viewerID string) conversationResponse {
	return conversationResponse{
		ID:        c.ID,
		User1ID:   c.User1ID,
		User2ID:   c.User2ID,
		PeerID:    c.Peer(viewerID),
		CreatedAt: c.CreatedAt,
	}
}

func toMessageResponse(m Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
