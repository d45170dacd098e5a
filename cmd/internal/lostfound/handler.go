package lostfound

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"refind/cmd/internal/auth/session"
	"refind/cmd/internal/web"
)

// Handler exposes the board over HTTP.
//
// Routes (all protected by the session gate):
//
//	POST   /api/posts/           create
//	GET    /api/posts/           list (?limit=N)
//	GET    /api/posts/{id}/      read
//	PATCH  /api/posts/{id}/      partial update, owner only
//	DELETE /api/posts/{id}/      delete, owner only
type Handler struct {
	log          *slog.Logger
	svc          *Service
	sessions     *session.Service
	maxBodyBytes int64

	now func() time.Time
}

// NewHandler constructs the board HTTP handler.
func NewHandler(log *slog.Logger, svc *Service, sessions *session.Service, maxBodyBytes int64) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("lostfound: nil service")
	}
	if sessions == nil {
		return nil, errors.New("lostfound: nil session service")
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{
		log:          log,
		svc:          svc,
		sessions:     sessions,
		maxBodyBytes: maxBodyBytes,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register wires the board routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/posts/", h.handlePosts)
}

// handlePosts dispatches on the trailing path segment: the collection when
// empty, a single post otherwise.
func (h *Handler) handlePosts(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			web.RequireSession(h.sessions, h.create)(w, r)
		case http.MethodGet:
			web.RequireSession(h.sessions, h.list)(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}

	id := rest
	switch r.Method {
	case http.MethodGet:
		web.RequireSession(h.sessions, h.get(id))(w, r)
	case http.MethodPatch:
		web.RequireSession(h.sessions, h.patch(id))(w, r)
	case http.MethodDelete:
		web.RequireSession(h.sessions, h.delete(id))(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type createPostRequest struct {
	Title    string `json:"title"`
	Item     string `json:"item"`
	Status   string `json:"status"`
	Text     string `json:"text"`
	Location string `json:"location"`
}

// patchPostRequest mirrors Patch at the wire level: absent fields stay nil
// and leave the stored value untouched.
type patchPostRequest struct {
	Title    *string `json:"title"`
	Item     *string `json:"item"`
	Status   *string `json:"status"`
	Text     *string `json:"text"`
	Location *string `json:"location"`
}

type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Item      string    `json:"item"`
	Status    string    `json:"status"`
	Text      string    `json:"text"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	var req createPostRequest
	if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	p, err := h.svc.Create(r.Context(), h.now(), ident.UserID, CreateInput{
		Title:    req.Title,
		Item:     req.Item,
		Status:   req.Status,
		Text:     req.Text,
		Location: req.Location,
	})
	if err != nil {
		h.writeErr(w, err, "post.create")
		return
	}

	h.log.Info("post.create.ok", "post_id", p.ID, "user_id", ident.UserID)
	web.WriteJSON(w, http.StatusCreated, toPostResponse(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, _ session.Identity) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			web.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	posts, err := h.svc.List(r.Context(), limit)
	if err != nil {
		h.writeErr(w, err, "post.list")
		return
	}

	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"posts": out})
}

func (h *Handler) get(id string) web.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, _ session.Identity) {
		p, err := h.svc.Get(r.Context(), id)
		if err != nil {
			h.writeErr(w, err, "post.get")
			return
		}
		web.WriteJSON(w, http.StatusOK, toPostResponse(p))
	}
}

func (h *Handler) patch(id string) web.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, ident session.Identity) {
		var req patchPostRequest
		if err := web.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
			web.WriteError(w, http.StatusBadRequest, "Invalid body")
			return
		}

		p, err := h.svc.Update(r.Context(), ident.UserID, id, Patch{
			Title:    req.Title,
			Item:     req.Item,
			Status:   req.Status,
			Text:     req.Text,
			Location: req.Location,
		})
		if err != nil {
			h.writeErr(w, err, "post.patch")
			return
		}

		h.log.Info("post.patch.ok", "post_id", p.ID, "user_id", ident.UserID)
		web.WriteJSON(w, http.StatusOK, toPostResponse(p))
	}
}

func (h *Handler) delete(id string) web.AuthedHandler {
	return func(w http.ResponseWriter, r *http.Request, ident session.Identity) {
		if err := h.svc.Delete(r.Context(), ident.UserID, id); err != nil {
			h.writeErr(w, err, "post.delete")
			return
		}

		h.log.Info("post.delete.ok", "post_id", id, "user_id", ident.UserID)
		web.WriteJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		web.WriteError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, ErrForbidden):
		web.WriteError(w, http.StatusForbidden, "Not your post")
	case errors.Is(err, ErrInvalidInput):
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
	default:
		h.log.Error(op+".fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
	}
}

func toPostResponse(p Post) postResponse {
	return postResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		Item:      p.Item,
		Status:    p.Status,
		Text:      p.Text,
		Location:  p.Location,
		Timestamp: p.CreatedAt,
	}
}
