package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"refind/cmd/identity"
	"refind/cmd/internal/auth/session"
	"refind/cmd/internal/metrics"
	"refind/cmd/internal/web"
)

// Handler wires the auth HTTP endpoints to the identity store and session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	users    identity.Store
	sessions *session.Service

	// now is the clock seam; tests override it via WithClock.
	now func() time.Time

	// dummyDigest is verified when login hits an unknown username, so the
	// missing-user and bad-password paths cost the same.
	dummyDigest string
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the handler's time source.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs the auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("authapi: nil identity store")
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	if digest, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyDigest = digest
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
// Trailing slashes match the original public API.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/users/register/", h.handleRegister)
	mux.HandleFunc("/api/users/login/", h.handleLogin)
	mux.HandleFunc("/api/users/logout/", h.handleLogout)
	mux.HandleFunc("/api/users/refresh/", h.handleRefresh)
	mux.HandleFunc("/api/users/me/", h.handleMe)
}

// Sessions returns the underlying session service for other protected surfaces.
func (h *Handler) Sessions() *session.Service {
	if h == nil {
		return nil
	}
	return h.sessions
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := web.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" ||
		strings.TrimSpace(req.Username) == "" ||
		strings.TrimSpace(req.Email) == "" ||
		req.Password == "" {
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	ctx := r.Context()
	now := h.now()

	user, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			web.WriteError(w, http.StatusBadRequest, "User already exists")
		case identity.IsInvalidInput(err):
			web.WriteError(w, http.StatusBadRequest, "Invalid body")
		default:
			h.log.Error("auth.register.fail", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	issued, err := h.sessions.Issue(ctx, now, user.ID)
	if err != nil {
		h.log.Error("auth.register.issue_session.fail", "err", err, "user_id", user.ID)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	metrics.Registrations.Inc()
	h.log.Info("auth.register.ok", "user_id", user.ID)

	web.WriteJSON(w, http.StatusCreated, toTokenResponse(issued))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := web.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		web.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	ctx := r.Context()
	now := h.now()

	ua, err := h.users.GetUserAuthByUsername(ctx, req.Username)
	if err != nil {
		if identity.IsNotFound(err) {
			// Timing resistance: unknown usernames still pay for a verify.
			if h.dummyDigest != "" {
				_, _ = identity.VerifyPassword(req.Password, h.dummyDigest)
			}
			metrics.AuthFailures.WithLabelValues("invalid_credentials").Inc()
			web.WriteError(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	ok, err := identity.VerifyPassword(req.Password, ua.PasswordDigest)
	if err != nil || !ok {
		// Unknown user and wrong password are indistinguishable by design.
		metrics.AuthFailures.WithLabelValues("invalid_credentials").Inc()
		web.WriteError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, ua.User.ID)
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err, "user_id", ua.User.ID)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	metrics.Logins.Inc()
	h.log.Info("auth.login.ok", "user_id", ua.User.ID)

	web.WriteJSON(w, http.StatusOK, toTokenResponse(issued))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tok := web.BearerToken(r)
	if tok == "" {
		web.WriteError(w, http.StatusUnauthorized, web.InvalidSessionMessage)
		return
	}

	err := h.sessions.Logout(r.Context(), h.now(), tok)
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) {
			// Missing, expired, and already-logged-out all land here on purpose.
			metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
			web.WriteError(w, http.StatusUnauthorized, web.InvalidSessionMessage)
			return
		}
		h.log.Error("auth.logout.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	web.WriteJSON(w, http.StatusOK, messageResponse{Message: "You have been logged out"})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// The refresh route is the one place a refresh token is expected; session
	// tokens presented here fail the lookup in the disjoint hash namespace.
	tok := web.BearerToken(r)
	if tok == "" {
		web.WriteError(w, http.StatusBadRequest, "Invalid refresh token")
		return
	}

	issued, err := h.sessions.Refresh(r.Context(), h.now(), tok)
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) {
			metrics.AuthFailures.WithLabelValues("invalid_refresh_token").Inc()
			web.WriteError(w, http.StatusBadRequest, "Invalid refresh token")
			return
		}
		h.log.Error("auth.refresh.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	metrics.SessionRefreshes.Inc()

	web.WriteJSON(w, http.StatusOK, toTokenResponse(issued))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		web.RequireSession(h.sessions, h.getMe)(w, r)
	case http.MethodDelete:
		web.RequireSession(h.sessions, h.deleteMe)(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	u, err := h.users.GetUserByID(r.Context(), ident.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			web.WriteError(w, http.StatusUnauthorized, web.InvalidSessionMessage)
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	web.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// deleteMe removes the account. Sessions, posts and messages cascade in the
// store, so every outstanding token for this user stops validating.
func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	if err := h.users.DeleteUser(r.Context(), ident.UserID); err != nil {
		if identity.IsNotFound(err) {
			web.WriteError(w, http.StatusUnauthorized, web.InvalidSessionMessage)
			return
		}
		h.log.Error("auth.delete_user.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	h.log.Info("auth.delete_user.ok", "user_id", ident.UserID)
	web.WriteJSON(w, http.StatusOK, messageResponse{Message: "Account deleted"})
}

// ---- mapping ----

func toTokenResponse(issued session.Issued) tokenResponse {
	return tokenResponse{
		SessionToken:      issued.SessionToken,
		SessionExpiration: issued.Expiration,
		RefreshToken:      issued.RefreshToken,
	}
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
