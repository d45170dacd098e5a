package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"refind/cmd/identity"
	"refind/cmd/internal/auth/session"

	"golang.org/x/crypto/bcrypt"
)

// ---- fakes ----

type fakeSessionStore struct {
	mu   sync.Mutex
	rows map[string]session.Row
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{rows: make(map[string]session.Row)}
}

func (f *fakeSessionStore) Create(_ context.Context, row session.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row.ID] = row
	return nil
}

func (f *fakeSessionStore) GetBySessionTokenHash(_ context.Context, hash string) (session.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.SessionTokenHash == hash {
			return r, nil
		}
	}
	return session.Row{}, session.ErrSessionNotFound
}

func (f *fakeSessionStore) RenewByRefreshHash(_ context.Context, now time.Time, refreshHash, newSessionTokenHash string, expiresAt time.Time) (session.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.RefreshTokenHash == refreshHash {
			r.SessionTokenHash = newSessionTokenHash
			r.ExpiresAt = expiresAt
			r.LastRefreshedAt = &now
			f.rows[id] = r
			return r, nil
		}
	}
	return session.Row{}, session.ErrSessionNotFound
}

func (f *fakeSessionStore) DeleteByID(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[sessionID]; !ok {
		return session.ErrSessionNotFound
	}
	delete(f.rows, sessionID)
	return nil
}

func (f *fakeSessionStore) deleteAllForUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.UserID == userID {
			delete(f.rows, id)
		}
	}
}

func (f *fakeSessionStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeUserStore keeps users in memory and simulates the session cascade on
// user deletion.
type fakeUserStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]identity.UserAuth // by id
	sessions *fakeSessionStore
}

func newFakeUserStore(sessions *fakeSessionStore) *fakeUserStore {
	return &fakeUserStore{users: make(map[string]identity.UserAuth), sessions: sessions}
}

func (f *fakeUserStore) CreateUser(_ context.Context, in identity.CreateUserInput) (identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	norm := identity.NormalizeUsername(in.Username)
	for _, ua := range f.users {
		if identity.NormalizeUsername(ua.User.Username) == norm {
			return identity.User{}, identity.ConflictError{Op: "fake.CreateUser", Field: "username"}
		}
		if identity.NormalizeEmail(ua.User.Email) == identity.NormalizeEmail(in.Email) {
			return identity.User{}, identity.ConflictError{Op: "fake.CreateUser", Field: "email"}
		}
	}

	digest, err := identity.HashPasswordCost(in.Password, bcrypt.MinCost)
	if err != nil {
		return identity.User{}, err
	}

	f.seq++
	u := identity.User{
		ID:        fmt.Sprintf("user-%d", f.seq),
		Name:      in.Name,
		Username:  in.Username,
		Email:     in.Email,
		CreatedAt: in.Now,
	}
	f.users[u.ID] = identity.UserAuth{User: u, PasswordDigest: digest}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua, ok := f.users[id]
	if !ok {
		return identity.User{}, identity.NotFoundError{Op: "fake.GetUserByID", Resource: "user"}
	}
	return ua.User, nil
}

func (f *fakeUserStore) GetUserAuthByUsername(_ context.Context, username string) (identity.UserAuth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	norm := identity.NormalizeUsername(username)
	for _, ua := range f.users {
		if identity.NormalizeUsername(ua.User.Username) == norm {
			return ua, nil
		}
	}
	return identity.UserAuth{}, identity.NotFoundError{Op: "fake.GetUserAuthByUsername", Resource: "user"}
}

func (f *fakeUserStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	if _, ok := f.users[id]; !ok {
		f.mu.Unlock()
		return identity.NotFoundError{Op: "fake.DeleteUser", Resource: "user"}
	}
	delete(f.users, id)
	f.mu.Unlock()

	f.sessions.deleteAllForUser(id)
	return nil
}

// ---- harness ----

type testEnv struct {
	mux      *http.ServeMux
	sessions *fakeSessionStore
	users    *fakeUserStore
	clock    *time.Time
}

func newTestEnv(t *testing.T, ttl time.Duration) *testEnv {
	t.Helper()

	sessStore := newFakeSessionStore()
	userStore := newFakeUserStore(sessStore)

	cfg := session.DefaultConfig()
	cfg.SessionTTL = ttl
	svc, err := session.NewService(cfg, sessStore)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	now := time.Now().UTC()
	h, err := NewHandler(nil, DefaultConfig(), userStore, svc, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{mux: mux, sessions: sessStore, users: userStore, clock: &now}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func decodeTokens(t *testing.T, rr *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var resp tokenResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v (body %q)", err, rr.Body.String())
	}
	return resp
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rr.Body.String())
	}
	return resp.Error
}

func register(t *testing.T, e *testEnv, username string) tokenResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/users/register/", "", registerRequest{
		Name:     "Test Bear",
		Username: username,
		Email:    username + "@cornell.edu",
		Password: "correct horse battery staple",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %q", rr.Code, rr.Body.String())
	}
	return decodeTokens(t, rr)
}

// ---- tests ----

func TestRegisterThenLogin(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)

	reg := register(t, e, "touchdown")
	if reg.SessionToken == "" || reg.RefreshToken == "" {
		t.Fatalf("register must issue both tokens")
	}

	rr := e.do(t, http.MethodPost, "/api/users/login/", "", loginRequest{
		Username: "touchdown",
		Password: "correct horse battery staple",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d body %q", rr.Code, rr.Body.String())
	}
	login := decodeTokens(t, rr)

	// Both credential pairs are live: multi-session per user.
	for _, tok := range []string{reg.SessionToken, login.SessionToken} {
		rr := e.do(t, http.MethodGet, "/api/users/me/", tok, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("me with valid token: status %d body %q", rr.Code, rr.Body.String())
		}
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)

	register(t, e, "touchdown")
	rr := e.do(t, http.MethodPost, "/api/users/register/", "", registerRequest{
		Name:     "Impostor",
		Username: "Touchdown",
		Email:    "other@cornell.edu",
		Password: "whatever-password",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: status %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "User already exists" {
		t.Fatalf("duplicate register message: %q", msg)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)
	register(t, e, "touchdown")

	cases := []loginRequest{
		{Username: "touchdown", Password: "wrong password"},
		{Username: "nobody", Password: "whatever"},
	}
	for _, c := range cases {
		before := e.sessions.count()
		rr := e.do(t, http.MethodPost, "/api/users/login/", "", c)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("login %q: status %d", c.Username, rr.Code)
		}
		// Unknown user and wrong password read identically.
		if msg := errorMessage(t, rr); msg != "Invalid credentials" {
			t.Fatalf("login %q: message %q", c.Username, msg)
		}
		if e.sessions.count() != before {
			t.Fatalf("failed login must not create a session")
		}
	}
}

func TestRefreshRotatesSessionToken(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)
	reg := register(t, e, "touchdown")

	rr := e.do(t, http.MethodPost, "/api/users/refresh/", reg.RefreshToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %q", rr.Code, rr.Body.String())
	}
	renewed := decodeTokens(t, rr)

	if renewed.SessionToken == reg.SessionToken {
		t.Fatalf("refresh must mint a new session token")
	}
	if renewed.RefreshToken != reg.RefreshToken {
		t.Fatalf("refresh must keep the refresh token")
	}

	// The retired session token is gone; the new one authorizes.
	if rr := e.do(t, http.MethodGet, "/api/users/me/", reg.SessionToken, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("old session token still accepted: %d", rr.Code)
	}
	if rr := e.do(t, http.MethodGet, "/api/users/me/", renewed.SessionToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("new session token rejected: %d", rr.Code)
	}
}

func TestRefreshRejectsSessionToken(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)
	reg := register(t, e, "touchdown")

	rr := e.do(t, http.MethodPost, "/api/users/refresh/", reg.SessionToken, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("refresh with session token: status %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Invalid refresh token" {
		t.Fatalf("refresh with session token: message %q", msg)
	}
}

func TestLogoutIsNotIdempotent(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)
	reg := register(t, e, "touchdown")

	rr := e.do(t, http.MethodPost, "/api/users/logout/", reg.SessionToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: status %d body %q", rr.Code, rr.Body.String())
	}

	// Both tokens are dead now.
	if rr := e.do(t, http.MethodPost, "/api/users/refresh/", reg.RefreshToken, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("refresh token survived logout: %d", rr.Code)
	}

	rr = e.do(t, http.MethodPost, "/api/users/logout/", reg.SessionToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("second logout: status %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Invalid session token" {
		t.Fatalf("second logout message: %q", msg)
	}
}

func TestExpiredTokenAtTheGate(t *testing.T) {
	// One-nanosecond TTL: the issued session token is already expired by the
	// time the gate checks it against the wall clock.
	e := newTestEnv(t, time.Nanosecond)
	reg := register(t, e, "touchdown")

	rr := e.do(t, http.MethodGet, "/api/users/me/", reg.SessionToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status %d", rr.Code)
	}
	// Expired and unknown read identically at the gate.
	if msg := errorMessage(t, rr); msg != "Invalid session token" {
		t.Fatalf("expired token message: %q", msg)
	}

	// The refresh token still works: refresh is the recovery path.
	rr = e.do(t, http.MethodPost, "/api/users/refresh/", reg.RefreshToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh after expiry: status %d body %q", rr.Code, rr.Body.String())
	}
}

func TestDeleteUserInvalidatesAllSessions(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)
	reg := register(t, e, "touchdown")

	// A second live session for the same user.
	rr := e.do(t, http.MethodPost, "/api/users/login/", "", loginRequest{
		Username: "touchdown",
		Password: "correct horse battery staple",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d", rr.Code)
	}
	second := decodeTokens(t, rr)

	if rr := e.do(t, http.MethodDelete, "/api/users/me/", reg.SessionToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete account: status %d body %q", rr.Code, rr.Body.String())
	}

	for _, tok := range []string{reg.SessionToken, second.SessionToken} {
		if rr := e.do(t, http.MethodGet, "/api/users/me/", tok, nil); rr.Code != http.StatusUnauthorized {
			t.Fatalf("session survived user deletion: %d", rr.Code)
		}
	}
	for _, tok := range []string{reg.RefreshToken, second.RefreshToken} {
		if rr := e.do(t, http.MethodPost, "/api/users/refresh/", tok, nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("refresh token survived user deletion: %d", rr.Code)
		}
	}
}

func TestBearerParsing(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)
	reg := register(t, e, "touchdown")

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/", nil)
	req.Header.Set("Authorization", "bearer "+reg.SessionToken) // lower-case scheme
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("lower-case bearer scheme rejected: %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users/me/", nil)
	req.Header.Set("Authorization", reg.SessionToken) // no scheme
	rr = httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing scheme accepted: %d", rr.Code)
	}
}

func TestRegisterRejectsPartialBody(t *testing.T) {
	e := newTestEnv(t, 24*time.Hour)

	rr := e.do(t, http.MethodPost, "/api/users/register/", "", map[string]string{
		"username": "no-password",
		"email":    "x@cornell.edu",
		"name":     "X",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("partial register body: status %d", rr.Code)
	}
	if msg := errorMessage(t, rr); msg != "Invalid body" {
		t.Fatalf("partial register message: %q", msg)
	}
}
