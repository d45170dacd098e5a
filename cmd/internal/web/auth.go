package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"refind/cmd/internal/auth/session"
	"refind/cmd/internal/metrics"
)

// InvalidSessionMessage is the uniform user-facing message for every session
// resolution failure at the gate. Missing, unknown, and expired tokens are
// deliberately indistinguishable to the caller.
const InvalidSessionMessage = "Invalid session token"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// Returns "" when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthedHandler handles a request on behalf of an already-resolved identity.
// Protected operations receive the identity explicitly; there is no ambient
// "current user".
type AuthedHandler func(w http.ResponseWriter, r *http.Request, ident session.Identity)

// RequireSession is the sole authorization gate for protected routes.
//
// It resolves the bearer session token through the session validator and
// invokes next with the identity. Every resolution failure is surfaced as the
// same generic invalid-token response; infrastructure failures map to 503.
func RequireSession(sessions *session.Service, next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := BearerToken(r)
		if tok == "" {
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			WriteError(w, http.StatusUnauthorized, InvalidSessionMessage)
			return
		}

		ident, err := sessions.Validate(r.Context(), time.Now().UTC(), tok)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrExpired):
				metrics.AuthFailures.WithLabelValues("expired").Inc()
				WriteError(w, http.StatusUnauthorized, InvalidSessionMessage)
			case errors.Is(err, session.ErrInvalidToken):
				metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
				WriteError(w, http.StatusUnauthorized, InvalidSessionMessage)
			default:
				WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
			}
			return
		}

		next(w, r, ident)
	}
}
