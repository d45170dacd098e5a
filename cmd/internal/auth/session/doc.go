// Package session implements Refind's session/credential lifecycle.
//
// A session is one issued credential pair: a short-lived opaque session token
// that bearer-authenticates ordinary requests, and a longer-lived opaque
// refresh token that only mints replacement session tokens. Refresh does not
// rotate the refresh token; it overwrites the session token and expiration in
// place. Logout deletes the session row, killing both tokens.
//
// Tokens are random opaque strings and are stored hashed in Postgres
// (HMAC-SHA256 when REFIND_TOKEN_HMAC_KEY is set; otherwise SHA-256 for dev).
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
