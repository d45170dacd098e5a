package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// It controls the session-token TTL and the entropy of generated tokens.
// The struct is intentionally explicit and environment-driven so deployments
// can tune security parameters without code changes.
type Config struct {
	// SessionTTL defines how long an issued session token is accepted.
	// Refresh tokens are not time-limited; they live until logout or user deletion.
	SessionTTL time.Duration

	// TokenBytes defines the number of random bytes behind each opaque token.
	TokenBytes int
}

// DefaultConfig returns the defaults used in development.
func DefaultConfig() Config {
	return Config{
		SessionTTL: 24 * time.Hour,
		TokenBytes: 32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - REFIND_AUTH_SESSION_TTL (Go duration string, > 0)
//   - REFIND_AUTH_TOKEN_BYTES (32..64)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("REFIND_AUTH_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SessionTTL = d
	}

	if v := os.Getenv("REFIND_AUTH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	return cfg, nil
}
