package authapi

import (
	"os"
	"strconv"
)

// Config holds the auth HTTP surface configuration.
type Config struct {
	// MaxBodyBytes bounds every decoded request body.
	MaxBodyBytes int64
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 1 << 20,
	}
}

// LoadConfigFromEnv loads auth API configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("REFIND_AUTH_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}

	return cfg
}
