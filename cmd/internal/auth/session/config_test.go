package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("REFIND_AUTH_SESSION_TTL", "")
	t.Setenv("REFIND_AUTH_TOKEN_BYTES", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("default session ttl mismatch: %v", cfg.SessionTTL)
	}
	if cfg.TokenBytes != 32 {
		t.Fatalf("default token bytes mismatch: %d", cfg.TokenBytes)
	}
}

func TestLoadConfigFromEnv_InvalidTTL(t *testing.T) {
	t.Setenv("REFIND_AUTH_SESSION_TTL", "-5m")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for negative ttl, got %v", err)
	}
}

func TestLoadConfigFromEnv_TokenBytesTooSmall(t *testing.T) {
	t.Setenv("REFIND_AUTH_TOKEN_BYTES", "16")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for small token bytes, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("REFIND_AUTH_SESSION_TTL", "12h")
	t.Setenv("REFIND_AUTH_TOKEN_BYTES", "48")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("session ttl mismatch: %v", cfg.SessionTTL)
	}
	if cfg.TokenBytes != 48 {
		t.Fatalf("token bytes mismatch: %d", cfg.TokenBytes)
	}
}
