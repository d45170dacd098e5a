package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// Security policy:
	// If true, REFIND_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and token hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("REFIND_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("REFIND_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("REFIND_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("REFIND_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("REFIND_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("REFIND_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("REFIND_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("REFIND_DATABASE_URL", ""),
		DBSchema:    EnvString("REFIND_DB_SCHEMA", "refind"),
		DBMaxConns:  EnvInt32("REFIND_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("REFIND_DB_MIN_CONNS", 0),

		CORSAllowedOrigins:   EnvCSV("REFIND_CORS_ALLOWED_ORIGINS", ""),
		CORSAllowCredentials: EnvBool("REFIND_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("REFIND_CORS_MAX_AGE_SECONDS", 600),

		RequireTokenHMAC: EnvBool("REFIND_REQUIRE_TOKEN_HMAC", false),
	}
}
