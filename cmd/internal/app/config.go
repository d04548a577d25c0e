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
	MaxBodyBytes      int64

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, embedded schema migrations are applied on startup.
	DBMigrate bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Secret for signing access tokens. Must be >= 32 bytes when the
	// database is configured; in memory mode an ephemeral secret is
	// generated when unset.
	JWTSecret string

	SessionTTL time.Duration
	ResetTTL   time.Duration

	// FrontendURL is the base used to build password-reset links.
	FrontendURL string

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("CLIENTAUTH_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("CLIENTAUTH_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("CLIENTAUTH_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CLIENTAUTH_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CLIENTAUTH_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CLIENTAUTH_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CLIENTAUTH_HTTP_MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:   EnvInt64("CLIENTAUTH_HTTP_MAX_BODY_BYTES", 1<<20),

		DatabaseURL: EnvString("CLIENTAUTH_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CLIENTAUTH_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CLIENTAUTH_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("CLIENTAUTH_DB_MIGRATE", false),

		ReadinessRequireDB: EnvBool("CLIENTAUTH_READINESS_REQUIRE_DB", false),

		JWTSecret:  EnvString("CLIENTAUTH_JWT_SECRET", ""),
		SessionTTL: EnvDuration("CLIENTAUTH_SESSION_TTL", 24*time.Hour),
		ResetTTL:   EnvDuration("CLIENTAUTH_RESET_TTL", 30*time.Minute),

		FrontendURL: EnvString("CLIENTAUTH_FRONTEND_URL", "http://localhost:3000"),

		CORSAllowedOrigins:   EnvStringList("CLIENTAUTH_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("CLIENTAUTH_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("CLIENTAUTH_CORS_MAX_AGE_SECONDS", 600),
	}
}
