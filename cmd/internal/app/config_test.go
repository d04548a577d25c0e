package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("SessionTTL=%v", cfg.SessionTTL)
	}
	if cfg.ResetTTL != 30*time.Minute {
		t.Fatalf("ResetTTL=%v", cfg.ResetTTL)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL=%q", cfg.DatabaseURL)
	}
	if cfg.DBMigrate {
		t.Fatal("DBMigrate should default to false")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes=%d", cfg.MaxBodyBytes)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CLIENTAUTH_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("CLIENTAUTH_SESSION_TTL", "90m")
	t.Setenv("CLIENTAUTH_DB_MIGRATE", "true")
	t.Setenv("CLIENTAUTH_CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Fatalf("SessionTTL=%v", cfg.SessionTTL)
	}
	if !cfg.DBMigrate {
		t.Fatal("DBMigrate not set")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("CORSAllowedOrigins=%v", cfg.CORSAllowedOrigins)
	}
}
