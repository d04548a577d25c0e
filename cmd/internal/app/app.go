// Package app wires the clientauth server runtime: config, logging, storage,
// the auth workflow engine, and HTTP routes.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"clientauth/cmd/identity"
	"clientauth/cmd/internal/auth"
	authapi "clientauth/cmd/internal/auth/api"
	"clientauth/cmd/internal/auth/reset"
	"clientauth/cmd/internal/auth/session"
	clientsapi "clientauth/cmd/internal/clients/api"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the server runtime. It owns the HTTP server wiring and the
// lifecycle of DB-backed resources.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	authH    *authapi.Handler
	clientsH *clientsapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	a := &App{cfg: cfg, log: log}

	var (
		accounts  identity.Store
		resets    reset.Store
		sessStore session.Store
	)

	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")

		mem := identity.NewMemoryStore()
		memResets := reset.NewMemoryStore(cfg.ResetTTL)
		memSessions := session.NewMemoryStore()
		mem.OnDeleteCascade(memSessions.WipeClient, memResets.WipeClient)

		accounts, resets, sessStore = mem, memResets, memSessions
	} else {
		pool, err := NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		a.dbPool = pool
		a.dbEnabled = true

		if cfg.DBMigrate {
			if err := a.migrate(); err != nil {
				pool.Close()
				return nil, err
			}
		}

		log.Info("db.enabled.postgres_store")

		pgAccounts, err := identity.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pgResets, err := reset.NewPostgresStore(pool, cfg.ResetTTL)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pgSessions, err := session.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		accounts, resets, sessStore = pgAccounts, pgResets, pgSessions
	}

	secret := cfg.JWTSecret
	if secret == "" {
		if a.dbEnabled {
			a.closeDB()
			return nil, errors.New("CLIENTAUTH_JWT_SECRET must be set when a database is configured")
		}
		// Ephemeral secret for local runs: tokens do not survive restarts.
		secret = randomSecret()
		log.Warn("jwt.secret.ephemeral", "reason", "CLIENTAUTH_JWT_SECRET not set")
	}

	issuer, err := session.NewJWTManager([]byte(secret), cfg.SessionTTL)
	if err != nil {
		a.closeDB()
		return nil, err
	}
	sessions := session.NewService(issuer, sessStore)

	notifier := auth.NewLogNotifier(log, cfg.FrontendURL)
	engine := auth.NewService(log, accounts, resets, sessions, notifier)

	a.authH = authapi.NewHandler(log, authapi.Config{MaxBodyBytes: cfg.MaxBodyBytes}, engine)
	a.clientsH = clientsapi.NewHandler(log, clientsapi.Config{MaxBodyBytes: cfg.MaxBodyBytes}, accounts, engine)

	return a, nil
}

func (a *App) migrate() error {
	m, err := NewMigrator(a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			a.log.Warn("db.migrate.close.fail", "err", cerr)
		}
	}()

	if err := m.Up(); err != nil {
		return err
	}
	a.log.Info("db.migrate.done")
	return nil
}

func (a *App) closeDB() {
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.authH, a.clientsH)

	var handler http.Handler = mux
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.closeDB()

	a.log.Info("server.stopped")
	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
