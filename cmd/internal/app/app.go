// Package app wires the Refind server runtime: config, logging, persistence,
// HTTP routes, and the chat WebSocket gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"refind/cmd/identity"
	authapi "refind/cmd/internal/auth/api"
	"refind/cmd/internal/auth/session"
	"refind/cmd/internal/chat"
	"refind/cmd/internal/lostfound"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App owns the HTTP server wiring and the shared pgx pool.
type App struct {
	cfg Config
	log Logger

	pool *pgxpool.Pool

	auth          *authapi.Handler
	posts         *lostfound.Handler
	conversations *chat.Handler
	ws            *chat.WSGateway
}

// New constructs a fully wired App instance from config and logger.
// The database is mandatory: every store is Postgres-backed.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("app: REFIND_DATABASE_URL is required")
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a, err := wire(cfg, log, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

// wire assembles every store, service, and handler on top of the pool.
func wire(cfg Config, log Logger, pool *pgxpool.Pool) (*App, error) {
	users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sessStore, err := session.NewPostgresStore(pool, session.WithSchema(cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewService(sessCfg, sessStore)
	if err != nil {
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()
	auth, err := authapi.NewHandler(log, authCfg, users, sessions)
	if err != nil {
		return nil, err
	}

	postStore, err := lostfound.NewPostgresStore(pool, lostfound.WithSchema(cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	postSvc, err := lostfound.NewService(postStore)
	if err != nil {
		return nil, err
	}
	posts, err := lostfound.NewHandler(log, postSvc, sessions, authCfg.MaxBodyBytes)
	if err != nil {
		return nil, err
	}

	chatStore, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	hub := chat.NewHub(log)
	chatSvc, err := chat.NewService(chatStore, hub)
	if err != nil {
		return nil, err
	}
	conversations, err := chat.NewHandler(log, chatSvc, users, sessions, authCfg.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	ws, err := chat.NewWSGateway(log, hub, sessions)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:           cfg,
		log:           log,
		pool:          pool,
		auth:          auth,
		posts:         posts,
		conversations: conversations,
		ws:            ws,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.pool, a.auth, a.posts, a.conversations, a.ws)

	var handler http.Handler = mux
	handler = WithHTTPMetrics(handler)
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, a.cfg, a.log)
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

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr)

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

	a.pool.Close()

	a.log.Info("server.stopped")
	return nil
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
