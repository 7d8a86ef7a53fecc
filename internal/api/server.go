// Package api provides the JSON REST API and SSE generation stream for
// sitegen.
//
// # Architecture
//
// Go 1.22+ method routing with a layered middleware stack:
//
//	Recovery → CORS → Logging → Routes
//
// Authentication is per-route: handlers that need an account are
// wrapped by the session-cookie middleware, which resolves the cookie
// to a user and stores it on the request context. The generation
// endpoint additionally sits behind a per-client rate limiter.
//
// # Endpoints
//
// Accounts:
//   - POST /api/v1/users/register — create an account
//   - POST /api/v1/users/login    — authenticate, sets session cookie
//   - POST /api/v1/users/logout   — invalidate the session
//   - GET  /api/v1/users/me       — current account
//
// Applications (ownership-enforced):
//   - POST   /api/v1/apps               — create
//   - GET    /api/v1/apps               — list caller's apps
//   - GET    /api/v1/apps/featured      — public featured list
//   - GET    /api/v1/apps/{id}          — detail
//   - PATCH  /api/v1/apps/{id}          — rename / redescribe
//   - DELETE /api/v1/apps/{id}          — delete, chat history cascades
//   - POST   /api/v1/apps/{id}/deploy   — publish artifact, returns URL
//   - GET    /api/v1/apps/{id}/download — artifact as a zip archive
//
// Generation and history (ownership-enforced):
//   - GET /api/v1/apps/{id}/chat/gen/code?message=&edit= — SSE stream
//   - GET /api/v1/apps/{id}/history?cursor=&size=        — cursor paged
//
// Administration (admin role required):
//   - GET    /api/v1/admin/apps       — list every app, paged
//   - GET    /api/v1/admin/apps/{id}  — detail regardless of owner
//   - PATCH  /api/v1/admin/apps/{id}  — rename / toggle featured
//   - DELETE /api/v1/admin/apps/{id}  — delete regardless of owner
//
// Deployed sites and probes (unauthenticated):
//   - GET /static/{deployKey}/... — serve published sites
//   - GET /healthz, /readyz
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitegen-ai/sitegen/internal/log"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads (Slowloris, CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout must outlast the longest generation stream; project
	// builds with many tool rounds can run for minutes.
	WriteTimeout = 10 * time.Minute

	// IdleTimeout is the keep-alive wait for the next request.
	IdleTimeout = 120 * time.Second
)

// Options carries the server-level settings the handlers need.
type Options struct {
	CORSOrigins []string
	TrustProxy  bool
	RateBurst   int

	OutputRoot string // generated artifact root
	DeployRoot string // published site root
	DeployHost string // public base URL for published sites, no trailing slash
}

// Server is the sitegen HTTP server.
type Server struct {
	mux    *http.ServeMux
	opts   Options
	logger log.Logger

	health  *HealthHandler
	users   *UserHandler
	apps    *AppHandler
	admin   *AdminHandler
	history *HistoryHandler
	static  *StaticHandler
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(pool *pgxpool.Pool, users UserDirectory, apps AppDirectory, hist HistoryReader, gen Generator, opts Options, logger log.Logger) (*Server, error) {
	if users == nil || apps == nil || hist == nil || gen == nil {
		return nil, fmt.Errorf("user, app, history and generator dependencies are required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	auth := newSessionAuth(users, logger)

	s := &Server{
		mux:    mux,
		opts:   opts,
		logger: logger,

		health:  NewHealthHandler(pool, logger),
		users:   NewUserHandler(users, logger),
		apps:    NewAppHandler(apps, gen, opts, logger),
		admin:   NewAdminHandler(apps, logger),
		history: NewHistoryHandler(apps, hist, logger),
		static:  NewStaticHandler(opts.DeployRoot, apps, logger),
	}

	s.health.RegisterRoutes(mux)
	s.users.RegisterRoutes(mux, auth)
	s.apps.RegisterRoutes(mux, auth)
	s.admin.RegisterRoutes(mux, auth)
	s.history.RegisterRoutes(mux, auth)
	s.static.RegisterRoutes(mux)

	return s, nil
}

// Handler returns the full handler with middleware applied.
// Order: recovery outermost, then CORS, then request logging.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		corsMiddleware(s.opts.CORSOrigins),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
