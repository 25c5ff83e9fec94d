// Package httpapi serves the site, auth and dashboard routes and the JSON
// API behind them.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mesh-intelligence/cypress/internal/route"
	"github.com/mesh-intelligence/cypress/pkg/types"
)

// Config tunes the server. Zero values take defaults.
type Config struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	SecureCookies   bool
}

// Server routes requests to the gateway through per-user sessions.
type Server struct {
	gateway  types.Gateway
	logger   *slog.Logger
	cfg      Config
	maxBody  int64
	router   chi.Router
	sessions *sessionTable
}

// NewServer builds the router. A nil logger discards.
func NewServer(gateway types.Gateway, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		gateway:  gateway,
		logger:   logger,
		cfg:      cfg,
		maxBody:  cfg.MaxBodyBytes,
		sessions: newSessionTable(gateway, logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(s.authenticate)
	r.Use(s.redirects)

	r.Get(route.PathHome, s.handleHome)
	r.Get(route.PathLogin, s.handleLoginPage)
	r.Post(route.PathLogin, s.handleLogin)
	r.Get(route.PathSignup, s.handleSignupPage)
	r.Post(route.PathSignup, s.handleSignup)

	r.Route(route.PathDashboard, func(r chi.Router) {
		r.Get("/", s.handleDashboard)
		r.Get("/{workspaceId}", s.handleDashboardView)
		r.Get("/{workspaceId}/{folderId}", s.handleDashboardView)
		r.Get("/{workspaceId}/{folderId}/{fileId}", s.handleDashboardView)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/callback", s.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Get("/users/search", s.handleUserSearch)

			r.Get("/workspaces", s.handleListWorkspaces)
			r.Post("/workspaces", s.handleCreateWorkspace)
			r.Route("/workspaces/{workspaceId}", func(r chi.Router) {
				r.Patch("/", s.handleUpdateWorkspace)
				r.Delete("/", s.handleDeleteWorkspace)
				r.Get("/usage", s.handleUsage)
				r.Get("/collaborators", s.handleListCollaborators)
				r.Post("/collaborators", s.handleAddCollaborators)
				r.Delete("/collaborators/{userId}", s.handleRemoveCollaborator)

				r.Get("/folders", s.handleListFolders)
				r.Post("/folders", s.handleCreateFolder)
				r.Route("/folders/{folderId}", func(r chi.Router) {
					r.Patch("/", s.handleUpdateFolder)
					r.Delete("/", s.handleDeleteFolder)
					r.Post("/trash", s.handleTrashFolder)
					r.Post("/restore", s.handleRestoreFolder)

					r.Get("/files", s.handleListFiles)
					r.Post("/files", s.handleCreateFile)
					r.Route("/files/{fileId}", func(r chi.Router) {
						r.Patch("/", s.handleUpdateFile)
						r.Delete("/", s.handleDeleteFile)
						r.Post("/trash", s.handleTrashFile)
						r.Post("/restore", s.handleRestoreFile)
						r.Post("/move", s.handleMoveFile)
					})
				})
			})
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close ends every open session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
