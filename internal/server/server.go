// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// main.go builds the services (store, cache, broker, classifier) from the
// configuration. This package only receives them in Deps, which keeps it
// testable: the tests hand it services over in-memory SQLite.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/handler"
	snippetmcp "github.com/sakif/snippet-vault/internal/mcp"
	"github.com/sakif/snippet-vault/internal/middleware"
	"github.com/sakif/snippet-vault/internal/service"
)

// Deps is everything the routes need. All fields except GitHub are required.
type Deps struct {
	Snippets      *service.SnippetService
	SubCategories *service.SubCategoryService
	Quota         *service.QuotaService
	Changelogs    *service.ChangelogService
	Auth          *service.AuthService
	Tokens        *auth.TokenService

	// GitHub is nil when SSO is not configured. Leave the field unset rather
	// than storing a nil *auth.GitHubProvider in it.
	GitHub handler.GitHubAuthenticator

	Health       handler.Pinger
	CookieSecure bool
	Version      string
}

// Server represents the HTTP server and all its routes.
type Server struct {
	router *chi.Mux
	config config.Server
	logger *slog.Logger
}

// New creates a Server and registers every route.
func New(cfg config.Server, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                     → store liveness
//	POST   /auth/register               → create account, set cookie
//	POST   /auth/login                  → sign in, set cookie
//	POST   /auth/logout                 → clear cookie
//	GET    /auth/github/login           → redirect to GitHub
//	GET    /auth/github/callback        → finish GitHub sign-in
//	GET    /api/changelogs              → release notes (public)
//
//	(authenticated)
//	GET    /api/me
//	GET    /api/snippets                POST /api/snippets
//	GET    /api/snippets/{id}           PUT  /api/snippets/{id}   DELETE /api/snippets/{id}
//	POST   /api/classify
//	GET    /api/quota                   POST /api/quota/reconcile
//	GET    /api/subcategories           POST /api/subcategories   DELETE /api/subcategories/{id}
//	POST   /api/changelogs              PUT  /api/changelogs/{id} DELETE /api/changelogs/{id}
//	*      /mcp                         → MCP streamable HTTP
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
//  1. RequestID: assigns unique ID to each request (for tracing)
//  2. RealIP: extracts real client IP from proxy headers
//  3. Logger: logs each request with timing info and the request ID
//  4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	snippetHandler := handler.NewSnippetHandler(deps.Snippets, s.logger)
	subHandler := handler.NewSubCategoryHandler(deps.SubCategories, s.logger)
	quotaHandler := handler.NewQuotaHandler(deps.Quota, s.logger)
	changelogHandler := handler.NewChangelogHandler(deps.Changelogs, s.logger)
	authHandler := handler.NewAuthHandler(deps.Auth, deps.GitHub, deps.CookieSecure, s.logger)
	healthHandler := handler.NewHealthHandler(deps.Health, s.logger)

	tools := snippetmcp.NewTools(deps.Snippets, deps.SubCategories, deps.Quota, s.logger)
	mcpHTTP := snippetmcp.NewHTTPHandler(snippetmcp.NewServer(tools, deps.Version))

	// === Public routes ===
	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	s.router.Get("/api/changelogs", changelogHandler.HandleList)

	// === Authenticated routes ===
	// RequireAuth validates the cookie or Bearer token and puts the user id
	// in the context. Handlers below never run for anonymous requests.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Tokens))

		r.Get("/api/me", authHandler.HandleMe)

		r.Route("/api/snippets", func(r chi.Router) {
			r.Get("/", snippetHandler.HandleList)
			r.Post("/", snippetHandler.HandleCreate)
			r.Get("/{id}", snippetHandler.HandleGetByID)
			r.Put("/{id}", snippetHandler.HandleUpdate)
			r.Delete("/{id}", snippetHandler.HandleDelete)
		})
		r.Post("/api/classify", snippetHandler.HandleClassify)

		r.Get("/api/quota", quotaHandler.HandleUsage)
		r.Post("/api/quota/reconcile", quotaHandler.HandleReconcile)

		r.Route("/api/subcategories", func(r chi.Router) {
			r.Get("/", subHandler.HandleList)
			r.Post("/", subHandler.HandleCreate)
			r.Delete("/{id}", subHandler.HandleDelete)
		})

		r.Post("/api/changelogs", changelogHandler.HandleCreate)
		r.Put("/api/changelogs/{id}", changelogHandler.HandleUpdate)
		r.Delete("/api/changelogs/{id}", changelogHandler.HandleDelete)

		// MCP uses POST for requests, GET for the SSE stream and DELETE to
		// end a session.
		r.Handle("/mcp", mcpHTTP)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (ShutdownTimeout)
//  3. Return, so main can close the store, cache and broker connections
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
