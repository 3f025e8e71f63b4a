// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects storage, services,
// handlers and middleware, and owns the server lifecycle.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB ─┬→ AuthService  → AuthHandler
//	             └→ BoardService → BoardHandler
//	storage.Disk ──┘
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
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
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/obsidian/internal/auth"
	"github.com/sakif/obsidian/internal/config"
	"github.com/sakif/obsidian/internal/handler"
	"github.com/sakif/obsidian/internal/middleware"
	sqliteRepo "github.com/sakif/obsidian/internal/repository/sqlite"
	"github.com/sakif/obsidian/internal/service"
	"github.com/sakif/obsidian/internal/storage"
)

// shutdownTimeout is how long in-flight requests get to finish on SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Close releases it; Start calls
// Close itself once the listener has drained.
type Server struct {
	router chi.Router
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// Options tunes what New builds. The zero value is the production setup.
type Options struct {
	// Passwords overrides the bcrypt cost; tests pass a MinCost service.
	Passwords *auth.PasswordService
}

// New creates a Server from cfg: it opens the database, prepares the upload
// directory, and registers every route.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` so it cannot be confused
// with the sqlite driver package.
func New(cfg config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewDisk(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	passwords := opts.Passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	authService := service.NewAuthService(db, tokens, passwords, logger)
	boardService := service.NewBoardService(db, blobs, logger)

	s.setupRoutes(
		tokens,
		handler.NewAuthHandler(authService, logger),
		handler.NewBoardHandler(boardService, cfg.MaxUploadBytes, logger),
		blobs,
	)

	return s, nil
}

// Handler returns the root handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                                      → liveness text
//	GET    /uploads/*                             → stored attachments
//	POST   /api/auth/register                     → create account
//	POST   /api/auth/login                        → issue JWT
//	GET    /api/auth/verify                       → resolve JWT to user
//	GET    /api/projects                          → list owned + shared projects
//	POST   /api/projects                          → create project
//	GET    /api/projects/{id}                     → board
//	PUT    /api/projects/{id}                     → update project
//	DELETE /api/projects/{id}                     → delete project (cascade)
//	POST   /api/projects/{id}/members             → share with a user
//	DELETE /api/projects/{id}/members/{userId}    → unshare
//	POST   /api/projects/{id}/rows                → create row
//	GET    /api/rows/{id}                         → row with project
//	PUT    /api/rows/{id}                         → rename row
//	DELETE /api/rows/{id}                         → delete row (cascade)
//	POST   /api/rows/{id}/work-items              → create work item
//	GET    /api/work-items/{id}                   → work item with files + comments
//	PUT    /api/work-items/{id}                   → edit / move work item
//	DELETE /api/work-items/{id}                   → delete work item (cascade)
//	POST   /api/work-items/{id}/comments          → add comment
//	POST   /api/work-items/{id}/files             → upload attachment
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every later middleware can log it, then RealIP, the
// request logger, Recoverer (panics → 500), and CORS for the browser client.
func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	authHandler *handler.AuthHandler,
	boardHandler *handler.BoardHandler,
	blobs *storage.Disk,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Obsidian Backend Running"))
	})

	// http.StripPrefix removes "/uploads/" before the file lookup, so
	// GET /uploads/1-abc-notes.txt serves {UploadDir}/1-abc-notes.txt.
	fileServer := http.FileServer(http.Dir(blobs.Dir()))
	s.router.Handle(storage.URLPrefix+"*", http.StripPrefix(storage.URLPrefix, fileServer))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/auth/verify", authHandler.HandleVerify)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/projects", boardHandler.HandleListProjects)
			r.Post("/projects", boardHandler.HandleCreateProject)
			r.Get("/projects/{id}", boardHandler.HandleGetProject)
			r.Put("/projects/{id}", boardHandler.HandleUpdateProject)
			r.Delete("/projects/{id}", boardHandler.HandleDeleteProject)
			r.Post("/projects/{id}/members", boardHandler.HandleAddMember)
			r.Delete("/projects/{id}/members/{userId}", boardHandler.HandleRemoveMember)
			r.Post("/projects/{id}/rows", boardHandler.HandleCreateRow)

			r.Get("/rows/{id}", boardHandler.HandleGetRow)
			r.Put("/rows/{id}", boardHandler.HandleUpdateRow)
			r.Delete("/rows/{id}", boardHandler.HandleDeleteRow)
			r.Post("/rows/{id}/work-items", boardHandler.HandleCreateWorkItem)

			r.Get("/work-items/{id}", boardHandler.HandleGetWorkItem)
			r.Put("/work-items/{id}", boardHandler.HandleUpdateWorkItem)
			r.Delete("/work-items/{id}", boardHandler.HandleDeleteWorkItem)
			r.Post("/work-items/{id}/comments", boardHandler.HandleAddComment)
			r.Post("/work-items/{id}/files", boardHandler.HandleUploadFile)
		})
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads of up to MaxUploadBytes need longer than a JSON call.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("uploads", s.config.UploadDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
