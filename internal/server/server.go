// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: New picks the store and blob backends
// from config and wires
//
//	repository.Store → AuthService / PostService → AuthHandler / PostHandler
//
// so every other package receives its dependencies instead of building them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/lumi/internal/auth"
	"github.com/sakif/lumi/internal/config"
	"github.com/sakif/lumi/internal/handler"
	"github.com/sakif/lumi/internal/middleware"
	"github.com/sakif/lumi/internal/repository"
	"github.com/sakif/lumi/internal/repository/postgres"
	sqliteRepo "github.com/sakif/lumi/internal/repository/sqlite"
	"github.com/sakif/lumi/internal/service"
	"github.com/sakif/lumi/internal/storage"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store. Start closes it after the HTTP server has
// drained, so in-flight transactions finish first.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	blobs  storage.BlobStore
	tokens *auth.TokenService
}

// New opens the configured store and blob backend and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecretKey)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		blobs:  blobs,
		tokens: tokens,
	}
	s.setupRoutes()
	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StoreSQLite:
		if cfg.DBPath != ":memory:" {
			// Like `mkdir -p`: the data directory may not exist on first run.
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BlobDriver {
	case config.BlobS3:
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	case config.BlobLocal:
		local, err := storage.NewLocalStore(cfg.BlobDir, cfg.BlobBaseURL)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Close releases the store. Start calls it on shutdown.
func (s *Server) Close() error { return s.store.Close() }

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                → liveness
// GET    /media/*                → uploaded files (local blob driver only)
// POST   /api/auth               → register | login | verify, by "action"
// POST   /api/auth/register      → register
// POST   /api/auth/login         → login
// POST   /api/auth/verify        → verify
// GET    /api/me                 → current user               [auth]
// GET    /api/posts              → feed (optional auth)
// POST   /api/posts              → create | like, by "action" [auth]
// POST   /api/posts/{id}/like    → toggle like                [auth]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflights; clients send X-Auth-Token cross-origin
// 6. BodyLimit: caps uploads at MAX_UPLOAD_BYTES
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", auth.HeaderToken},
		MaxAge:         86400,
	}))
	s.router.Use(middleware.BodyLimit(s.config.MaxUploadBytes))

	s.router.Get("/healthz", handler.HandleHealth)

	if local, ok := s.blobs.(*storage.LocalStore); ok {
		prefix := s.config.BlobBaseURL
		if prefix == "" || prefix[len(prefix)-1] != '/' {
			prefix += "/"
		}
		fileServer := http.FileServer(http.Dir(local.Dir()))
		s.router.With(noSniff).Handle(prefix+"*", http.StripPrefix(prefix, fileServer))
	}

	authService := service.NewAuthService(s.store.Users(), s.tokens, s.logger)
	postService := service.NewPostService(s.store, s.blobs, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth", authHandler.HandleAuth)
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/verify", authHandler.HandleVerify)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		r.With(auth.OptionalAuth(s.tokens)).Get("/posts", postHandler.HandleList)
		r.With(requireAuth).Post("/posts", postHandler.HandlePost)
		r.With(requireAuth).Post("/posts/{id}/like", postHandler.HandleToggleLike)
	})
}

// noSniff stops browsers from second-guessing the Content-Type of uploaded media.
func noSniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down gracefully:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.StoreDriver),
			slog.String("blobs", s.config.BlobDriver),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
