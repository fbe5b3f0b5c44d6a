// Package server sets up the HTTP server, router and route definitions.
//
// It is the composition root: the store comes in from main, and New builds
// the ledger, services and handlers on top of it.
//
//	config → OpenStore → repository.Store
//	Store  → ledger.Ledger → Post/Like/Leaderboard/User services → handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/karma-feed/internal/auth"
	"github.com/sakif/karma-feed/internal/config"
	"github.com/sakif/karma-feed/internal/handler"
	"github.com/sakif/karma-feed/internal/ledger"
	"github.com/sakif/karma-feed/internal/middleware"
	"github.com/sakif/karma-feed/internal/repository"
	"github.com/sakif/karma-feed/internal/repository/postgres"
	sqliteRepo "github.com/sakif/karma-feed/internal/repository/sqlite"
	"github.com/sakif/karma-feed/internal/service"
)

const shutdownTimeout = 30 * time.Second

// OpenStore connects to the backend named by cfg.DBDriver and applies the
// schema. The caller owns the returned store.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, logger)

	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath, logger)
		if err != nil {
			return nil, err
		}
		if cfg.DBPath != ":memory:" {
			db.SetMaxOpenConns(int(cfg.DBMaxConns))
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}

// Server owns the router and the store; the store is closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
}

// New wires every handler against store.
func New(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes registers middleware and routes.
//
// GET    /healthz                    → store ping
// GET    /api/posts                  → feed              (optional auth)
// POST   /api/posts                  → create post       (auth)
// GET    /api/posts/{id}             → thread            (optional auth)
// DELETE /api/posts/{id}             → delete own post   (auth)
// POST   /api/posts/{id}/like        → toggle like       (auth)
// GET    /api/users                  → users by points
// GET    /api/users/{id}             → profile
// GET    /api/me                     → own profile       (auth)
// GET    /api/leaderboard/points     → all-time ranking
// GET    /api/leaderboard/recent     → windowed ranking
//
// Middleware order matters: RequestID must run before Logger so the id is
// in the context when the line is written.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.JWTTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	policy := s.config.KarmaPolicy()
	l, err := ledger.New(policy, s.logger)
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}

	postService := service.NewPostService(s.store, l, s.logger, s.config.ThreadMaxDepth)
	likeService := service.NewLikeService(s.store, l, s.logger)
	userService := service.NewUserService(s.store, s.logger)
	leaderboardService := service.NewLeaderboardService(s.store, policy, service.LeaderboardDefaults{
		WindowHours: s.config.LeaderboardWindowHours(),
		RecentLimit: s.config.LeaderboardLimit,
		PointsLimit: s.config.UserLeaderboardLimit,
	}, s.logger)

	postHandler := handler.NewPostHandler(postService, likeService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, s.logger)

	requireAuth := auth.RequireAuth(tokens, handler.UnauthorizedWriter(s.logger))
	optionalAuth := auth.OptionalAuth(tokens)

	s.router.Get("/healthz", handler.HandleHealth(s.store, s.logger))

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/posts", postHandler.HandleFeed)
			r.Get("/posts/{id}", postHandler.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/posts", postHandler.HandleCreate)
			r.Delete("/posts/{id}", postHandler.HandleDelete)
			r.Post("/posts/{id}/like", postHandler.HandleToggleLike)
			r.Get("/me", userHandler.HandleMe)
		})

		r.Get("/users", userHandler.HandleList)
		r.Get("/users/{id}", userHandler.HandleGet)
		r.Get("/leaderboard/points", leaderboardHandler.HandleByPoints)
		r.Get("/leaderboard/recent", leaderboardHandler.HandleRecent)
	})

	return nil
}

// Start serves until ctx is cancelled, then drains in-flight requests for
// up to 30 seconds and closes the store.
func (s *Server) Start(ctx context.Context) error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
