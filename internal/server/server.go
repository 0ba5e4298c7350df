// Package server wires configuration, stores, services and handlers into one
// chi router and runs the HTTP server with graceful shutdown.
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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/sakif/aurashift/internal/auth"
	"github.com/sakif/aurashift/internal/config"
	"github.com/sakif/aurashift/internal/handler"
	"github.com/sakif/aurashift/internal/middleware"
	"github.com/sakif/aurashift/internal/repository"
	"github.com/sakif/aurashift/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/aurashift/internal/repository/sqlite"
	"github.com/sakif/aurashift/internal/service"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	router  *chi.Mux
	handler http.Handler
	config  *config.Config
	logger  *slog.Logger

	users      repository.UserRepository
	activities repository.ActivityRepository
	closers    []func(context.Context) error
}

// New opens the configured store (and Redis, when set) and builds the
// router. Call Close, or Start which closes on exit, to release them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	if err := s.openStore(ctx); err != nil {
		return nil, err
	}

	if err := s.setupRoutes(ctx); err != nil {
		s.closeQuietly(ctx)
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) openStore(ctx context.Context) error {
	switch s.config.StoreDriver {
	case config.StoreMongo:
		store, err := mongodb.New(ctx, s.config.MongoURI, s.config.MongoDatabase)
		if err != nil {
			return fmt.Errorf("opening mongodb: %w", err)
		}
		s.users, s.activities = store.Users(), store.Activities()
		s.closers = append(s.closers, store.Close)

	default:
		if dir := filepath.Dir(s.config.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(s.config.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		s.users, s.activities = db.Users(), db.Activities()
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
	}
	return nil
}

// limiter prefers a shared Redis counter and falls back to the in-process
// token bucket when Redis is not configured or not reachable at startup.
func (s *Server) limiter(ctx context.Context) middleware.Limiter {
	if s.config.RedisAddr == "" {
		return middleware.NewMemoryLimiter(s.config.RateLimit, s.config.RateLimitWindow)
	}

	client := redis.NewClient(&redis.Options{Addr: s.config.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn("redis unavailable, using in-process rate limiter",
			slog.String("addr", s.config.RedisAddr),
			slog.String("error", err.Error()),
		)
		client.Close()
		return middleware.NewMemoryLimiter(s.config.RateLimit, s.config.RateLimitWindow)
	}

	s.closers = append(s.closers, func(context.Context) error { return client.Close() })
	return middleware.NewRedisLimiter(client, s.config.RateLimit, s.config.RateLimitWindow)
}

func (s *Server) setupRoutes(ctx context.Context) error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.JWTExpiresIn)
	if err != nil {
		return err
	}
	passwords, err := auth.NewPasswordServiceWithCost(s.config.BcryptRounds)
	if err != nil {
		return err
	}

	// nil interface (not a typed nil) when GitHub sign-in is off.
	var github handler.GitHubExchanger
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	progressService := service.NewProgressService(s.activities, s.users, s.logger)
	activityService := service.NewActivityService(s.activities, s.users, progressService, s.logger)
	onboardingService := service.NewOnboardingService(s.users, progressService, s.logger)
	authService := service.NewAuthService(s.users, tokens, passwords, s.logger)

	healthHandler := handler.NewHealthHandler(s.config.Environment)
	authHandler := handler.NewAuthHandler(authService, github, s.config.JWTExpiresIn, s.config.IsProduction(), s.logger)
	activityHandler := handler.NewActivityHandler(activityService, s.logger)
	progressHandler := handler.NewProgressHandler(progressService, s.logger)
	onboardingHandler := handler.NewOnboardingHandler(onboardingService, s.logger)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Use(chimiddleware.RequestID)
	// RealIP rewrites RemoteAddr, which the rate limiter keys on.
	if s.config.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics)

	// Set before Route so sub-routers inherit them.
	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.MethodNotAllowed)

	s.router.Get("/", healthHandler.HandleRoot)
	s.router.Handle("/metrics", promhttp.Handler())

	limiter := s.limiter(ctx)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, s.logger))

		r.Get("/health", healthHandler.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			if authHandler.GitHubEnabled() {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/profile", authHandler.HandleProfile)
				r.Get("/verify", authHandler.HandleVerify)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/onboarding", func(r chi.Router) {
				r.Post("/complete", onboardingHandler.HandleComplete)
				r.Put("/update", onboardingHandler.HandleUpdate)
				r.Get("/status", onboardingHandler.HandleStatus)
			})
			r.Mount("/activities", activityHandler.Routes())
			r.Get("/dashboard/stats", progressHandler.HandleDashboard)
			r.Get("/chart/data", progressHandler.HandleChart)
		})
	})

	s.handler = s.cors().Handler(s.router)
	return nil
}

// cors allows the configured origins. Development also accepts any
// localhost origin so Expo and simulators work without extra config.
func (s *Server) cors() *cors.Cors {
	allowed := make(map[string]bool, len(s.config.CORSOrigins))
	for _, o := range s.config.CORSOrigins {
		allowed[o] = true
	}
	dev := s.config.Environment == "development"

	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return allowed[origin] || (dev && strings.Contains(origin, "localhost"))
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
	})
}

// Handler returns the full middleware chain, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// closeQuietly logs Close failures instead of returning them.
func (s *Server) closeQuietly(ctx context.Context) {
	if err := s.Close(ctx); err != nil {
		s.logger.Warn("closing stores", slog.String("error", err.Error()))
	}
}

// Close releases the store and Redis connections.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to shutdownTimeout before closing the stores.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("environment", s.config.Environment),
			slog.String("store", s.config.StoreDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		s.closeQuietly(context.Background())
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.closeQuietly(shutdownCtx)
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if err := s.Close(shutdownCtx); err != nil {
			return fmt.Errorf("closing stores: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
