package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"catalog-service/internal/config"
	custommiddleware "catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/service"
	"catalog-service/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HealthFunc reports the health of the backing store
type HealthFunc func(r *http.Request) map[string]string

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	redis   *redis.Client
	health  HealthFunc
	closers []func() error
}

// Option customizes a Server
type Option func(*Server)

// WithHealth reports store health on /health
func WithHealth(fn HealthFunc) Option {
	return func(s *Server) { s.health = fn }
}

// WithCloser registers a resource released by Close
func WithCloser(fn func() error) Option {
	return func(s *Server) { s.closers = append(s.closers, fn) }
}

func NewServer(cfg *config.Config, logger *zap.Logger, store repository.Store, opts ...Option) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Redis.Enabled() {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      s.routes(store),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) routes(store repository.Store) http.Handler {
	router := chi.NewRouter()

	router.Use(custommiddleware.Stack(s.logger, custommiddleware.HTTPOptions{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AnyOrigin:      s.config.Server.IsDevelopment(),
	})...)

	router.Get("/health", s.handleHealth)

	queries := service.NewQueryService(store)
	catalogHandler := transport.NewCatalogHandler(queries, s.logger)

	tenantMiddleware := custommiddleware.TenantMiddleware(s.logger)
	if s.redis != nil {
		limiter := custommiddleware.NewRateLimiter(s.redis, s.config.RateLimit.Requests, s.config.RateLimit.Window, s.logger)
		// Limits apply per tenant, so they run after the tenant is known
		tenant := tenantMiddleware
		tenantMiddleware = func(next http.Handler) http.Handler {
			return tenant(limiter.Middleware(next))
		}
	}

	catalogHandler.RegisterRoutes(router, tenantMiddleware)
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"status": "ok"}
	code := http.StatusOK

	if s.health != nil {
		store := s.health(r)
		status["store"] = store
		if store["status"] == "down" {
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	custommiddleware.RespondWithJSON(w, code, status)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.logger.Error("Failed to close resource", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
