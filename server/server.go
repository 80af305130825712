// Package server exposes the catalog collections over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/arthur-debert/cookbook/odm"
)

// Server serves every model of a registry under /api/:collection
type Server struct {
	registry *odm.Registry
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	engine   *gin.Engine

	rps    float64
	burst  int
	redis  *redis.Client
	window time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRateLimit limits each client to rps requests per second with the
// given burst. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rps = rps
		s.burst = burst
	}
}

// WithRedisRateLimit counts requests per client in fixed windows stored in
// Redis instead of in process memory
func WithRedisRateLimit(client *redis.Client, window time.Duration) Option {
	return func(s *Server) {
		s.redis = client
		s.window = window
	}
}

// WithGatherer sets where /metrics reads from. It defaults to the
// prometheus default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New builds the gin engine for reg
func New(reg *odm.Registry, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(instrument())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "collections": s.registry.Names()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	if s.rps > 0 {
		if s.redis != nil {
			api.Use(redisRateLimit(s.redis, s.rps, s.burst, s.window))
		} else {
			api.Use(newRateLimiter(s.rps, s.burst).middleware())
		}
	}
	api.GET("/:collection", s.list)
	api.GET("/:collection/count", s.count)
	api.GET("/:collection/:id", s.get)
	api.POST("/:collection", s.create)
	api.PATCH("/:collection/:id", s.update)
	api.DELETE("/:collection/:id", s.remove)

	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}
