package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ngenohkevin/cassandra-mcp/config"
	"github.com/ngenohkevin/cassandra-mcp/internal/auth"
	"github.com/ngenohkevin/cassandra-mcp/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	cfg         *config.Config
	router      *gin.Engine
	handlers    *Handlers
	keyHandlers *KeyHandlers
	auth        *auth.Service
	limiter     *RateLimiter
	httpServer  *http.Server
	logger      zerolog.Logger
}

// New creates a new server instance. keys may be nil to disable the key
// management endpoints.
func New(cfg *config.Config, dispatcher Dispatcher, checker HealthChecker, a *auth.Service, keys KeyStore, version string) *Server {
	// Set Gin mode based on log level
	if gin.Mode() != gin.TestMode {
		if cfg.LogLevel == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	s := &Server{
		cfg:      cfg,
		router:   gin.New(),
		handlers: NewHandlers(dispatcher, checker, a, version),
		auth:     a,
		limiter:  NewRateLimiter(cfg.RateLimitRPS),
		logger:   log.With().Str("component", "http").Logger(),
	}
	if keys != nil {
		s.keyHandlers = NewKeyHandlers(keys)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(RequestID())
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(CORSMiddleware(s.cfg.AllowedOrigins))
	s.router.Use(RateLimitMiddleware(s.limiter))
}

func (s *Server) setupRoutes() {
	// Health check and metrics (no auth)
	metrics.Register()
	s.router.GET("/health", s.handlers.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes (require auth)
	api := s.router.Group("/api")
	api.Use(AuthMiddleware(s.auth))
	{
		api.GET("/commands", s.handlers.ListCommands)
		api.GET("/commands/:name", s.handlers.GetCommand)
		api.POST("/commands/:name", s.handlers.RunCommand)

		keyed := api.Group("", RequireAPIKey())
		keyed.POST("/token", s.handlers.IssueToken)
		if s.keyHandlers != nil {
			keyed.POST("/keys/generate", s.keyHandlers.GenerateKey)
			keyed.POST("/keys", s.keyHandlers.SaveKey)
		}
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr()).Msg("starting HTTP server")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	s.logger.Info().Msg("server stopped")
	return nil
}

// Router returns the Gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
