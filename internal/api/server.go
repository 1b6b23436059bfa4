package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relistr/relistr/internal/alerts"
	"github.com/relistr/relistr/internal/automation"
	"github.com/relistr/relistr/internal/config"
	"github.com/relistr/relistr/internal/errors"
	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/metrics"
	"github.com/relistr/relistr/internal/ratelimit"
	"github.com/relistr/relistr/internal/service"
	"github.com/relistr/relistr/internal/store"
)

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	config      config.ServerConfig
	store       store.Store
	credentials *service.CredentialService
	drivers     *automation.Registry
	limiter     *ratelimit.Limiter
	notifier    *alerts.Notifier
	metrics     *metrics.Metrics
	logger      *logging.Logger
	httpServer  *http.Server
}

// Deps carries the server's collaborators.
type Deps struct {
	Store       store.Store
	Credentials *service.CredentialService
	Drivers     *automation.Registry
	Limiter     *ratelimit.Limiter
	Notifier    *alerts.Notifier
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics("relistr")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewLogger()
	}
	if deps.Notifier == nil {
		deps.Notifier = alerts.NewNotifier(alerts.Config{}, deps.Logger)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	server := &Server{
		router:      gin.New(),
		config:      cfg,
		store:       deps.Store,
		credentials: deps.Credentials,
		drivers:     deps.Drivers,
		limiter:     deps.Limiter,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		deps.Logger.ErrorWithContext(c.Request.Context(), "panic recovered", "panic", fmt.Sprint(recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))
	server.router.Use(bodyLimitMiddleware(maxBody))
	server.router.Use(metrics.Middleware(deps.Metrics, deps.Logger))
	server.router.Use(loggingMiddleware(deps.Logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// bodyLimitMiddleware limits the size of request bodies
func bodyLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint - NO authentication required
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check - NO authentication required
	s.router.GET("/health", s.handleHealth)

	authed := s.router.Group("/api")
	authed.Use(SessionAuth(s.store, s.logger))
	{
		authed.POST("/auth/marketplace", s.handleConnectMarketplace)
		authed.GET("/auth/marketplace", s.handleMarketplaceStatus)
		authed.DELETE("/auth/marketplace", s.handleDisconnectMarketplace)
		authed.POST("/auth/marketplace/disconnect", s.handleDisconnectMarketplace)
		authed.GET("/auth/marketplace/credentials", s.handleListConnections)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return nil
}

// Shutdown gracefully shuts down the server and its components
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("shutting down HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				errs <- &errors.ErrServerShutdown{Err: err}
			}
		}()
	}

	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Close(); err != nil {
				errs <- fmt.Errorf("store close: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(errs)
	var errList []error
	for err := range errs {
		errList = append(errList, err)
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
