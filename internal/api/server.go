package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crypto-scenario-engine/internal/analysis"
	"crypto-scenario-engine/internal/forwardtest"
	"crypto-scenario-engine/internal/marketdata"
)

// RateLimiter provides simple in-memory rate limiting per endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// Server exposes the analysis pipeline and paper-trading sessions over HTTP.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	analyzer    *analysis.Analyzer
	provider    marketdata.Provider
	sessions    *forwardtest.Manager
	config      ServerConfig
	rateLimiter *RateLimiter // keeps upstream exchange calls under the public limits
	log         zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(config ServerConfig, analyzer *analysis.Analyzer, provider marketdata.Provider, sessions *forwardtest.Manager, log zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		analyzer:    analyzer,
		provider:    provider,
		sessions:    sessions,
		config:      config,
		rateLimiter: NewRateLimiter(120, time.Minute),
		log:         log.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

// rateLimitMiddleware limits requests by endpoint path. Session endpoints
// operate on internal state only and are exempt.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "Rate limit exceeded. Too many requests to this endpoint.",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")

	// Market-facing endpoints share the exchange rate budget.
	market := api.Group("")
	market.Use(s.rateLimitMiddleware())
	market.POST("/analyze", s.handleAnalyze)
	market.POST("/scenarios", s.handleBuildScenario)
	market.GET("/price/:symbol", s.handleCurrentPrice)

	// Forward-test sessions touch internal state only.
	ft := api.Group("/forwardtest")
	ft.POST("/sessions", s.handleCreateSession)
	ft.GET("/sessions", s.handleListSessions)
	ft.GET("/sessions/:id", s.handleSessionStats)
	ft.DELETE("/sessions/:id", s.handleRemoveSession)
	ft.POST("/sessions/:id/positions", s.handleOpenPosition)
	ft.POST("/sessions/:id/ticks", s.handleTick)
	ft.POST("/sessions/:id/positions/:pid/close", s.handleCloseManual)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler { return s.router }

// errorResponse is a helper to send error responses.
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses.
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
