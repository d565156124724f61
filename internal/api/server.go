// Package api exposes the operator HTTP interface: portfolio and signal
// inspection, manual signal submission and the audited risk-limit override.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradepilot/internal/auth"
	"tradepilot/internal/equity"
	"tradepilot/internal/pipeline"
	"tradepilot/internal/risk"
	"tradepilot/internal/trading"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AuthEnabled     bool
}

// Server is the operator HTTP API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        ServerConfig
	logger     zerolog.Logger

	pipeline *pipeline.Pipeline
	manager  *trading.Manager
	gate     *risk.Gate
	tracker  *equity.Tracker
	jwt      *auth.JWTManager
}

// NewServer assembles the router. jwtManager may be nil when auth is
// disabled.
func NewServer(
	cfg ServerConfig,
	p *pipeline.Pipeline,
	manager *trading.Manager,
	gate *risk.Gate,
	tracker *equity.Tracker,
	jwtManager *auth.JWTManager,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		cfg:      cfg,
		logger:   logger.With().Str("component", "APIServer").Logger(),
		pipeline: p,
		manager:  manager,
		gate:     gate,
		tracker:  tracker,
		jwt:      jwtManager,
	}

	s.router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	s.router.Use(cors.New(corsConfig))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	if s.cfg.AuthEnabled && s.jwt != nil {
		api.Use(auth.Middleware(s.jwt))
	}

	api.GET("/portfolio", s.handlePortfolio)
	api.GET("/orders", s.handleOrders)
	api.GET("/signals", s.handleSignals)
	api.GET("/signals/:symbol/votes", s.handleVotes)
	api.POST("/signals", s.handleSubmitSignal)
	api.GET("/equity", s.handleEquity)
	api.GET("/risk/limits", s.handleGetLimits)

	limits := api.Group("/risk")
	if s.cfg.AuthEnabled && s.jwt != nil {
		limits.Use(auth.RequireAdmin())
	}
	limits.PUT("/limits", s.handleUpdateLimits)
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("api server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
