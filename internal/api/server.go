package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oraclewatch/core/internal/alerting"
	"github.com/oraclewatch/core/internal/api/handlers"
	"github.com/oraclewatch/core/internal/api/middleware"
	"github.com/oraclewatch/core/internal/api/websocket"
	"github.com/oraclewatch/core/internal/config"
	"github.com/oraclewatch/core/internal/monitoring"
	"github.com/oraclewatch/core/pkg/cache"
	"github.com/oraclewatch/core/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.Valkey
	engine     *alerting.Engine
	hub        *websocket.Hub
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkeyCache cache.Valkey,
	engine *alerting.Engine,
	hub *websocket.Hub,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config: cfg,
		logger: log,
		cache:  valkeyCache,
		engine: engine,
		hub:    hub,
		router: gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.MetricsMiddleware())
	s.router.Use(middleware.RateLimiter(s.cache, s.config.RateLimit.RequestsPerMinute))

	monitoring.SetupPrometheusMetrics(s.router)
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.engine, s.cache, s.logger)
	alertHandler := handlers.NewAlertHandler(s.engine, s.cache, s.logger)
	suppressionHandler := handlers.NewSuppressionHandler(s.engine, s.logger)
	escalationHandler := handlers.NewEscalationHandler(s.engine, s.logger)
	wsHandler := handlers.NewWebSocketHandler(s.hub, s.config.WebSocket, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/ws", wsHandler.HandleStream)

	v1 := s.router.Group("/api/v1")

	v1.GET("/health", healthHandler.HealthCheck)

	v1.POST("/alerts", alertHandler.CreateAlert)
	v1.GET("/alerts", alertHandler.GetAlerts)
	v1.GET("/alerts/stats", alertHandler.GetStats)
	v1.GET("/alerts/:id", alertHandler.GetAlert)
	v1.PUT("/alerts/:id/acknowledge", alertHandler.AcknowledgeAlert)
	v1.PUT("/alerts/:id/resolve", alertHandler.ResolveAlert)

	v1.GET("/suppression-rules", suppressionHandler.GetRules)
	v1.POST("/suppression-rules", suppressionHandler.CreateRule)
	v1.PUT("/suppression-rules/:id", suppressionHandler.SetRuleEnabled)
	v1.DELETE("/suppression-rules/:id", suppressionHandler.DeleteRule)

	v1.GET("/escalation-policies", escalationHandler.GetPolicies)
	v1.GET("/escalation-policies/:id", escalationHandler.GetPolicy)
	v1.POST("/escalation-policies", escalationHandler.CreatePolicy)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
