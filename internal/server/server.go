// Package server wires the pipeline together: store, stats engine, ingest
// gateway, broadcast hub, REST routes and middleware.
package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ipcscope/internal/config"
	apihttp "ipcscope/internal/http"
	"ipcscope/internal/ingest"
	"ipcscope/internal/logging"
	"ipcscope/internal/middleware"
	"ipcscope/internal/monitoring"
	"ipcscope/internal/sim"
	"ipcscope/internal/stats"
	"ipcscope/internal/store"
	"ipcscope/internal/ws"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	router    *gin.Engine
	store     *store.Store
	hub       *ws.Hub
	generator *sim.Generator
	logger    *logging.Logger
	config    *config.Config
}

// New creates a server instance from configuration.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	logger.Info("initializing ipcscope server",
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.New()

	// Core pipeline: one store instance, derived stats, hub fan-out, and a
	// single ingest path that writes then broadcasts.
	entityStore := store.New()
	statsEngine := stats.New(entityStore)
	hub := ws.NewHub(entityStore, statsEngine, logger, cfg.Broadcast).WithMetrics(metrics)
	gateway := ingest.New(entityStore, statsEngine, hub, logger, cfg.Broadcast.TopProcesses).WithMetrics(metrics)
	hub.SetCreator(gateway)

	var generator *sim.Generator
	if cfg.Sim.Enabled {
		generator = sim.New(gateway, logger, cfg.Sim.Interval)
		generator.Start()
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(entityStore, statsEngine, gateway, hub)
	wsHandler := ws.NewHandler(hub)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Process endpoints
	router.POST("/processes", handlers.RegisterProcess)
	router.GET("/processes", handlers.ListProcesses)
	router.GET("/processes/top", handlers.TopProcesses)

	// Event endpoints
	router.POST("/events", handlers.CreateEvent)
	router.GET("/events", handlers.ListEvents)
	router.GET("/events/filter", handlers.FilterEvents)
	router.DELETE("/events", handlers.ClearEvents)

	// Aggregates
	router.GET("/stats", handlers.GetStats)

	// Real-time channel
	router.GET("/ws", wsHandler.Handle)

	// Prometheus exposition
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("server initialized")

	return &Server{
		router:    router,
		store:     entityStore,
		hub:       hub,
		generator: generator,
		logger:    logger,
		config:    cfg,
	}, nil
}

// Router exposes the gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("shutting down server...")

	if s.generator != nil {
		s.generator.Stop()
	}
	s.hub.Close()
	s.logger.Sync()

	return nil
}
