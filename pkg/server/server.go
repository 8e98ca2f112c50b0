// Package server exposes the graph engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/graphrag/pkg/config"
	"github.com/soundprediction/graphrag/pkg/server/handlers"
)

// Server represents the HTTP server.
type Server struct {
	config *config.Config
	engine handlers.Engine
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
}

// New creates a new server instance.
func New(cfg *config.Config, engine handlers.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		engine: engine,
		logger: logger,
	}
}

// Setup sets up the server routes and middleware.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// Router returns the configured gin router; Setup must have run.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	graphHandler := handlers.NewGraphHandler(s.engine, s.logger)
	ingestHandler := handlers.NewIngestHandler(s.engine, s.logger)
	searchHandler := handlers.NewSearchHandler(s.engine, s.logger)

	s.router.GET("/health", graphHandler.HealthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/indices", graphHandler.ListIndices)

		graph := v1.Group("/graph/:index")
		{
			graph.GET("", graphHandler.GetGraph)
			graph.DELETE("", graphHandler.DeleteIndex)

			graph.POST("/text", ingestHandler.InsertText)
			graph.POST("/text/chunked", ingestHandler.InsertTextChunked)

			graph.POST("/search", searchHandler.Search)
			graph.POST("/search/stream", searchHandler.SearchStream)
			graph.POST("/search/community", searchHandler.SearchCommunity)

			graph.POST("/communities/rebuild", searchHandler.RebuildCommunities)
			graph.POST("/global/rebuild", searchHandler.RebuildGlobal)
		}
	}
}

// Start starts the server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
