package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Server wraps the gin engine and the dependencies its handlers need.
type Server struct {
	router *gin.Engine
	deps   *Deps
	log    *slog.Logger
}

// NewServer builds a configured gin engine exposing the full
// indicator/enrichment/feed REST surface.
//
// Grounded on AditS-H-VIGILUM/backend/internal/api/routes.go's
// NewAPIServer/setupRoutes shape.
func NewServer(deps *Deps, logger *slog.Logger) *Server {
	router := gin.New()
	router.Use(LoggingMiddleware(logger))
	router.Use(ErrorHandlingMiddleware(logger))
	router.Use(CORSMiddleware())

	s := &Server{router: router, deps: deps, log: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/indicators", s.handleListIndicators)
		v1.POST("/indicators", s.handleCreateIndicator)
		v1.POST("/indicators/bulk", s.handleBulkImport)
		v1.GET("/indicators/:id", s.handleGetIndicator)
		v1.DELETE("/indicators/:id", s.handleDeleteIndicator)
		v1.POST("/indicators/:id/enrich", s.handleEnrichIndicator)
		v1.POST("/indicators/:id/sightings", s.handleAddSighting)

		v1.GET("/lookup", s.handleLookupByQuery)
		v1.GET("/lookup/:value", s.handleLookupByPath)

		v1.GET("/stats", s.handleStats)

		v1.GET("/sources", s.handleListSources)
		v1.POST("/feeds/refresh", s.handleRefreshFeeds)
	}

	s.log.Info("api routes configured")
}

// Router returns the underlying gin engine, e.g. for http.Server or tests.
func (s *Server) Router() *gin.Engine { return s.router }
