package http

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires all endpoints.
func (s *Server) registerRoutes() {
	// Operational endpoints
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/v1")

	// Inspection lifecycle
	api.POST("/inspections", s.handleCreateInspection)
	api.GET("/inspections", s.handleListInspections)
	api.GET("/inspections/:id", s.handleGetInspection)
	api.POST("/inspections/:id/load", s.handleLoadInspection)
	api.PATCH("/inspections/:id/items/:itemId", s.handleUpdateItem)
	api.POST("/inspections/:id/items/:itemId/evidence", s.handleAttachEvidence)
	api.POST("/inspections/:id/complete", s.handleCompleteInspection)
	api.DELETE("/inspections/:id", s.handleDeleteInspection)

	// Sync introspection
	api.GET("/inspections/:id/sync", s.handleSyncStatus)
	api.GET("/inspections/:id/entries", s.handleListEntries)
	api.POST("/inspections/:id/retry", s.handleRetryDeadLettered)
	api.GET("/sync/stats", s.handleQueueStats)

	// Media
	api.GET("/media/:mediaId", s.handleGetMedia)

	// Conditions and adaptation
	api.GET("/network", s.handleNetworkCondition)
	api.GET("/strategy", s.handleStrategy)
}
