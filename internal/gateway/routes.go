package gateway

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/auth"
)

// RegisterRoutes mounts health checks at the root and the API under /api
func RegisterRoutes(router *gin.Engine, h *Handler, stream *EventStream, jwtManager *auth.JWTManager, logger *zap.Logger) {
	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	api := router.Group("/api")
	api.POST("/auth/login", h.Login)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager, logger))

	protected.POST("/workflows/:id/phases/:phaseId/refinements", h.Refine)
	protected.GET("/executions/:id", h.GetExecution)
	protected.GET("/ws/workflows/:id/phases/:phaseId", stream.StreamRefinements)
}
