package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/interview-orchestrator/internal/handler"
)

// Handlers bundles the route handlers the router needs.
type Handlers struct {
	Sessions      *handler.SessionHandler
	Transcripts   *handler.TranscriptHandler
	Notifications *handler.NotificationHandler
}

// SetupRoutes registers all API routes. Health routes are registered
// separately so callers can attach their own checks.
func SetupRoutes(router *gin.Engine, h Handlers, registry *prometheus.Registry) {
	if registry != nil {
		router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")

	sessions := v1.Group("/sessions")
	sessions.POST("", h.Sessions.Create)
	sessions.GET("/:id", h.Sessions.Get)
	sessions.POST("/:id/cancel", h.Sessions.Cancel)
	sessions.GET("/:id/transcripts", h.Transcripts.List)
	sessions.GET("/:id/notifications", h.Notifications.ListBySession)

	// Participant- and provider-facing operations are keyed by room name.
	rooms := v1.Group("/rooms")
	rooms.POST("/:room/provision", h.Sessions.Provision)
	rooms.POST("/:room/start", h.Sessions.Start)
	rooms.POST("/:room/end", h.Sessions.End)

	v1.POST("/transcripts/bulk", h.Transcripts.Ingest)

	v1.POST("/callbacks/messaging", h.Notifications.DeliveryCallback)
	v1.GET("/notifications/stats", h.Notifications.Stats)
}
