package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/live-workout-service/internal/handler"
	"github.com/psds-microservice/live-workout-service/pkg/constants"
)

// New builds the HTTP router.
func New(
	sessionHandler *handler.SessionHandler,
	liveWS *handler.LiveWSHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)

	// REST control surface
	sessions := r.Group("/sessions")
	{
		sessions.POST("", sessionHandler.StartSession)
		sessions.POST("/:id/pause", sessionHandler.PauseSession)
		sessions.POST("/:id/resume", sessionHandler.ResumeSession)
		sessions.POST("/:id/complete", sessionHandler.CompleteSession)
		sessions.POST("/:id/abandon", sessionHandler.AbandonSession)
		sessions.GET("/:id/status", sessionHandler.SessionStatus)
	}

	// Live channel: /ws/session/:session_id/:participant_id
	r.GET("/ws/session/:session_id/:participant_id", liveWS.ServeWS)

	return r
}
