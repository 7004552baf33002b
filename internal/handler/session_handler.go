package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/live-workout-service/internal/errs"
	"github.com/psds-microservice/live-workout-service/internal/model"
	"github.com/psds-microservice/live-workout-service/internal/plan"
	"github.com/psds-microservice/live-workout-service/internal/session"
	"go.uber.org/zap"
)

// SessionHandler is the REST control surface: lifecycle commands and
// status queries, translated directly into session actor commands.
type SessionHandler struct {
	registry *session.Registry
	plans    plan.Lookup // optional; resolves plan_id into activities
	ws       *WSConfig
	log      *zap.Logger
}

// NewSessionHandler creates the control surface handler.
func NewSessionHandler(registry *session.Registry, plans plan.Lookup, wsBaseURL string, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		plans:    plans,
		ws:       &WSConfig{BaseURL: wsBaseURL},
		log:      log,
	}
}

// StartSession handles POST /sessions.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	activities := req.Activities
	if len(activities) == 0 && req.PlanID != "" {
		if h.plans == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "plan lookup not configured"})
			return
		}
		resolved, err := h.plans.GetPlanActivities(c.Request.Context(), req.PlanID)
		if err != nil {
			h.log.Warn("plan lookup failed", zap.String("plan_id", req.PlanID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to resolve plan"})
			return
		}
		activities = resolved
	}
	if len(activities) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "activities or plan_id required"})
		return
	}

	actor := h.registry.Create()
	snap, err := actor.Do(c.Request.Context(), session.StartCommand{
		OwnerID:     req.OwnerID,
		DisplayName: req.UserName,
		AvatarURL:   req.UserAvatar,
		WorkoutType: req.WorkoutType,
		PlanID:      req.PlanID,
		Activities:  activities,
		Private:     req.Private,
		MaxCapacity: req.MaxCapacity,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	// The live channel identifies the sender by the participant id in the
	// path, not the user id, so the owner's freshly minted participant id
	// must be the one advertised.
	var ownerPID string
	if len(snap.Participants) > 0 {
		ownerPID = snap.Participants[0].ID
	}
	c.JSON(http.StatusCreated, model.StartSessionResponse{
		SessionID:       actor.ID(),
		ParticipantID:   ownerPID,
		Status:          string(snap.Status),
		CurrentActivity: snap.CurrentActivity,
		WSURL:           h.ws.WSURL(actor.ID(), ownerPID),
	})
}

// PauseSession handles POST /sessions/:id/pause.
func (h *SessionHandler) PauseSession(c *gin.Context) {
	h.transition(c, session.PauseCommand{})
}

// ResumeSession handles POST /sessions/:id/resume.
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	h.transition(c, session.ResumeCommand{})
}

// CompleteSession handles POST /sessions/:id/complete.
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	h.transition(c, session.CompleteCommand{})
}

// AbandonSession handles POST /sessions/:id/abandon.
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	var req model.AbandonSessionRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	h.transition(c, session.AbandonCommand{Reason: req.Reason})
}

func (h *SessionHandler) transition(c *gin.Context, cmd session.Command) {
	actor, err := h.actor(c)
	if err != nil {
		writeError(c, err)
		return
	}
	snap, err := actor.Do(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.TransitionResponse{Status: string(snap.Status)})
}

// SessionStatus handles GET /sessions/:id/status.
func (h *SessionHandler) SessionStatus(c *gin.Context) {
	actor, err := h.actor(c)
	if err != nil {
		if errors.Is(err, errs.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, model.SessionStatusResponse{HasSession: false})
			return
		}
		writeError(c, err)
		return
	}
	snap, err := actor.Do(c.Request.Context(), session.SnapshotCommand{})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SessionStatusResponse{
		HasSession:       true,
		Status:           string(snap.Status),
		ParticipantCount: snap.ParticipantCount,
	})
}

func (h *SessionHandler) actor(c *gin.Context) (*session.Actor, error) {
	sessionID := c.Param("id")
	if sessionID == "" {
		return nil, errs.ErrSessionNotFound
	}
	return h.registry.Get(c.Request.Context(), sessionID)
}

// writeError maps domain errors onto HTTP responses; commands are never
// silently dropped.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid state transition"})
	case errors.Is(err, errs.ErrParticipantNotActive):
		c.JSON(http.StatusForbidden, gin.H{"error": "participant not active"})
	case errors.Is(err, errs.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": "session capacity exceeded"})
	case errors.Is(err, errs.ErrActivityAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "activity already completed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
