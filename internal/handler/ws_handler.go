package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/psds-microservice/live-workout-service/internal/errs"
	"github.com/psds-microservice/live-workout-service/internal/hub"
	"github.com/psds-microservice/live-workout-service/internal/model"
	"github.com/psds-microservice/live-workout-service/internal/profile"
	"github.com/psds-microservice/live-workout-service/internal/session"
	"go.uber.org/zap"
)

// LiveWSHandler is the live channel gateway: it upgrades a connection,
// registers it as a broadcast subscriber for one session, and decodes
// inbound frames into actor commands.
//
// The path participant id identifies the sender for leave, progress,
// chat and heartbeat frames. A join frame carries the user id; the new
// participant id is observed through the resulting presence_changed
// broadcast. Closing the channel does not mark the participant left —
// the presence tracker's timeout path handles that, so a reconnect
// inside the idle window resumes seamlessly.
type LiveWSHandler struct {
	wsHub      *hub.Hub
	registry   *session.Registry
	profiles   profile.Lookup // optional; enriches join display data
	maxMsgSize int64
	log        *zap.Logger
}

// NewLiveWSHandler creates the live channel gateway handler.
func NewLiveWSHandler(wsHub *hub.Hub, registry *session.Registry, profiles profile.Lookup, maxMsgSize int64, log *zap.Logger) *LiveWSHandler {
	return &LiveWSHandler{
		wsHub:      wsHub,
		registry:   registry,
		profiles:   profiles,
		maxMsgSize: maxMsgSize,
		log:        log,
	}
}

// ServeWS upgrades the request and runs the frame loop.
// Path: /ws/session/:session_id/:participant_id
func (h *LiveWSHandler) ServeWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	participantID := c.Param("participant_id")
	if sessionID == "" || participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and participant_id required"})
		return
	}

	actor, err := h.registry.Get(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if actor.Status().Terminal() {
		c.JSON(http.StatusGone, gin.H{"error": "session already finished"})
		return
	}

	conn, err := h.wsHub.Upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	peer := hub.NewPeer(sessionID, participantID, conn, h.maxMsgSize)
	cleanup := h.wsHub.Register(sessionID, peer)
	defer cleanup()

	go peer.WritePump()
	h.readPump(actor, peer)
}

func (h *LiveWSHandler) readPump(actor *session.Actor, peer *hub.Peer) {
	for {
		_, data, err := peer.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("read error", zap.String("session_id", peer.SessionID), zap.Error(err))
			}
			return
		}
		var frame model.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.pushError(peer, "invalid frame", err.Error())
			continue
		}
		cmd, err := h.decode(peer, frame)
		if err != nil {
			h.pushError(peer, "invalid frame", err.Error())
			continue
		}
		if _, err := actor.Do(context.Background(), cmd); err != nil {
			h.pushError(peer, errorKind(err), "")
		}
	}
}

func (h *LiveWSHandler) decode(peer *hub.Peer, frame model.InboundFrame) (session.Command, error) {
	switch frame.Type {
	case model.FrameJoin:
		var p model.JoinPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, errors.New("user_id required")
		}
		h.enrich(&p)
		return session.JoinCommand{UserID: p.UserID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL}, nil
	case model.FrameLeave:
		return session.LeaveCommand{ParticipantID: peer.ParticipantID}, nil
	case model.FrameUpdateProgress:
		var p model.UpdateProgressPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, err
		}
		if p.ActivityID == "" {
			return nil, errors.New("activity_id required")
		}
		return session.UpdateProgressCommand{
			ParticipantID: peer.ParticipantID,
			ActivityID:    p.ActivityID,
			Fields:        p.Fields,
		}, nil
	case model.FramePostChat:
		var p model.PostChatPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, err
		}
		if p.Text == "" {
			return nil, errors.New("text required")
		}
		return session.PostChatCommand{ParticipantID: peer.ParticipantID, Text: p.Text}, nil
	case model.FrameHeartbeat:
		return session.HeartbeatCommand{ParticipantID: peer.ParticipantID}, nil
	default:
		return nil, errors.New("unknown frame type")
	}
}

// enrich fills missing display data from the profile service; lookup
// failures degrade to whatever the client sent.
func (h *LiveWSHandler) enrich(p *model.JoinPayload) {
	if h.profiles == nil || (p.DisplayName != "" && p.AvatarURL != "") {
		return
	}
	prof, err := h.profiles.GetProfile(context.Background(), p.UserID)
	if err != nil {
		h.log.Warn("profile lookup failed", zap.String("user_id", p.UserID), zap.Error(err))
		return
	}
	if p.DisplayName == "" {
		p.DisplayName = prof.DisplayName
	}
	if p.AvatarURL == "" {
		p.AvatarURL = prof.AvatarURL
	}
}

func (h *LiveWSHandler) pushError(peer *hub.Peer, kind, message string) {
	raw, err := json.Marshal(model.ErrorFrame{Type: "error", Error: kind, Message: message})
	if err != nil {
		return
	}
	if !peer.Push(raw) {
		h.log.Warn("error frame dropped, peer buffer full", zap.String("session_id", peer.SessionID))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, errs.ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, errs.ErrParticipantNotActive):
		return "participant_not_active"
	case errors.Is(err, errs.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, errs.ErrActivityAlreadyCompleted):
		return "activity_already_completed"
	default:
		return "internal_error"
	}
}
