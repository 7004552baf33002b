package model

import "encoding/json"

// EventType identifies an outbound broadcast frame.
type EventType string

const (
	EventStateChanged    EventType = "state_changed"
	EventProgressUpdated EventType = "progress_updated"
	EventChatPosted      EventType = "chat_posted"
	EventPresenceChanged EventType = "presence_changed"
)

// Event is a state-delta notification pushed to all live subscribers of a
// session, in the order the actor applied the underlying commands.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Payload   interface{} `json:"payload"`
}

// StateChangedPayload accompanies EventStateChanged.
type StateChangedPayload struct {
	Status SessionStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// ProgressUpdatedPayload accompanies EventProgressUpdated.
type ProgressUpdatedPayload struct {
	Progress *ActivityProgress `json:"progress"`
}

// ChatPostedPayload accompanies EventChatPosted.
type ChatPostedPayload struct {
	Message *ChatMessage `json:"message"`
}

// PresenceChangedPayload accompanies EventPresenceChanged.
type PresenceChangedPayload struct {
	Participant *Participant `json:"participant"`
}

// FrameType identifies an inbound client frame on the live channel.
type FrameType string

const (
	FrameJoin           FrameType = "join"
	FrameLeave          FrameType = "leave"
	FrameUpdateProgress FrameType = "update_progress"
	FramePostChat       FrameType = "post_chat"
	FrameHeartbeat      FrameType = "heartbeat"
)

// InboundFrame is the envelope for messages received on the live channel.
type InboundFrame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinPayload accompanies FrameJoin.
type JoinPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// UpdateProgressPayload accompanies FrameUpdateProgress.
type UpdateProgressPayload struct {
	ActivityID string         `json:"activity_id"`
	Fields     ProgressFields `json:"fields"`
}

// PostChatPayload accompanies FramePostChat.
type PostChatPayload struct {
	Text string `json:"text"`
}

// ErrorFrame is pushed to a subscriber when its inbound frame is rejected.
type ErrorFrame struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
