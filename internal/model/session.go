package model

import "time"

// SessionStatus is the lifecycle state of a workout session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusPaused     SessionStatus = "paused"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether the status is absorbing (no further transitions).
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// ParticipantStatus is derived liveness of a session member.
type ParticipantStatus string

const (
	ParticipantStatusActive       ParticipantStatus = "active"
	ParticipantStatusIdle         ParticipantStatus = "idle"
	ParticipantStatusDisconnected ParticipantStatus = "disconnected"
	ParticipantStatusLeft         ParticipantStatus = "left"
)

// ActivityStatus is the state of one participant's progress through one activity.
type ActivityStatus string

const (
	ActivityStatusNotStarted ActivityStatus = "not_started"
	ActivityStatusInProgress ActivityStatus = "in_progress"
	ActivityStatusCompleted  ActivityStatus = "completed"
	ActivityStatusSkipped    ActivityStatus = "skipped"
)

// PlannedActivity is one entry of the session's ordered workout plan.
type PlannedActivity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind,omitempty"` // strength, cardio
	OrderIndex int    `json:"order_index"`
}

// SessionConfig holds per-session settings fixed at start.
type SessionConfig struct {
	Private         bool `json:"private"`
	MaxParticipants int  `json:"max_participants"`
}

// SessionMetadata is the identity and lifecycle of one workout session.
type SessionMetadata struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	WorkoutID   string            `json:"workout_id,omitempty"`
	PlanID      string            `json:"plan_id,omitempty"`
	TemplateID  string            `json:"template_id,omitempty"`
	WorkoutType string            `json:"workout_type"`
	Activities  []PlannedActivity `json:"activities"`
	Config      SessionConfig     `json:"config"`
	Status      SessionStatus     `json:"status"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Participant is one user's membership in a session.
type Participant struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id"`
	UserID          string            `json:"user_id"`
	DisplayName     string            `json:"display_name"`
	AvatarURL       string            `json:"avatar_url,omitempty"`
	Status          ParticipantStatus `json:"status"`
	JoinedAt        time.Time         `json:"joined_at"`
	LastHeartbeatAt time.Time         `json:"last_heartbeat_at"`
}

// ProgressFields carries only the fields a client changed in one update.
// Nil fields are left untouched by the merge.
type ProgressFields struct {
	CurrentSet     *int            `json:"current_set,omitempty"`
	CurrentRep     *int            `json:"current_rep,omitempty"`
	CurrentWeight  *float64        `json:"current_weight,omitempty"`
	DistanceMeters *float64        `json:"distance_meters,omitempty"`
	HeartRate      *int            `json:"heart_rate,omitempty"`
	Status         *ActivityStatus `json:"status,omitempty"`
}

// ActivityProgress is the live state of one (participant, activity) pair.
type ActivityProgress struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	ParticipantID  string         `json:"participant_id"`
	ActivityID     string         `json:"activity_id"`
	ActivityName   string         `json:"activity_name"`
	OrderIndex     int            `json:"order_index"`
	CurrentSet     int            `json:"current_set"`
	CurrentRep     int            `json:"current_rep"`
	CurrentWeight  float64        `json:"current_weight"`
	DistanceMeters float64        `json:"distance_meters"`
	HeartRate      int            `json:"heart_rate"`
	Status         ActivityStatus `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ChatMessage is an immutable, append-only session chat entry.
type ChatMessage struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionState is the full persisted state of one session, used to
// rehydrate an actor on cold start.
type SessionState struct {
	Metadata     *SessionMetadata
	Participants []*Participant
	Progress     []*ActivityProgress
	Chat         []*ChatMessage
}

// SessionSnapshot is the API view of a session returned by the control surface.
type SessionSnapshot struct {
	ID               string        `json:"id"`
	Status           SessionStatus `json:"status"`
	WorkoutType      string        `json:"workout_type"`
	CurrentActivity  string        `json:"current_activity,omitempty"`
	ParticipantCount int           `json:"participant_count"`
	Participants     []Participant `json:"participants,omitempty"`
}

// StartSessionRequest is the body for POST /sessions. Either activities or
// plan_id must be given; plan_id is resolved through the plan lookup.
type StartSessionRequest struct {
	OwnerID     string            `json:"owner_id" binding:"required"`
	UserName    string            `json:"user_name" binding:"required"`
	UserAvatar  string            `json:"user_avatar"`
	WorkoutType string            `json:"workout_type" binding:"required"`
	PlanID      string            `json:"plan_id"`
	Activities  []PlannedActivity `json:"activities"`
	Private     bool              `json:"private"`
	MaxCapacity int               `json:"max_capacity"`
}

// StartSessionResponse is the response for POST /sessions. ParticipantID
// is the owner's participant identity; ws_url is built from it, and the
// gateway reads the sender identity for command frames from that path
// segment.
type StartSessionResponse struct {
	SessionID       string `json:"session_id"`
	ParticipantID   string `json:"participant_id"`
	Status          string `json:"status"`
	CurrentActivity string `json:"current_activity,omitempty"`
	WSURL           string `json:"ws_url"`
}

// AbandonSessionRequest is the body for POST /sessions/:id/abandon.
type AbandonSessionRequest struct {
	Reason string `json:"reason"`
}

// TransitionResponse is the response for lifecycle transition endpoints.
type TransitionResponse struct {
	Status string `json:"status"`
}

// SessionStatusResponse is the response for GET /sessions/:id/status.
type SessionStatusResponse struct {
	HasSession       bool   `json:"has_session"`
	Status           string `json:"status,omitempty"`
	ParticipantCount int    `json:"participant_count"`
}
