// Package eventbus publishes workout lifecycle notifications to the rest
// of the platform.
package eventbus

import (
	"context"
	"time"
)

// WorkoutStarted is emitted when a session starts.
type WorkoutStarted struct {
	SessionID   string    `json:"session_id"`
	OwnerID     string    `json:"owner_id"`
	WorkoutType string    `json:"workout_type"`
	PlanID      string    `json:"plan_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// WorkoutCompleted is emitted when a session reaches a terminal state.
type WorkoutCompleted struct {
	SessionID        string    `json:"session_id"`
	OwnerID          string    `json:"owner_id"`
	WorkoutType      string    `json:"workout_type"`
	Abandoned        bool      `json:"abandoned"`
	Reason           string    `json:"reason,omitempty"`
	ParticipantCount int       `json:"participant_count"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Publisher pushes lifecycle events to the platform event bus. Publish
// failures are logged by callers, never surfaced to participants.
type Publisher interface {
	PublishWorkoutStarted(ctx context.Context, evt WorkoutStarted) error
	PublishWorkoutCompleted(ctx context.Context, evt WorkoutCompleted) error
	Close() error
}
