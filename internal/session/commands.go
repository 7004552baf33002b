package session

import "github.com/psds-microservice/live-workout-service/internal/model"

// Command is a mutation or query submitted to a session actor. Commands
// are applied one at a time in submission order.
type Command interface {
	isCommand()
}

// StartCommand creates the session metadata and admits the owner as the
// first participant. Valid only while the session is pending.
type StartCommand struct {
	OwnerID     string
	DisplayName string
	AvatarURL   string
	WorkoutType string
	WorkoutID   string
	PlanID      string
	TemplateID  string
	Activities  []model.PlannedActivity
	Private     bool
	MaxCapacity int
}

// JoinCommand admits a user, or reactivates their idle/disconnected
// participant. A user who left rejoins as a new participant.
type JoinCommand struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// LeaveCommand soft-deletes a participant (status left).
type LeaveCommand struct {
	ParticipantID string
}

// UpdateProgressCommand merges changed fields into the participant's
// progress row for one activity.
type UpdateProgressCommand struct {
	ParticipantID string
	ActivityID    string
	Fields        model.ProgressFields
}

// PostChatCommand appends one chat message.
type PostChatCommand struct {
	ParticipantID string
	Text          string
}

// HeartbeatCommand refreshes a participant's liveness.
type HeartbeatCommand struct {
	ParticipantID string
}

// PauseCommand, ResumeCommand, CompleteCommand and AbandonCommand are the
// session-level lifecycle transitions.
type (
	PauseCommand    struct{}
	ResumeCommand   struct{}
	CompleteCommand struct{}
	AbandonCommand  struct{ Reason string }
)

// SnapshotCommand reads a consistent snapshot without mutating state.
type SnapshotCommand struct{}

func (StartCommand) isCommand()          {}
func (JoinCommand) isCommand()           {}
func (LeaveCommand) isCommand()          {}
func (UpdateProgressCommand) isCommand() {}
func (PostChatCommand) isCommand()       {}
func (HeartbeatCommand) isCommand()      {}
func (PauseCommand) isCommand()          {}
func (ResumeCommand) isCommand()         {}
func (CompleteCommand) isCommand()       {}
func (AbandonCommand) isCommand()        {}
func (SnapshotCommand) isCommand()       {}
