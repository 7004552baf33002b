// Package store persists session state so an actor can be rehydrated
// after a restart. All writers are funneled through the owning session
// actor, so the store never sees concurrent writes for the same row.
package store

import (
	"context"

	"github.com/psds-microservice/live-workout-service/internal/model"
)

// Store is the durable backing for session actors.
type Store interface {
	// CreateSession inserts session metadata together with the owner's
	// participant row as one atomic write.
	CreateSession(ctx context.Context, meta *model.SessionMetadata, owner *model.Participant) error

	// UpdateSession persists lifecycle fields (status, started_at, updated_at).
	UpdateSession(ctx context.Context, meta *model.SessionMetadata) error

	// SaveParticipant upserts one participant row.
	SaveParticipant(ctx context.Context, p *model.Participant) error

	// SaveProgress upserts one (participant, activity) progress row.
	SaveProgress(ctx context.Context, ap *model.ActivityProgress) error

	// AppendChat inserts one chat message. Messages are never mutated.
	AppendChat(ctx context.Context, msg *model.ChatMessage) error

	// LoadSession reads the last known state for a session id, for actor
	// rehydration on cold start. Returns errs.ErrSessionNotFound when the
	// session has never been persisted.
	LoadSession(ctx context.Context, sessionID string) (*model.SessionState, error)
}
