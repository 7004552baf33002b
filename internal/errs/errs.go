package errs

import "errors"

// Domain sentinel errors, mapped to HTTP codes and error frames at the edges.
var (
	ErrSessionNotFound          = errors.New("session not found")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrParticipantNotActive     = errors.New("participant not active")
	ErrCapacityExceeded         = errors.New("session capacity exceeded")
	ErrActivityAlreadyCompleted = errors.New("activity already completed")
	ErrPersistenceFailure       = errors.New("persistence failure")
)
