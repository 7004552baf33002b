package session

import (
	"time"

	"github.com/psds-microservice/live-workout-service/internal/model"
)

// sweepPresence computes heartbeat-timeout transitions for all non-left
// participants: active -> idle past idleThreshold, then -> disconnected
// past disconnectThreshold. It returns copies carrying the new status;
// the caller persists and applies them. Soft timeouts only: nothing is
// evicted or deleted here, so a mobile client that reconnects inside the
// idle window resumes seamlessly.
func sweepPresence(participants map[string]*model.Participant, now time.Time, idleThreshold, disconnectThreshold time.Duration) []*model.Participant {
	var changed []*model.Participant
	for _, p := range participants {
		if p.Status == model.ParticipantStatusLeft {
			continue
		}
		silence := now.Sub(p.LastHeartbeatAt)
		switch {
		case silence > disconnectThreshold && p.Status != model.ParticipantStatusDisconnected:
			cp := *p
			cp.Status = model.ParticipantStatusDisconnected
			changed = append(changed, &cp)
		case silence > idleThreshold && silence <= disconnectThreshold && p.Status == model.ParticipantStatusActive:
			cp := *p
			cp.Status = model.ParticipantStatusIdle
			changed = append(changed, &cp)
		}
	}
	return changed
}

// hasActiveOther reports whether an active participant other than the
// given user exists.
func hasActiveOther(participants map[string]*model.Participant, userID string) bool {
	for _, p := range participants {
		if p.UserID != userID && p.Status == model.ParticipantStatusActive {
			return true
		}
	}
	return false
}
