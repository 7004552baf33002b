package session

import (
	"time"

	"github.com/psds-microservice/live-workout-service/internal/errs"
	"github.com/psds-microservice/live-workout-service/internal/model"
)

// mergeProgress applies a partial update onto an existing progress row and
// returns the merged copy. Field-level last-write-wins: only non-nil
// fields overwrite, ordered by actor receipt time (now), never by client
// clocks. A completed activity accepts only a skipped correction.
func mergeProgress(existing *model.ActivityProgress, fields model.ProgressFields, now time.Time) (*model.ActivityProgress, error) {
	if existing.Status == model.ActivityStatusCompleted {
		if fields.Status == nil || *fields.Status != model.ActivityStatusSkipped {
			return nil, errs.ErrActivityAlreadyCompleted
		}
	}

	merged := *existing
	if fields.CurrentSet != nil {
		merged.CurrentSet = *fields.CurrentSet
	}
	if fields.CurrentRep != nil {
		merged.CurrentRep = *fields.CurrentRep
	}
	if fields.CurrentWeight != nil {
		merged.CurrentWeight = *fields.CurrentWeight
	}
	if fields.DistanceMeters != nil {
		merged.DistanceMeters = *fields.DistanceMeters
	}
	if fields.HeartRate != nil {
		merged.HeartRate = *fields.HeartRate
	}
	if fields.Status != nil {
		merged.Status = *fields.Status
	} else if merged.Status == model.ActivityStatusNotStarted {
		merged.Status = model.ActivityStatusInProgress
	}
	merged.UpdatedAt = now
	return &merged, nil
}
