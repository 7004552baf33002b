package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/psds-microservice/live-workout-service/internal/errs"
	"github.com/psds-microservice/live-workout-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of GORM (PostgreSQL in production,
// SQLite in tests).
type GormStore struct {
	db *gorm.DB
}

// NewGorm creates a GORM-backed store.
func NewGorm(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateSession implements Store.
func (s *GormStore) CreateSession(ctx context.Context, meta *model.SessionMetadata, owner *model.Participant) error {
	ent, err := sessionToEntity(meta)
	if err != nil {
		return fmt.Errorf("%w: encode session %s: %v", errs.ErrPersistenceFailure, meta.ID, err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ent).Error; err != nil {
			return err
		}
		return tx.Create(participantToEntity(owner)).Error
	})
	if err != nil {
		return fmt.Errorf("%w: create session %s: %v", errs.ErrPersistenceFailure, meta.ID, err)
	}
	return nil
}

// UpdateSession implements Store.
func (s *GormStore) UpdateSession(ctx context.Context, meta *model.SessionMetadata) error {
	updates := map[string]interface{}{
		"status":     string(meta.Status),
		"updated_at": meta.UpdatedAt,
	}
	if meta.StartedAt != nil {
		updates["started_at"] = *meta.StartedAt
	}
	res := s.db.WithContext(ctx).Model(&model.WorkoutSessionEntity{}).
		Where("id = ?", meta.ID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("%w: update session %s: %v", errs.ErrPersistenceFailure, meta.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

// SaveParticipant implements Store.
func (s *GormStore) SaveParticipant(ctx context.Context, p *model.Participant) error {
	ent := participantToEntity(p)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(ent).Error
	if err != nil {
		return fmt.Errorf("%w: save participant %s: %v", errs.ErrPersistenceFailure, p.ID, err)
	}
	return nil
}

// SaveProgress implements Store.
func (s *GormStore) SaveProgress(ctx context.Context, ap *model.ActivityProgress) error {
	ent := progressToEntity(ap)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participant_id"}, {Name: "activity_id"}},
		UpdateAll: true,
	}).Create(ent).Error
	if err != nil {
		return fmt.Errorf("%w: save progress %s/%s: %v", errs.ErrPersistenceFailure, ap.ParticipantID, ap.ActivityID, err)
	}
	return nil
}

// AppendChat implements Store.
func (s *GormStore) AppendChat(ctx context.Context, msg *model.ChatMessage) error {
	ent := &model.ChatMessageEntity{
		ID:            msg.ID,
		SessionID:     msg.SessionID,
		ParticipantID: msg.ParticipantID,
		Text:          msg.Text,
		CreatedAt:     msg.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return fmt.Errorf("%w: append chat %s: %v", errs.ErrPersistenceFailure, msg.ID, err)
	}
	return nil
}

// LoadSession implements Store.
func (s *GormStore) LoadSession(ctx context.Context, sessionID string) (*model.SessionState, error) {
	var ent model.WorkoutSessionEntity
	if err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: load session %s: %v", errs.ErrPersistenceFailure, sessionID, err)
	}
	meta, err := entityToSession(&ent)
	if err != nil {
		return nil, fmt.Errorf("%w: decode session %s: %v", errs.ErrPersistenceFailure, sessionID, err)
	}
	state := &model.SessionState{Metadata: meta}

	var parts []model.ParticipantEntity
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("joined_at asc").Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("%w: load participants %s: %v", errs.ErrPersistenceFailure, sessionID, err)
	}
	for i := range parts {
		state.Participants = append(state.Participants, entityToParticipant(&parts[i]))
	}

	var progress []model.ActivityProgressEntity
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("order_index asc").Find(&progress).Error; err != nil {
		return nil, fmt.Errorf("%w: load progress %s: %v", errs.ErrPersistenceFailure, sessionID, err)
	}
	for i := range progress {
		state.Progress = append(state.Progress, entityToProgress(&progress[i]))
	}

	var chat []model.ChatMessageEntity
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at asc").Find(&chat).Error; err != nil {
		return nil, fmt.Errorf("%w: load chat %s: %v", errs.ErrPersistenceFailure, sessionID, err)
	}
	for i := range chat {
		c := chat[i]
		state.Chat = append(state.Chat, &model.ChatMessage{
			ID:            c.ID,
			SessionID:     c.SessionID,
			ParticipantID: c.ParticipantID,
			Text:          c.Text,
			CreatedAt:     c.CreatedAt,
		})
	}
	return state, nil
}

func sessionToEntity(meta *model.SessionMetadata) (*model.WorkoutSessionEntity, error) {
	activities, err := json.Marshal(meta.Activities)
	if err != nil {
		return nil, err
	}
	return &model.WorkoutSessionEntity{
		ID:             meta.ID,
		OwnerID:        meta.OwnerID,
		WorkoutID:      meta.WorkoutID,
		PlanID:         meta.PlanID,
		TemplateID:     meta.TemplateID,
		WorkoutType:    meta.WorkoutType,
		ActivitiesJSON: string(activities),
		Private:        meta.Config.Private,
		MaxCapacity:    meta.Config.MaxParticipants,
		Status:         string(meta.Status),
		StartedAt:      meta.StartedAt,
		CreatedAt:      meta.CreatedAt,
		UpdatedAt:      meta.UpdatedAt,
	}, nil
}

func entityToSession(ent *model.WorkoutSessionEntity) (*model.SessionMetadata, error) {
	var activities []model.PlannedActivity
	if ent.ActivitiesJSON != "" {
		if err := json.Unmarshal([]byte(ent.ActivitiesJSON), &activities); err != nil {
			return nil, err
		}
	}
	return &model.SessionMetadata{
		ID:          ent.ID,
		OwnerID:     ent.OwnerID,
		WorkoutID:   ent.WorkoutID,
		PlanID:      ent.PlanID,
		TemplateID:  ent.TemplateID,
		WorkoutType: ent.WorkoutType,
		Activities:  activities,
		Config: model.SessionConfig{
			Private:         ent.Private,
			MaxParticipants: ent.MaxCapacity,
		},
		Status:    model.SessionStatus(ent.Status),
		StartedAt: ent.StartedAt,
		CreatedAt: ent.CreatedAt,
		UpdatedAt: ent.UpdatedAt,
	}, nil
}

func participantToEntity(p *model.Participant) *model.ParticipantEntity {
	return &model.ParticipantEntity{
		ID:              p.ID,
		SessionID:       p.SessionID,
		UserID:          p.UserID,
		DisplayName:     p.DisplayName,
		AvatarURL:       p.AvatarURL,
		Status:          string(p.Status),
		JoinedAt:        p.JoinedAt,
		LastHeartbeatAt: p.LastHeartbeatAt,
	}
}

func entityToParticipant(ent *model.ParticipantEntity) *model.Participant {
	return &model.Participant{
		ID:              ent.ID,
		SessionID:       ent.SessionID,
		UserID:          ent.UserID,
		DisplayName:     ent.DisplayName,
		AvatarURL:       ent.AvatarURL,
		Status:          model.ParticipantStatus(ent.Status),
		JoinedAt:        ent.JoinedAt,
		LastHeartbeatAt: ent.LastHeartbeatAt,
	}
}

func progressToEntity(ap *model.ActivityProgress) *model.ActivityProgressEntity {
	return &model.ActivityProgressEntity{
		ID:             ap.ID,
		SessionID:      ap.SessionID,
		ParticipantID:  ap.ParticipantID,
		ActivityID:     ap.ActivityID,
		ActivityName:   ap.ActivityName,
		OrderIndex:     ap.OrderIndex,
		CurrentSet:     ap.CurrentSet,
		CurrentRep:     ap.CurrentRep,
		CurrentWeight:  ap.CurrentWeight,
		DistanceMeters: ap.DistanceMeters,
		HeartRate:      ap.HeartRate,
		Status:         string(ap.Status),
		StartedAt:      ap.StartedAt,
		UpdatedAt:      ap.UpdatedAt,
	}
}

func entityToProgress(ent *model.ActivityProgressEntity) *model.ActivityProgress {
	return &model.ActivityProgress{
		ID:             ent.ID,
		SessionID:      ent.SessionID,
		ParticipantID:  ent.ParticipantID,
		ActivityID:     ent.ActivityID,
		ActivityName:   ent.ActivityName,
		OrderIndex:     ent.OrderIndex,
		CurrentSet:     ent.CurrentSet,
		CurrentRep:     ent.CurrentRep,
		CurrentWeight:  ent.CurrentWeight,
		DistanceMeters: ent.DistanceMeters,
		HeartRate:      ent.HeartRate,
		Status:         model.ActivityStatus(ent.Status),
		StartedAt:      ent.StartedAt,
		UpdatedAt:      ent.UpdatedAt,
	}
}
