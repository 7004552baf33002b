package model

import "time"

// WorkoutSessionEntity is the session_metadata row (GORM).
type WorkoutSessionEntity struct {
	ID             string     `gorm:"type:uuid;primaryKey"`
	OwnerID        string     `gorm:"type:uuid;not null;index"`
	WorkoutID      string     `gorm:"size:64"`
	PlanID         string     `gorm:"size:64"`
	TemplateID     string     `gorm:"size:64"`
	WorkoutType    string     `gorm:"size:32;not null"`
	ActivitiesJSON string     `gorm:"column:activities;type:jsonb;not null;default:'[]'"`
	Private        bool       `gorm:"not null;default:false"`
	MaxCapacity    int        `gorm:"not null;default:10"`
	Status         string     `gorm:"size:20;not null;default:pending;index"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`

	Participants []ParticipantEntity `gorm:"foreignKey:SessionID"`
}

func (WorkoutSessionEntity) TableName() string { return "session_metadata" }

// ParticipantEntity is the participants row (GORM).
type ParticipantEntity struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	SessionID       string    `gorm:"type:uuid;not null;index"`
	UserID          string    `gorm:"type:uuid;not null;index"`
	DisplayName     string    `gorm:"size:128;not null"`
	AvatarURL       string    `gorm:"size:512"`
	Status          string    `gorm:"size:20;not null;default:active"`
	JoinedAt        time.Time `gorm:"column:joined_at;not null"`
	LastHeartbeatAt time.Time `gorm:"column:last_heartbeat_at;not null"`
}

func (ParticipantEntity) TableName() string { return "participants" }

// ActivityProgressEntity is the activity_progress row (GORM).
// One row per (participant, activity) pair.
type ActivityProgressEntity struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	SessionID      string    `gorm:"type:uuid;not null;index"`
	ParticipantID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_participant_activity"`
	ActivityID     string    `gorm:"size:64;not null;uniqueIndex:idx_participant_activity"`
	ActivityName   string    `gorm:"size:128"`
	OrderIndex     int       `gorm:"not null;default:0"`
	CurrentSet     int       `gorm:"not null;default:0"`
	CurrentRep     int       `gorm:"not null;default:0"`
	CurrentWeight  float64   `gorm:"not null;default:0"`
	DistanceMeters float64   `gorm:"not null;default:0"`
	HeartRate      int       `gorm:"not null;default:0"`
	Status         string    `gorm:"size:20;not null;default:not_started"`
	StartedAt      time.Time `gorm:"column:started_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (ActivityProgressEntity) TableName() string { return "activity_progress" }

// ChatMessageEntity is the session_chat row (GORM). Append-only.
type ChatMessageEntity struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	SessionID     string    `gorm:"type:uuid;not null;index"`
	ParticipantID string    `gorm:"type:uuid;not null"`
	Text          string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index"`
}

func (ChatMessageEntity) TableName() string { return "session_chat" }
