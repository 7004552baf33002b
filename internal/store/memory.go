package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/psds-microservice/live-workout-service/internal/errs"
	"github.com/psds-microservice/live-workout-service/internal/model"
)

// MemoryStore keeps session state in memory for local development and
// actor tests. Write failures can be injected with FailWrites.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*model.SessionMetadata
	participants map[string]map[string]*model.Participant      // sessionID -> participantID
	progress     map[string]map[string]*model.ActivityProgress // sessionID -> participantID/activityID
	chat         map[string][]*model.ChatMessage
	failWrites   int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*model.SessionMetadata),
		participants: make(map[string]map[string]*model.Participant),
		progress:     make(map[string]map[string]*model.ActivityProgress),
		chat:         make(map[string][]*model.ChatMessage),
	}
}

// FailWrites makes the next n write calls fail with ErrPersistenceFailure.
func (s *MemoryStore) FailWrites(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = n
}

func (s *MemoryStore) takeFailure() error {
	if s.failWrites > 0 {
		s.failWrites--
		return fmt.Errorf("%w: injected", errs.ErrPersistenceFailure)
	}
	return nil
}

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(ctx context.Context, meta *model.SessionMetadata, owner *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	cp := *meta
	s.sessions[meta.ID] = &cp
	if s.participants[meta.ID] == nil {
		s.participants[meta.ID] = make(map[string]*model.Participant)
	}
	oc := *owner
	s.participants[meta.ID][owner.ID] = &oc
	return nil
}

// UpdateSession implements Store.
func (s *MemoryStore) UpdateSession(ctx context.Context, meta *model.SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.sessions[meta.ID]; !ok {
		return errs.ErrSessionNotFound
	}
	cp := *meta
	s.sessions[meta.ID] = &cp
	return nil
}

// SaveParticipant implements Store.
func (s *MemoryStore) SaveParticipant(ctx context.Context, p *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if s.participants[p.SessionID] == nil {
		s.participants[p.SessionID] = make(map[string]*model.Participant)
	}
	cp := *p
	s.participants[p.SessionID][p.ID] = &cp
	return nil
}

// SaveProgress implements Store.
func (s *MemoryStore) SaveProgress(ctx context.Context, ap *model.ActivityProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if s.progress[ap.SessionID] == nil {
		s.progress[ap.SessionID] = make(map[string]*model.ActivityProgress)
	}
	cp := *ap
	s.progress[ap.SessionID][ap.ParticipantID+"/"+ap.ActivityID] = &cp
	return nil
}

// AppendChat implements Store.
func (s *MemoryStore) AppendChat(ctx context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	cp := *msg
	s.chat[msg.SessionID] = append(s.chat[msg.SessionID], &cp)
	return nil
}

// LoadSession implements Store.
func (s *MemoryStore) LoadSession(ctx context.Context, sessionID string) (*model.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.sessions[sessionID]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	cp := *meta
	state := &model.SessionState{Metadata: &cp}
	for _, p := range s.participants[sessionID] {
		pc := *p
		state.Participants = append(state.Participants, &pc)
	}
	sort.Slice(state.Participants, func(i, j int) bool {
		return state.Participants[i].JoinedAt.Before(state.Participants[j].JoinedAt)
	})
	for _, ap := range s.progress[sessionID] {
		apc := *ap
		state.Progress = append(state.Progress, &apc)
	}
	sort.Slice(state.Progress, func(i, j int) bool {
		return state.Progress[i].OrderIndex < state.Progress[j].OrderIndex
	})
	for _, m := range s.chat[sessionID] {
		mc := *m
		state.Chat = append(state.Chat, &mc)
	}
	return state, nil
}
