package session

import (
	"context"
	"testing"
	"time"

	"github.com/psds-microservice/live-workout-service/internal/common/clock"
	"github.com/psds-microservice/live-workout-service/internal/errs"
	"github.com/psds-microservice/live-workout-service/internal/model"
	"github.com/psds-microservice/live-workout-service/internal/store"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// recorderBroadcaster captures published events in order for assertions.
type recorderBroadcaster struct {
	events []*model.Event
	closed []string
}

func (b *recorderBroadcaster) Publish(sessionID string, evt *model.Event) {
	b.events = append(b.events, evt)
}

func (b *recorderBroadcaster) CloseSession(sessionID string) {
	b.closed = append(b.closed, sessionID)
}

func (b *recorderBroadcaster) eventTypes() []model.EventType {
	out := make([]model.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type ActorTestSuite struct {
	suite.Suite
	store *store.MemoryStore
	bcast *recorderBroadcaster
	clk   *clock.Fixed
	actor *Actor

	testTime  time.Time
	ownerID   string
	guestID   string
	activity1 string
	activity2 string
}

func TestActorTestSuite(t *testing.T) {
	suite.Run(t, new(ActorTestSuite))
}

func (s *ActorTestSuite) SetupTest() {
	s.testTime = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	s.ownerID = "user-owner"
	s.guestID = "user-guest"
	s.activity1 = "a1"
	s.activity2 = "a2"

	s.store = store.NewMemory()
	s.bcast = &recorderBroadcaster{}
	s.clk = &clock.Fixed{Current: s.testTime}
	s.actor = newActor("test-session-id", nil, Config{
		MaxParticipants:     3,
		PresenceTick:        15 * time.Second,
		IdleThreshold:       30 * time.Second,
		DisconnectThreshold: 90 * time.Second,
		AbandonGrace:        2 * time.Minute,
		Retention:           5 * time.Minute,
	}, s.store, s.bcast, nil, s.clk, zap.NewNop())
}

func (s *ActorTestSuite) startSession() {
	s.Require().NoError(s.actor.apply(StartCommand{
		OwnerID:     s.ownerID,
		DisplayName: "Owner",
		WorkoutType: "strength",
		Activities: []model.PlannedActivity{
			{ID: s.activity1, Name: "Back Squat", Kind: "strength", OrderIndex: 0},
			{ID: s.activity2, Name: "Bench Press", Kind: "strength", OrderIndex: 1},
		},
	}))
}

// participantByUser returns the user's most recent non-left participant,
// or their left one if none is live.
func (s *ActorTestSuite) participantByUser(userID string) *model.Participant {
	var fallback *model.Participant
	for _, p := range s.actor.participants {
		if p.UserID != userID {
			continue
		}
		if p.Status != model.ParticipantStatusLeft {
			return p
		}
		fallback = p
	}
	return fallback
}

func (s *ActorTestSuite) join(userID, name string) *model.Participant {
	s.Require().NoError(s.actor.apply(JoinCommand{UserID: userID, DisplayName: name}))
	p := s.participantByUser(userID)
	s.Require().NotNil(p)
	return p
}

func (s *ActorTestSuite) TestStartCreatesSessionAndAdmitsOwner() {
	s.startSession()

	s.Equal(model.SessionStatusInProgress, s.actor.meta.Status)
	s.Equal(s.ownerID, s.actor.meta.OwnerID)
	s.Len(s.actor.participants, 1)

	owner := s.participantByUser(s.ownerID)
	s.Equal(model.ParticipantStatusActive, owner.Status)
	s.Equal(s.testTime, owner.JoinedAt)

	state, err := s.store.LoadSession(context.Background(), "test-session-id")
	s.Require().NoError(err)
	s.Equal(model.SessionStatusInProgress, state.Metadata.Status)
	s.Len(state.Participants, 1)

	s.Equal([]model.EventType{model.EventStateChanged, model.EventPresenceChanged}, s.bcast.eventTypes())
}

func (s *ActorTestSuite) TestStartTwiceRejected() {
	s.startSession()
	err := s.actor.apply(StartCommand{OwnerID: s.ownerID, WorkoutType: "strength"})
	s.ErrorIs(err, errs.ErrInvalidStateTransition)
	s.Equal(model.SessionStatusInProgress, s.actor.meta.Status)
}

func (s *ActorTestSuite) TestLifecycleTransitionGraph() {
	// No transition is legal before start.
	s.ErrorIs(s.actor.apply(CompleteCommand{}), errs.ErrInvalidStateTransition)
	s.ErrorIs(s.actor.apply(PauseCommand{}), errs.ErrInvalidStateTransition)

	s.startSession()

	// resume only from paused
	s.ErrorIs(s.actor.apply(ResumeCommand{}), errs.ErrInvalidStateTransition)

	s.NoError(s.actor.apply(PauseCommand{}))
	s.Equal(model.SessionStatusPaused, s.actor.meta.Status)
	s.ErrorIs(s.actor.apply(PauseCommand{}), errs.ErrInvalidStateTransition)

	s.NoError(s.actor.apply(ResumeCommand{}))
	s.Equal(model.SessionStatusInProgress, s.actor.meta.Status)

	s.NoError(s.actor.apply(CompleteCommand{}))
	s.Equal(model.SessionStatusCompleted, s.actor.meta.Status)
	s.Contains(s.bcast.closed, "test-session-id")

	// Terminal is absorbing.
	before := len(s.bcast.events)
	s.ErrorIs(s.actor.apply(PauseCommand{}), errs.ErrInvalidStateTransition)
	s.ErrorIs(s.actor.apply(ResumeCommand{}), errs.ErrInvalidStateTransition)
	s.ErrorIs(s.actor.apply(AbandonCommand{}), errs.ErrInvalidStateTransition)
	s.ErrorIs(s.actor.apply(JoinCommand{UserID: s.guestID}), errs.ErrInvalidStateTransition)
	s.ErrorIs(s.actor.apply(PostChatCommand{}), errs.ErrInvalidStateTransition)
	s.Equal(model.SessionStatusCompleted, s.actor.meta.Status)
	s.Len(s.bcast.events, before, "rejected commands must not broadcast")
}

func (s *ActorTestSuite) TestAbandonFromPaused() {
	s.startSession()
	s.NoError(s.actor.apply(PauseCommand{}))
	s.NoError(s.actor.apply(AbandonCommand{Reason: "gym closed"}))
	s.Equal(model.SessionStatusAbandoned, s.actor.meta.Status)

	state, err := s.store.LoadSession(context.Background(), "test-session-id")
	s.Require().NoError(err)
	s.Equal(model.SessionStatusAbandoned, state.Metadata.Status)
}

func (s *ActorTestSuite) TestJoinCapacity() {
	s.startSession()
	s.join(s.guestID, "Guest")
	s.join("user-third", "Third")

	err := s.actor.apply(JoinCommand{UserID: "user-fourth", DisplayName: "Fourth"})
	s.ErrorIs(err, errs.ErrCapacityExceeded)
	s.Equal(3, s.actor.memberCount())
}

func (s *ActorTestSuite) TestLeaveIsSoftAndFinal() {
	s.startSession()
	guest := s.join(s.guestID, "Guest")

	s.NoError(s.actor.apply(LeaveCommand{ParticipantID: guest.ID}))
	s.Equal(model.ParticipantStatusLeft, s.actor.participants[guest.ID].Status)

	// Leaving twice, or acting while left, is rejected.
	s.ErrorIs(s.actor.apply(LeaveCommand{ParticipantID: guest.ID}), errs.ErrParticipantNotActive)
	s.ErrorIs(s.actor.apply(HeartbeatCommand{ParticipantID: guest.ID}), errs.ErrParticipantNotActive)
	s.ErrorIs(s.actor.apply(PostChatCommand{ParticipantID: guest.ID, Text: "hi"}), errs.ErrParticipantNotActive)

	// Rejoin creates a fresh participant; the left row never re-enters active.
	rejoined := s.join(s.guestID, "Guest")
	s.NotEqual(guest.ID, rejoined.ID)
	s.Equal(model.ParticipantStatusLeft, s.actor.participants[guest.ID].Status)
	s.Equal(model.ParticipantStatusActive, rejoined.Status)
}

func (s *ActorTestSuite) TestProgressFieldMerge() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)

	set3 := 3
	s.NoError(s.actor.apply(UpdateProgressCommand{
		ParticipantID: owner.ID,
		ActivityID:    s.activity1,
		Fields:        model.ProgressFields{CurrentSet: &set3},
	}))
	s.clk.Advance(2 * time.Second)
	weight100 := 100.0
	s.NoError(s.actor.apply(UpdateProgressCommand{
		ParticipantID: owner.ID,
		ActivityID:    s.activity1,
		Fields:        model.ProgressFields{CurrentWeight: &weight100},
	}))

	ap := s.actor.progress[progressKey(owner.ID, s.activity1)]
	s.Require().NotNil(ap)
	s.Equal(3, ap.CurrentSet, "earlier field survives the later partial update")
	s.Equal(100.0, ap.CurrentWeight)
	s.Equal(model.ActivityStatusInProgress, ap.Status)
	s.Equal("Back Squat", ap.ActivityName)
	s.Equal(s.testTime.Add(2*time.Second), ap.UpdatedAt, "ordering is by actor receipt time")
}

func (s *ActorTestSuite) TestCompletedActivityIsMonotonic() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)

	completed := model.ActivityStatusCompleted
	s.NoError(s.actor.apply(UpdateProgressCommand{
		ParticipantID: owner.ID,
		ActivityID:    s.activity1,
		Fields:        model.ProgressFields{Status: &completed},
	}))

	set4 := 4
	err := s.actor.apply(UpdateProgressCommand{
		ParticipantID: owner.ID,
		ActivityID:    s.activity1,
		Fields:        model.ProgressFields{CurrentSet: &set4},
	})
	s.ErrorIs(err, errs.ErrActivityAlreadyCompleted)
	s.Equal(model.ActivityStatusCompleted, s.actor.progress[progressKey(owner.ID, s.activity1)].Status)

	// The one allowed correction: completed -> skipped.
	skipped := model.ActivityStatusSkipped
	s.NoError(s.actor.apply(UpdateProgressCommand{
		ParticipantID: owner.ID,
		ActivityID:    s.activity1,
		Fields:        model.ProgressFields{Status: &skipped},
	}))
	s.Equal(model.ActivityStatusSkipped, s.actor.progress[progressKey(owner.ID, s.activity1)].Status)
}

func (s *ActorTestSuite) TestProgressRejectedForDisconnectedParticipant() {
	s.startSession()
	guest := s.join(s.guestID, "Guest")

	s.clk.Advance(100 * time.Second)
	s.NoError(s.actor.apply(HeartbeatCommand{ParticipantID: s.participantByUser(s.ownerID).ID}))
	s.actor.sweep(s.clk.Now())
	s.Equal(model.ParticipantStatusDisconnected, s.actor.participants[guest.ID].Status)

	set1 := 1
	err := s.actor.apply(UpdateProgressCommand{
		ParticipantID: guest.ID,
		ActivityID:    s.activity1,
		Fields:        model.ProgressFields{CurrentSet: &set1},
	})
	s.ErrorIs(err, errs.ErrParticipantNotActive)
}

func (s *ActorTestSuite) TestChatOrderingMatchesAcceptance() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)
	guest := s.join(s.guestID, "Guest")

	s.NoError(s.actor.apply(PostChatCommand{ParticipantID: owner.ID, Text: "first"}))
	s.clk.Advance(time.Second)
	s.NoError(s.actor.apply(PostChatCommand{ParticipantID: guest.ID, Text: "second"}))

	s.Require().Equal(2, s.actor.chat.len())
	s.Equal("first", s.actor.chat.messages[0].Text)
	s.Equal("second", s.actor.chat.messages[1].Text)

	var chatEvents []*model.ChatMessage
	for _, e := range s.bcast.events {
		if e.Type == model.EventChatPosted {
			chatEvents = append(chatEvents, e.Payload.(model.ChatPostedPayload).Message)
		}
	}
	s.Require().Len(chatEvents, 2)
	s.Equal("first", chatEvents[0].Text)
	s.Equal("second", chatEvents[1].Text)
}

func (s *ActorTestSuite) TestHeartbeatIdempotentWhileActive() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)
	presenceEvents := len(s.bcast.events)

	for i := 0; i < 3; i++ {
		s.clk.Advance(5 * time.Second)
		s.NoError(s.actor.apply(HeartbeatCommand{ParticipantID: owner.ID}))
	}

	p := s.actor.participants[owner.ID]
	s.Equal(model.ParticipantStatusActive, p.Status)
	s.Equal(s.clk.Now(), p.LastHeartbeatAt)
	s.Len(s.bcast.events, presenceEvents, "no presence events for an already active participant")
}

func (s *ActorTestSuite) TestHeartbeatRevivesIdleParticipant() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)

	s.clk.Advance(40 * time.Second)
	s.actor.sweep(s.clk.Now())
	s.Equal(model.ParticipantStatusIdle, s.actor.participants[owner.ID].Status)

	s.NoError(s.actor.apply(HeartbeatCommand{ParticipantID: owner.ID}))
	s.Equal(model.ParticipantStatusActive, s.actor.participants[owner.ID].Status)
}

func (s *ActorTestSuite) TestOwnerDisconnectWithActiveGuestKeepsSession() {
	s.startSession()
	guest := s.join(s.guestID, "Guest")

	// Owner goes silent; guest keeps heartbeating.
	s.clk.Advance(70 * time.Second)
	s.NoError(s.actor.apply(HeartbeatCommand{ParticipantID: guest.ID}))
	s.clk.Advance(25 * time.Second)
	s.actor.sweep(s.clk.Now())

	owner := s.participantByUser(s.ownerID)
	s.Equal(model.ParticipantStatusDisconnected, owner.Status)
	s.Equal(model.ParticipantStatusActive, s.actor.participants[guest.ID].Status)
	s.Equal(model.SessionStatusInProgress, s.actor.meta.Status)
	s.Nil(s.actor.abandonDeadline, "an active non-owner participant blocks the abandonment timer")
}

func (s *ActorTestSuite) TestSoleOwnerLeaveAbandonsAfterGrace() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)

	s.NoError(s.actor.apply(LeaveCommand{ParticipantID: owner.ID}))
	s.Require().NotNil(s.actor.abandonDeadline)

	s.actor.sweep(s.clk.Now())
	s.Equal(model.SessionStatusInProgress, s.actor.meta.Status, "grace period not elapsed yet")

	s.clk.Advance(2*time.Minute + time.Second)
	s.actor.sweep(s.clk.Now())
	s.Equal(model.SessionStatusAbandoned, s.actor.meta.Status)
	s.Contains(s.bcast.closed, "test-session-id")

	state, err := s.store.LoadSession(context.Background(), "test-session-id")
	s.Require().NoError(err)
	s.Equal(model.SessionStatusAbandoned, state.Metadata.Status)
}

func (s *ActorTestSuite) TestJoinCancelsAbandonTimer() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)

	s.NoError(s.actor.apply(LeaveCommand{ParticipantID: owner.ID}))
	s.Require().NotNil(s.actor.abandonDeadline)

	s.join(s.guestID, "Guest")
	s.Nil(s.actor.abandonDeadline)

	s.clk.Advance(3 * time.Minute)
	s.actor.sweep(s.clk.Now())
	s.Equal(model.SessionStatusInProgress, s.actor.meta.Status)
}

func (s *ActorTestSuite) TestPersistenceFailureLeavesNoPartialEffect() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)
	before := len(s.bcast.events)

	// Both the write and its single retry fail: command surfaces the error
	// and nothing is applied or broadcast.
	s.store.FailWrites(2)
	err := s.actor.apply(PostChatCommand{ParticipantID: owner.ID, Text: "lost"})
	s.ErrorIs(err, errs.ErrPersistenceFailure)
	s.Equal(0, s.actor.chat.len())
	s.Len(s.bcast.events, before)

	// A single failure is absorbed by the retry.
	s.store.FailWrites(1)
	s.NoError(s.actor.apply(PostChatCommand{ParticipantID: owner.ID, Text: "kept"}))
	s.Equal(1, s.actor.chat.len())
}

func (s *ActorTestSuite) TestRehydrateFromStore() {
	s.startSession()
	owner := s.participantByUser(s.ownerID)
	s.join(s.guestID, "Guest")
	set2 := 2
	s.NoError(s.actor.apply(UpdateProgressCommand{
		ParticipantID: owner.ID,
		ActivityID:    s.activity1,
		Fields:        model.ProgressFields{CurrentSet: &set2},
	}))
	s.NoError(s.actor.apply(PostChatCommand{ParticipantID: owner.ID, Text: "hello"}))

	state, err := s.store.LoadSession(context.Background(), "test-session-id")
	s.Require().NoError(err)

	revived := newActor("test-session-id", state, s.actor.cfg, s.store, &recorderBroadcaster{}, nil, s.clk, zap.NewNop())
	s.Equal(model.SessionStatusInProgress, revived.meta.Status)
	s.Len(revived.participants, 2)
	s.Require().NotNil(revived.progress[progressKey(owner.ID, s.activity1)])
	s.Equal(2, revived.progress[progressKey(owner.ID, s.activity1)].CurrentSet)
	s.Equal(1, revived.chat.len())
}
