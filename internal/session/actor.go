// Package session implements the per-session actor that owns one live
// workout session: a single goroutine drains a command channel, so every
// mutation is validated against current state, persisted, applied and
// broadcast without locks or partial effects.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/live-workout-service/internal/common/clock"
	"github.com/psds-microservice/live-workout-service/internal/errs"
	"github.com/psds-microservice/live-workout-service/internal/eventbus"
	"github.com/psds-microservice/live-workout-service/internal/model"
	"github.com/psds-microservice/live-workout-service/internal/store"
	"go.uber.org/zap"
)

// Broadcaster pushes events to the live subscribers of a session. The
// hub implements it; tests use an in-memory recorder.
type Broadcaster interface {
	Publish(sessionID string, evt *model.Event)
	CloseSession(sessionID string)
}

// Config holds the actor's timing and capacity settings.
type Config struct {
	MaxParticipants     int
	PresenceTick        time.Duration
	IdleThreshold       time.Duration
	DisconnectThreshold time.Duration
	AbandonGrace        time.Duration
	Retention           time.Duration // terminal actor eviction delay
}

type envelope struct {
	cmd   Command
	reply chan result
}

type result struct {
	snap *model.SessionSnapshot
	err  error
}

// Actor is the single owning process for one workout session's state.
type Actor struct {
	id        string
	cfg       Config
	store     store.Store
	broadcast Broadcaster
	bus       eventbus.Publisher
	clk       clock.Clock
	log       *zap.Logger

	cmds     chan *envelope
	done     chan struct{}
	stopOnce sync.Once

	// Mirror of the lifecycle status for lock-free reads from outside
	// the loop (registry eviction). Written only by the run loop.
	mu         sync.RWMutex
	status     model.SessionStatus
	terminalAt time.Time
	created    time.Time

	// State below is owned exclusively by the run loop.
	meta            *model.SessionMetadata
	participants    map[string]*model.Participant      // by participant id
	progress        map[string]*model.ActivityProgress // participantID + "/" + activityID
	chat            transcript
	abandonDeadline *time.Time
}

// newActor builds an actor for one session id. state is nil for a fresh
// session (pending until StartCommand) or the persisted state to
// rehydrate from. The run loop is not started; call start.
func newActor(id string, state *model.SessionState, cfg Config, st store.Store, b Broadcaster, bus eventbus.Publisher, clk clock.Clock, log *zap.Logger) *Actor {
	a := &Actor{
		id:           id,
		cfg:          cfg,
		store:        st,
		broadcast:    b,
		bus:          bus,
		clk:          clk,
		log:          log.With(zap.String("session_id", id)),
		cmds:         make(chan *envelope),
		done:         make(chan struct{}),
		participants: make(map[string]*model.Participant),
		progress:     make(map[string]*model.ActivityProgress),
		created:      clk.Now(),
	}
	if state == nil {
		now := clk.Now()
		a.meta = &model.SessionMetadata{
			ID:        id,
			Status:    model.SessionStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		a.meta = state.Metadata
		for _, p := range state.Participants {
			a.participants[p.ID] = p
		}
		for _, ap := range state.Progress {
			a.progress[progressKey(ap.ParticipantID, ap.ActivityID)] = ap
		}
		for _, msg := range state.Chat {
			a.chat.append(msg)
		}
	}
	a.status = a.meta.Status
	if a.meta.Status.Terminal() {
		a.terminalAt = clk.Now()
	}
	return a
}

func progressKey(participantID, activityID string) string {
	return participantID + "/" + activityID
}

// ID returns the session id the actor owns.
func (a *Actor) ID() string { return a.id }

// Status returns the last applied lifecycle status.
func (a *Actor) Status() model.SessionStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Actor) terminalSince() (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.terminalAt.IsZero() {
		return time.Time{}, false
	}
	return a.terminalAt, true
}

func (a *Actor) setStatus(s model.SessionStatus) {
	a.mu.Lock()
	a.status = s
	if s.Terminal() && a.terminalAt.IsZero() {
		a.terminalAt = a.clk.Now()
	}
	a.mu.Unlock()
}

// start launches the run loop.
func (a *Actor) start() {
	go a.run()
}

// stop terminates the run loop. Pending commands fail with SessionNotFound.
func (a *Actor) stop() {
	a.stopOnce.Do(func() {
		close(a.done)
	})
}

// Do submits a command and waits for the result. Commands of one session
// are applied strictly one at a time, in submission order.
func (a *Actor) Do(ctx context.Context, cmd Command) (*model.SessionSnapshot, error) {
	env := &envelope{cmd: cmd, reply: make(chan result, 1)}
	select {
	case a.cmds <- env:
	case <-a.done:
		return nil, errs.ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-env.reply:
		return res.snap, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Actor) run() {
	ticker := time.NewTicker(a.cfg.PresenceTick)
	defer ticker.Stop()
	for {
		select {
		case env := <-a.cmds:
			err := a.apply(env.cmd)
			env.reply <- result{snap: a.snapshot(), err: err}
		case <-ticker.C:
			a.sweep(a.clk.Now())
		case <-a.done:
			return
		}
	}
}

// apply validates and executes one command against current state.
// Rejected commands leave no observable effect.
func (a *Actor) apply(cmd Command) error {
	switch c := cmd.(type) {
	case StartCommand:
		return a.handleStart(c)
	case JoinCommand:
		return a.handleJoin(c)
	case LeaveCommand:
		return a.handleLeave(c)
	case UpdateProgressCommand:
		return a.handleUpdateProgress(c)
	case PostChatCommand:
		return a.handlePostChat(c)
	case HeartbeatCommand:
		return a.handleHeartbeat(c)
	case PauseCommand:
		return a.transition(model.SessionStatusPaused, "")
	case ResumeCommand:
		return a.transition(model.SessionStatusInProgress, "")
	case CompleteCommand:
		return a.transition(model.SessionStatusCompleted, "")
	case AbandonCommand:
		return a.transition(model.SessionStatusAbandoned, c.Reason)
	case SnapshotCommand:
		return nil
	default:
		return errs.ErrInvalidStateTransition
	}
}

// persist runs a store write, retrying once on PersistenceFailure. The
// in-memory state is only mutated after the write succeeds, so a failed
// command has no partial effect.
func (a *Actor) persist(op func(ctx context.Context) error) error {
	ctx := context.Background()
	err := op(ctx)
	if err != nil && errors.Is(err, errs.ErrPersistenceFailure) {
		a.log.Warn("store write failed, retrying once", zap.Error(err))
		err = op(ctx)
	}
	return err
}

func (a *Actor) handleStart(c StartCommand) error {
	if a.meta.Status != model.SessionStatusPending {
		return errs.ErrInvalidStateTransition
	}
	now := a.clk.Now()
	maxCap := c.MaxCapacity
	if maxCap <= 0 {
		maxCap = a.cfg.MaxParticipants
	}
	meta := &model.SessionMetadata{
		ID:          a.id,
		OwnerID:     c.OwnerID,
		WorkoutID:   c.WorkoutID,
		PlanID:      c.PlanID,
		TemplateID:  c.TemplateID,
		WorkoutType: c.WorkoutType,
		Activities:  c.Activities,
		Config: model.SessionConfig{
			Private:         c.Private,
			MaxParticipants: maxCap,
		},
		Status:    model.SessionStatusInProgress,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &model.Participant{
		ID:              uuid.NewString(),
		SessionID:       a.id,
		UserID:          c.OwnerID,
		DisplayName:     c.DisplayName,
		AvatarURL:       c.AvatarURL,
		Status:          model.ParticipantStatusActive,
		JoinedAt:        now,
		LastHeartbeatAt: now,
	}
	if err := a.persist(func(ctx context.Context) error {
		return a.store.CreateSession(ctx, meta, owner)
	}); err != nil {
		return err
	}

	a.meta = meta
	a.participants[owner.ID] = owner
	a.setStatus(meta.Status)

	a.broadcast.Publish(a.id, &model.Event{
		Type:      model.EventStateChanged,
		SessionID: a.id,
		Payload:   model.StateChangedPayload{Status: meta.Status},
	})
	a.broadcast.Publish(a.id, &model.Event{
		Type:      model.EventPresenceChanged,
		SessionID: a.id,
		Payload:   model.PresenceChangedPayload{Participant: owner},
	})
	a.publishAsync("WorkoutStarted", func(ctx context.Context) error {
		return a.bus.PublishWorkoutStarted(ctx, eventbus.WorkoutStarted{
			SessionID:   a.id,
			OwnerID:     meta.OwnerID,
			WorkoutType: meta.WorkoutType,
			PlanID:      meta.PlanID,
			StartedAt:   now,
		})
	})
	a.log.Info("session started",
		zap.String("owner_id", meta.OwnerID),
		zap.String("workout_type", meta.WorkoutType),
		zap.Int("activities", len(meta.Activities)))
	return nil
}

func (a *Actor) handleJoin(c JoinCommand) error {
	if a.meta.Status.Terminal() || a.meta.Status == model.SessionStatusPending {
		return errs.ErrInvalidStateTransition
	}
	now := a.clk.Now()

	// Reactivate an existing non-left participant of the same user. A
	// participant who left never re-enters active; the user rejoins as a
	// fresh participant instead.
	for _, p := range a.participants {
		if p.UserID != c.UserID || p.Status == model.ParticipantStatusLeft {
			continue
		}
		cp := *p
		cp.Status = model.ParticipantStatusActive
		cp.LastHeartbeatAt = now
		if err := a.persist(func(ctx context.Context) error {
			return a.store.SaveParticipant(ctx, &cp)
		}); err != nil {
			return err
		}
		a.participants[cp.ID] = &cp
		a.abandonDeadline = nil
		a.broadcast.Publish(a.id, &model.Event{
			Type:      model.EventPresenceChanged,
			SessionID: a.id,
			Payload:   model.PresenceChangedPayload{Participant: &cp},
		})
		return nil
	}

	if a.memberCount() >= a.meta.Config.MaxParticipants {
		return errs.ErrCapacityExceeded
	}
	p := &model.Participant{
		ID:              uuid.NewString(),
		SessionID:       a.id,
		UserID:          c.UserID,
		DisplayName:     c.DisplayName,
		AvatarURL:       c.AvatarURL,
		Status:          model.ParticipantStatusActive,
		JoinedAt:        now,
		LastHeartbeatAt: now,
	}
	if err := a.persist(func(ctx context.Context) error {
		return a.store.SaveParticipant(ctx, p)
	}); err != nil {
		return err
	}
	a.participants[p.ID] = p
	a.abandonDeadline = nil
	a.broadcast.Publish(a.id, &model.Event{
		Type:      model.EventPresenceChanged,
		SessionID: a.id,
		Payload:   model.PresenceChangedPayload{Participant: p},
	})
	a.log.Info("participant joined", zap.String("user_id", c.UserID), zap.String("participant_id", p.ID))
	return nil
}

func (a *Actor) handleLeave(c LeaveCommand) error {
	if a.meta.Status.Terminal() {
		return errs.ErrInvalidStateTransition
	}
	p, ok := a.participants[c.ParticipantID]
	if !ok || p.Status == model.ParticipantStatusLeft {
		return errs.ErrParticipantNotActive
	}
	cp := *p
	cp.Status = model.ParticipantStatusLeft
	if err := a.persist(func(ctx context.Context) error {
		return a.store.SaveParticipant(ctx, &cp)
	}); err != nil {
		return err
	}
	a.participants[cp.ID] = &cp
	a.broadcast.Publish(a.id, &model.Event{
		Type:      model.EventPresenceChanged,
		SessionID: a.id,
		Payload:   model.PresenceChangedPayload{Participant: &cp},
	})
	a.maybeScheduleAbandon(a.clk.Now())
	a.log.Info("participant left", zap.String("participant_id", cp.ID))
	return nil
}

func (a *Actor) handleUpdateProgress(c UpdateProgressCommand) error {
	if a.meta.Status != model.SessionStatusInProgress && a.meta.Status != model.SessionStatusPaused {
		return errs.ErrInvalidStateTransition
	}
	p, ok := a.participants[c.ParticipantID]
	if !ok || (p.Status != model.ParticipantStatusActive && p.Status != model.ParticipantStatusIdle) {
		return errs.ErrParticipantNotActive
	}
	now := a.clk.Now()
	key := progressKey(c.ParticipantID, c.ActivityID)
	existing := a.progress[key]
	if existing == nil {
		existing = &model.ActivityProgress{
			ID:            uuid.NewString(),
			SessionID:     a.id,
			ParticipantID: c.ParticipantID,
			ActivityID:    c.ActivityID,
			Status:        model.ActivityStatusNotStarted,
			StartedAt:     now,
		}
		for _, pa := range a.meta.Activities {
			if pa.ID == c.ActivityID {
				existing.ActivityName = pa.Name
				existing.OrderIndex = pa.OrderIndex
				break
			}
		}
	}
	merged, err := mergeProgress(existing, c.Fields, now)
	if err != nil {
		return err
	}
	if err := a.persist(func(ctx context.Context) error {
		return a.store.SaveProgress(ctx, merged)
	}); err != nil {
		return err
	}
	a.progress[key] = merged
	a.broadcast.Publish(a.id, &model.Event{
		Type:      model.EventProgressUpdated,
		SessionID: a.id,
		Payload:   model.ProgressUpdatedPayload{Progress: merged},
	})
	return nil
}

func (a *Actor) handlePostChat(c PostChatCommand) error {
	if a.meta.Status.Terminal() || a.meta.Status == model.SessionStatusPending {
		return errs.ErrInvalidStateTransition
	}
	p, ok := a.participants[c.ParticipantID]
	if !ok || p.Status == model.ParticipantStatusLeft {
		return errs.ErrParticipantNotActive
	}
	msg := &model.ChatMessage{
		ID:            uuid.NewString(),
		SessionID:     a.id,
		ParticipantID: p.ID,
		Text:          c.Text,
		CreatedAt:     a.clk.Now(),
	}
	if err := a.persist(func(ctx context.Context) error {
		return a.store.AppendChat(ctx, msg)
	}); err != nil {
		return err
	}
	a.chat.append(msg)
	a.broadcast.Publish(a.id, &model.Event{
		Type:      model.EventChatPosted,
		SessionID: a.id,
		Payload:   model.ChatPostedPayload{Message: msg},
	})
	return nil
}

func (a *Actor) handleHeartbeat(c HeartbeatCommand) error {
	if a.meta.Status.Terminal() {
		return errs.ErrInvalidStateTransition
	}
	p, ok := a.participants[c.ParticipantID]
	if !ok || p.Status == model.ParticipantStatusLeft {
		return errs.ErrParticipantNotActive
	}
	cp := *p
	cp.LastHeartbeatAt = a.clk.Now()
	wasInactive := p.Status == model.ParticipantStatusIdle || p.Status == model.ParticipantStatusDisconnected
	if wasInactive {
		cp.Status = model.ParticipantStatusActive
	}
	if err := a.persist(func(ctx context.Context) error {
		return a.store.SaveParticipant(ctx, &cp)
	}); err != nil {
		return err
	}
	a.participants[cp.ID] = &cp
	if wasInactive {
		a.abandonDeadline = nil
		a.broadcast.Publish(a.id, &model.Event{
			Type:      model.EventPresenceChanged,
			SessionID: a.id,
			Payload:   model.PresenceChangedPayload{Participant: &cp},
		})
	}
	return nil
}

// transition applies a session-level lifecycle change. Completing a
// session freezes all progress rows: no command is accepted against a
// terminal status.
func (a *Actor) transition(target model.SessionStatus, reason string) error {
	if !validTransition(a.meta.Status, target) {
		return errs.ErrInvalidStateTransition
	}
	now := a.clk.Now()
	cp := *a.meta
	cp.Status = target
	cp.UpdatedAt = now
	if err := a.persist(func(ctx context.Context) error {
		return a.store.UpdateSession(ctx, &cp)
	}); err != nil {
		return err
	}
	a.meta = &cp
	a.setStatus(target)
	a.broadcast.Publish(a.id, &model.Event{
		Type:      model.EventStateChanged,
		SessionID: a.id,
		Payload:   model.StateChangedPayload{Status: target, Reason: reason},
	})
	a.log.Info("session transitioned", zap.String("status", string(target)), zap.String("reason", reason))

	if target.Terminal() {
		a.abandonDeadline = nil
		meta := a.meta
		count := a.memberCount()
		a.publishAsync("WorkoutCompleted", func(ctx context.Context) error {
			return a.bus.PublishWorkoutCompleted(ctx, eventbus.WorkoutCompleted{
				SessionID:        a.id,
				OwnerID:          meta.OwnerID,
				WorkoutType:      meta.WorkoutType,
				Abandoned:        target == model.SessionStatusAbandoned,
				Reason:           reason,
				ParticipantCount: count,
				FinishedAt:       now,
			})
		})
		a.broadcast.CloseSession(a.id)
	}
	return nil
}

func validTransition(from, to model.SessionStatus) bool {
	switch to {
	case model.SessionStatusPaused:
		return from == model.SessionStatusInProgress
	case model.SessionStatusInProgress:
		return from == model.SessionStatusPaused
	case model.SessionStatusCompleted, model.SessionStatusAbandoned:
		return from == model.SessionStatusInProgress || from == model.SessionStatusPaused
	default:
		return false
	}
}

// sweep runs the presence tick: timeout-based status transitions, then
// abandonment scheduling and expiry.
func (a *Actor) sweep(now time.Time) {
	if a.meta.Status != model.SessionStatusInProgress && a.meta.Status != model.SessionStatusPaused {
		return
	}
	for _, cp := range sweepPresence(a.participants, now, a.cfg.IdleThreshold, a.cfg.DisconnectThreshold) {
		p := cp
		if err := a.persist(func(ctx context.Context) error {
			return a.store.SaveParticipant(ctx, p)
		}); err != nil {
			a.log.Error("presence transition not persisted, skipped", zap.String("participant_id", p.ID), zap.Error(err))
			continue
		}
		a.participants[p.ID] = p
		a.broadcast.Publish(a.id, &model.Event{
			Type:      model.EventPresenceChanged,
			SessionID: a.id,
			Payload:   model.PresenceChangedPayload{Participant: p},
		})
		a.log.Info("presence changed",
			zap.String("participant_id", p.ID),
			zap.String("status", string(p.Status)))
	}
	a.maybeScheduleAbandon(now)
	if a.abandonDeadline != nil && !now.Before(*a.abandonDeadline) {
		if err := a.transition(model.SessionStatusAbandoned, "abandonment grace period elapsed"); err != nil {
			a.log.Error("auto-abandon failed", zap.Error(err))
		}
	}
}

// maybeScheduleAbandon starts the grace timer when the owner is gone
// (left or disconnected) and no other active participant exists. Any
// join or heartbeat that re-establishes an active participant clears it.
func (a *Actor) maybeScheduleAbandon(now time.Time) {
	if a.abandonDeadline != nil {
		return
	}
	if a.meta.Status != model.SessionStatusInProgress && a.meta.Status != model.SessionStatusPaused {
		return
	}
	if !ownerGone(a.participants, a.meta.OwnerID) {
		return
	}
	if hasActiveOther(a.participants, a.meta.OwnerID) {
		return
	}
	deadline := now.Add(a.cfg.AbandonGrace)
	a.abandonDeadline = &deadline
	a.log.Warn("abandonment grace timer started", zap.Time("deadline", deadline))
}

// ownerGone reports whether the owner has no active or idle participant.
func ownerGone(participants map[string]*model.Participant, ownerID string) bool {
	for _, p := range participants {
		if p.UserID == ownerID &&
			(p.Status == model.ParticipantStatusActive || p.Status == model.ParticipantStatusIdle) {
			return false
		}
	}
	return true
}

// memberCount counts participants that have not left.
func (a *Actor) memberCount() int {
	n := 0
	for _, p := range a.participants {
		if p.Status != model.ParticipantStatusLeft {
			n++
		}
	}
	return n
}

// snapshot builds the API view of current state.
func (a *Actor) snapshot() *model.SessionSnapshot {
	snap := &model.SessionSnapshot{
		ID:               a.id,
		Status:           a.meta.Status,
		WorkoutType:      a.meta.WorkoutType,
		ParticipantCount: a.memberCount(),
		CurrentActivity:  a.currentActivity(),
	}
	for _, p := range a.participants {
		if p.Status == model.ParticipantStatusLeft {
			continue
		}
		snap.Participants = append(snap.Participants, *p)
	}
	sort.Slice(snap.Participants, func(i, j int) bool {
		return snap.Participants[i].JoinedAt.Before(snap.Participants[j].JoinedAt)
	})
	return snap
}

// currentActivity is the first planned activity the owner has not yet
// completed or skipped.
func (a *Actor) currentActivity() string {
	if len(a.meta.Activities) == 0 {
		return ""
	}
	var ownerPID string
	for _, p := range a.participants {
		if p.UserID == a.meta.OwnerID && p.Status != model.ParticipantStatusLeft {
			ownerPID = p.ID
			break
		}
	}
	activities := make([]model.PlannedActivity, len(a.meta.Activities))
	copy(activities, a.meta.Activities)
	sort.Slice(activities, func(i, j int) bool { return activities[i].OrderIndex < activities[j].OrderIndex })
	for _, pa := range activities {
		ap := a.progress[progressKey(ownerPID, pa.ID)]
		if ap == nil || (ap.Status != model.ActivityStatusCompleted && ap.Status != model.ActivityStatusSkipped) {
			return pa.Name
		}
	}
	return activities[len(activities)-1].Name
}

func (a *Actor) publishAsync(what string, fn func(ctx context.Context) error) {
	if a.bus == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.log.Warn("event bus publish failed", zap.String("event", what), zap.Error(err))
		}
	}()
}
