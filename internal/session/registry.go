package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/live-workout-service/internal/common/clock"
	"github.com/psds-microservice/live-workout-service/internal/eventbus"
	"github.com/psds-microservice/live-workout-service/internal/model"
	"github.com/psds-microservice/live-workout-service/internal/store"
	"go.uber.org/zap"
)

// Registry maps session ids to their actor instance: exactly one logical
// actor per session id at any time. Actors are created on first access,
// rehydrated from the store on cold start, and evicted after a retention
// window once the session is terminal.
type Registry struct {
	cfg       Config
	store     store.Store
	broadcast Broadcaster
	bus       eventbus.Publisher
	clk       clock.Clock
	log       *zap.Logger

	mu     sync.Mutex
	actors map[string]*Actor
	done   chan struct{}
	once   sync.Once
}

// NewRegistry creates a registry and starts its eviction janitor.
func NewRegistry(cfg Config, st store.Store, b Broadcaster, bus eventbus.Publisher, clk clock.Clock, log *zap.Logger) *Registry {
	r := &Registry{
		cfg:       cfg,
		store:     st,
		broadcast: b,
		bus:       bus,
		clk:       clk,
		log:       log,
		actors:    make(map[string]*Actor),
		done:      make(chan struct{}),
	}
	go r.evictLoop()
	return r
}

// Create mints a fresh session id and spawns its actor in the pending
// state. The session is not persisted until a StartCommand succeeds.
func (r *Registry) Create() *Actor {
	id := uuid.NewString()
	a := newActor(id, nil, r.cfg, r.store, r.broadcast, r.bus, r.clk, r.log)
	a.start()
	r.mu.Lock()
	r.actors[id] = a
	r.mu.Unlock()
	return a
}

// Get returns the actor owning the session id, rehydrating it from the
// store if no live instance exists. Returns errs.ErrSessionNotFound for
// ids that were never persisted.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Actor, error) {
	r.mu.Lock()
	if a, ok := r.actors[sessionID]; ok {
		r.mu.Unlock()
		return a, nil
	}
	r.mu.Unlock()

	state, err := r.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have rehydrated while we were reading.
	if a, ok := r.actors[sessionID]; ok {
		return a, nil
	}
	a := newActor(sessionID, state, r.cfg, r.store, r.broadcast, r.bus, r.clk, r.log)
	a.start()
	r.actors[sessionID] = a
	r.log.Info("session actor rehydrated", zap.String("session_id", sessionID))
	return a, nil
}

func (r *Registry) evictLoop() {
	interval := r.cfg.Retention / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evictTerminal()
		case <-r.done:
			return
		}
	}
}

func (r *Registry) evictTerminal() {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.actors {
		if since, terminal := a.terminalSince(); terminal && now.Sub(since) >= r.cfg.Retention {
			a.stop()
			delete(r.actors, id)
			r.log.Info("terminal session actor evicted", zap.String("session_id", id))
			continue
		}
		// A session that was created but never successfully started has
		// nothing persisted and nothing to keep alive.
		if a.Status() == model.SessionStatusPending && now.Sub(a.created) >= r.cfg.Retention {
			a.stop()
			delete(r.actors, id)
			r.log.Info("stale pending session actor evicted", zap.String("session_id", id))
		}
	}
}

// Count returns the number of live actors.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Shutdown stops the janitor and every live actor.
func (r *Registry) Shutdown() {
	r.once.Do(func() {
		close(r.done)
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.actors {
		a.stop()
		delete(r.actors, id)
	}
}
