// Package hub fans broadcast events out to live-channel subscribers.
// The actor core only sees the Publish method, so it can be tested with
// an in-memory subscriber instead of a WebSocket connection.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/psds-microservice/live-workout-service/internal/model"
	"go.uber.org/zap"
)

// Subscriber receives serialized broadcast frames for one session.
type Subscriber interface {
	// Push delivers a frame without blocking; returns false when the
	// subscriber's buffer is full and the frame was dropped.
	Push(data []byte) bool
	// Close releases the subscriber's resources. Idempotent.
	Close()
}

// Hub tracks subscribers per session and broadcasts events in the order
// they are published by the owning session actor.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[Subscriber]struct{} // sessionID -> set of subscribers
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// New creates a hub. Buffer sizes apply to WebSocket upgrades.
func New(readBufferSize, writeBufferSize int, log *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[Subscriber]struct{}),
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			// Allow all origins for dev; in prod set CheckOrigin.
		},
	}
}

// Upgrader returns the WebSocket upgrader for HTTP handlers.
func (h *Hub) Upgrader() *websocket.Upgrader {
	return &h.upgrader
}

// Register adds a subscriber to a session and returns a cleanup function.
func (h *Hub) Register(sessionID string, sub Subscriber) func() {
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[Subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	h.log.Info("subscriber registered", zap.String("session_id", sessionID))

	return func() {
		h.unregister(sessionID, sub)
	}
}

func (h *Hub) unregister(sessionID string, sub Subscriber) {
	h.mu.Lock()
	if m, ok := h.subs[sessionID]; ok {
		delete(m, sub)
		if len(m) == 0 {
			delete(h.subs, sessionID)
		}
	}
	h.mu.Unlock()
	sub.Close()
	h.log.Info("subscriber unregistered", zap.String("session_id", sessionID))
}

// Publish serializes the event and pushes it to every subscriber of the
// session. Called synchronously from the actor loop, which is what keeps
// delivery order equal to command application order.
func (h *Hub) Publish(sessionID string, evt *model.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("event marshal failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	h.mu.RLock()
	m, ok := h.subs[sessionID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// Copy so we don't hold the lock while pushing.
	subs := make([]Subscriber, 0, len(m))
	for s := range m {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if !s.Push(data) {
			h.log.Warn("subscriber buffer full, frame dropped",
				zap.String("session_id", sessionID),
				zap.String("event", string(evt.Type)))
		}
	}
}

// CloseSession removes and closes every subscriber of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	m, ok := h.subs[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sessionID)
	h.mu.Unlock()

	for s := range m {
		s.Close()
	}
	h.log.Info("session subscribers closed", zap.String("session_id", sessionID))
}

// SubscriberCount returns the number of subscribers in a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
