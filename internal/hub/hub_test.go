package hub

import (
	"encoding/json"
	"testing"

	"github.com/psds-microservice/live-workout-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chanSubscriber buffers frames like a real peer's send channel.
type chanSubscriber struct {
	frames [][]byte
	cap    int
	closed bool
}

func newChanSubscriber(capacity int) *chanSubscriber {
	return &chanSubscriber{cap: capacity}
}

func (s *chanSubscriber) Push(data []byte) bool {
	if len(s.frames) >= s.cap {
		return false
	}
	s.frames = append(s.frames, data)
	return true
}

func (s *chanSubscriber) Close() { s.closed = true }

func (s *chanSubscriber) eventTypes(t *testing.T) []model.EventType {
	t.Helper()
	var out []model.EventType
	for _, f := range s.frames {
		var evt model.Event
		require.NoError(t, json.Unmarshal(f, &evt))
		out = append(out, evt.Type)
	}
	return out
}

func stateEvent(sessionID string, status model.SessionStatus) *model.Event {
	return &model.Event{
		Type:      model.EventStateChanged,
		SessionID: sessionID,
		Payload:   model.StateChangedPayload{Status: status},
	}
}

func TestPublishFansOutInOrder(t *testing.T) {
	h := New(1024, 1024, zap.NewNop())
	a := newChanSubscriber(16)
	b := newChanSubscriber(16)
	h.Register("s1", a)
	h.Register("s1", b)

	h.Publish("s1", stateEvent("s1", model.SessionStatusInProgress))
	h.Publish("s1", &model.Event{
		Type:      model.EventChatPosted,
		SessionID: "s1",
		Payload:   model.ChatPostedPayload{Message: &model.ChatMessage{ID: "m1", Text: "hi"}},
	})

	want := []model.EventType{model.EventStateChanged, model.EventChatPosted}
	assert.Equal(t, want, a.eventTypes(t))
	assert.Equal(t, want, b.eventTypes(t))
}

func TestPublishIsScopedToSession(t *testing.T) {
	h := New(1024, 1024, zap.NewNop())
	a := newChanSubscriber(16)
	b := newChanSubscriber(16)
	h.Register("s1", a)
	h.Register("s2", b)

	h.Publish("s1", stateEvent("s1", model.SessionStatusPaused))

	assert.Len(t, a.frames, 1)
	assert.Empty(t, b.frames)
}

func TestUnregisterStopsDeliveryAndCloses(t *testing.T) {
	h := New(1024, 1024, zap.NewNop())
	a := newChanSubscriber(16)
	cleanup := h.Register("s1", a)

	cleanup()
	h.Publish("s1", stateEvent("s1", model.SessionStatusPaused))

	assert.Empty(t, a.frames)
	assert.True(t, a.closed)
	assert.Equal(t, 0, h.SubscriberCount("s1"))
}

func TestFullSubscriberDoesNotBlockOthers(t *testing.T) {
	h := New(1024, 1024, zap.NewNop())
	full := newChanSubscriber(0)
	ok := newChanSubscriber(16)
	h.Register("s1", full)
	h.Register("s1", ok)

	h.Publish("s1", stateEvent("s1", model.SessionStatusInProgress))

	assert.Empty(t, full.frames)
	assert.Len(t, ok.frames, 1)
}

func TestCloseSessionClosesAllSubscribers(t *testing.T) {
	h := New(1024, 1024, zap.NewNop())
	a := newChanSubscriber(16)
	b := newChanSubscriber(16)
	h.Register("s1", a)
	h.Register("s1", b)

	h.CloseSession("s1")

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, 0, h.SubscriberCount("s1"))

	// Publishing into a closed session is a no-op.
	h.Publish("s1", stateEvent("s1", model.SessionStatusCompleted))
	assert.Empty(t, a.frames)
}
