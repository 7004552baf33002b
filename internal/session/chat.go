package session

import "github.com/psds-microservice/live-workout-service/internal/model"

// transcript is the in-memory chat relay: an append-only log whose order
// equals the order messages were accepted by the actor.
type transcript struct {
	messages []*model.ChatMessage
}

func (t *transcript) append(msg *model.ChatMessage) {
	t.messages = append(t.messages, msg)
}

func (t *transcript) len() int {
	return len(t.messages)
}
