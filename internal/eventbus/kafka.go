package eventbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
)

const (
	eventTypeWorkoutStarted   = "WorkoutStarted"
	eventTypeWorkoutCompleted = "WorkoutCompleted"
)

// KafkaPublisher implements Publisher on a single topic, keyed by session
// id so all events of one session land in the same partition.
type KafkaPublisher struct {
	topic  string
	mu     sync.Mutex
	writer *kafka.Writer
}

// NewKafka creates a KafkaPublisher for the given brokers and topic.
func NewKafka(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// PublishWorkoutStarted implements Publisher.
func (p *KafkaPublisher) PublishWorkoutStarted(ctx context.Context, evt WorkoutStarted) error {
	return p.publish(ctx, eventTypeWorkoutStarted, evt.SessionID, evt)
}

// PublishWorkoutCompleted implements Publisher.
func (p *KafkaPublisher) PublishWorkoutCompleted(ctx context.Context, evt WorkoutCompleted) error {
	return p.publish(ctx, eventTypeWorkoutCompleted, evt.SessionID, evt)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.WriteMessages(ctx, msg)
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Close()
}
