package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafkago.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// KafkaForwarder relays bus events to a kafka topic keyed by aggregate id.
type KafkaForwarder struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewKafkaForwarder(writer MessageWriter, logger *slog.Logger) *KafkaForwarder {
	return &KafkaForwarder{writer: writer, logger: logger}
}

// Register subscribes the forwarder to every domain event type.
func (f *KafkaForwarder) Register(bus *EventBus) {
	for _, t := range AllTypes {
		bus.Subscribe(t, f.Handle)
	}
}

func (f *KafkaForwarder) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.AggregateID()),
		Value: payload,
		Time:  event.OccurredAt(),
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
			{Key: "event_id", Value: []byte(event.EventID())},
		},
	}

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("forward event %s: %w", event.EventID(), err)
	}

	f.logger.Debug("event forwarded",
		"event_type", event.EventType(),
		"event_id", event.EventID())
	return nil
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
