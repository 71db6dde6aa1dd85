package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"agentic-rag-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one delivered event. A returned error triggers
// redelivery.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber consumes lifecycle events from the JetStream event stream.
type Subscriber struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewSubscriber creates a new NATS subscriber on its own connection.
func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// Subscribe registers a handler for a subject pattern under the event
// stream. The durable consumer survives restarts, so no events are lost
// between runs.
func (s *Subscriber) Subscribe(subject string, durableName string, handler EventHandler) error {
	ctx := context.Background()

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	_, err = consumer.Consume(func(msg jetstream.Msg) {
		var fields map[string]interface{}
		if err := json.Unmarshal(msg.Data(), &fields); err != nil {
			log.Printf("Error unmarshalling event data: %v", err)
			msg.Nak()
			return
		}

		// The publisher writes the fields only; the event code rides in
		// the subject suffix.
		event := events.Event{
			Code:   subjectEventType(msg.Subject()),
			Fields: fields,
		}

		if err := handler(context.Background(), event); err != nil {
			log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
			msg.Nak() // Retry
			return
		}

		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Printf("Subscribed to %s with durable %s", subject, durableName)
	return nil
}

// subjectEventType strips the stream prefix: "events.BUILD_COMPLETED"
// becomes "BUILD_COMPLETED".
func subjectEventType(subject string) string {
	if len(subject) > len(subjectPrefix) && subject[:len(subjectPrefix)] == subjectPrefix {
		return subject[len(subjectPrefix):]
	}
	return subject
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
