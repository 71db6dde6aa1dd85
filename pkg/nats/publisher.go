package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"agentic-rag-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher emits lifecycle events onto the JetStream event stream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher creates a new NATS publisher and ensures the event stream
// exists. Stream creation failure is logged but not fatal: the server must
// come up even when NATS is still starting.
func NewPublisher(url string) (*Publisher, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// LimitsPolicy lets every durable consumer see every event; a work
	// queue would hand each event to exactly one of them.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    eventRetention,
	})
	if err != nil {
		log.Printf("Warn: Failed to ensure stream %q: %v", StreamName, err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends an event's fields to NATS. Only the fields travel on the
// wire; the event code rides in the subject suffix so consumers can filter
// without decoding.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal event fields: %w", err)
	}

	subject := subjectPrefix + event.Code

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}

	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
