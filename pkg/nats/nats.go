// Package nats publishes and consumes the service's lifecycle events over
// JetStream. Publishers write payload-only messages; the event type rides
// in the subject suffix ("events.BUILD_COMPLETED").
package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream carrying all lifecycle events.
	StreamName = "EVENTS"

	// subjectPrefix namespaces event subjects under the stream.
	subjectPrefix = "events."

	// eventRetention bounds how long events stay replayable for late or
	// restarted observers.
	eventRetention = 24 * time.Hour
)

// connect dials NATS with retry so the service tolerates a bus that starts
// after it does.
func connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return nc, js, nil
}
