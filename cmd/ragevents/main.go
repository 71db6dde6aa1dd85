package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentic-rag-be/pkg/events"
	pktNats "agentic-rag-be/pkg/nats"

	"github.com/fatih/color"
)

const defaultNatsURL = "nats://localhost:4222"

// ragevents tails the lifecycle event stream. Useful while operating the
// service: build progress and conversation churn show up live.
func main() {
	natsURL := flag.String("nats", "", "NATS server URL (default NATS_URL env or "+defaultNatsURL+")")
	subject := flag.String("subject", "events.>", "subject filter under the EVENTS stream")
	durable := flag.String("durable", "ragevents-cli", "durable consumer name")
	flag.Parse()

	url := *natsURL
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if url == "" {
		url = defaultNatsURL
	}

	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		color.Red("Failed to connect to NATS at %s: %v", url, err)
		os.Exit(1)
	}
	defer sub.Close()

	if err := sub.Subscribe(*subject, *durable, printEvent); err != nil {
		color.Red("Failed to subscribe to %s: %v", *subject, err)
		os.Exit(1)
	}

	fmt.Printf("Listening for %s on %s (Ctrl+C to stop)\n", *subject, url)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	fmt.Println("\nBye.")
}

func printEvent(_ context.Context, event events.Event) error {
	stamp := time.Now().Format("15:04:05")

	var paint *color.Color
	switch event.Code {
	case events.TypeBuildCompleted:
		paint = color.New(color.FgGreen)
	case events.TypeBuildFailed:
		paint = color.New(color.FgRed)
	case events.TypeBuildStarted:
		paint = color.New(color.FgYellow)
	default:
		paint = color.New(color.FgCyan)
	}

	fields, err := json.Marshal(event.Fields)
	if err != nil {
		fields = []byte("{}")
	}
	paint.Printf("[%s] %-22s", stamp, event.Code)
	fmt.Printf(" %s\n", fields)
	return nil
}
