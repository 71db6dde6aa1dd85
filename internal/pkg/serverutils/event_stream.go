package serverutils

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

var ErrStreamClosed = errors.New("event stream closed")

// StreamEvent is one server-sent event. The wire format is a single
// `data: <json>` line followed by a blank line.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	Step int         `json:"step,omitempty"`
	Meta interface{} `json:"meta,omitempty"`
}

// EventStream serialises StreamEvents onto one SSE response. Send is safe
// for concurrent use. A write failure or an idle period longer than the
// configured timeout cancels the producer context; the producer is expected
// to stop on ctx.Done.
type EventStream struct {
	mu     sync.Mutex
	w      *bufio.Writer
	cancel context.CancelFunc
	idle   *time.Timer
	idleD  time.Duration
	closed bool
}

func newEventStream(w *bufio.Writer, cancel context.CancelFunc, idle time.Duration) *EventStream {
	s := &EventStream{
		w:      w,
		cancel: cancel,
		idleD:  idle,
	}
	if idle > 0 {
		s.idle = time.AfterFunc(idle, cancel)
	}
	return s
}

func (s *EventStream) Send(event StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.closeLocked()
		return err
	}
	if err := s.w.Flush(); err != nil {
		// The client went away; stop the producer.
		s.closeLocked()
		return err
	}
	if s.idle != nil {
		s.idle.Reset(s.idleD)
	}
	return nil
}

func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *EventStream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	if s.idle != nil {
		s.idle.Stop()
	}
	s.cancel()
}

// StreamSSE sets the SSE headers and hands the response body to producer.
// The producer runs after the handler returns, on fasthttp's stream writer
// goroutine, so it must not touch the fiber context. Its ctx is cancelled
// when the client disconnects or the stream idles out.
func StreamSSE(ctx *fiber.Ctx, idleTimeout time.Duration, producer func(ctx context.Context, stream *EventStream)) error {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		streamCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stream := newEventStream(w, cancel, idleTimeout)
		defer stream.Close()

		producer(streamCtx, stream)
	}))
	return nil
}
