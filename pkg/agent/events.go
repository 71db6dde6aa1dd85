package agent

// Event is one element of the reasoning trace streamed to clients. Step is
// the 1-based iteration that produced the event, zero for run-level events.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	Step int         `json:"step,omitempty"`
	Meta interface{} `json:"meta,omitempty"`
}

// Event types in emission order within a run. done is always the last
// non-error event; at most one error event is emitted and it is terminal.
const (
	EventStart            = "start"
	EventIteration        = "iteration"
	EventThinkingStart    = "thinking_start"
	EventThinkingEnd      = "thinking_end"
	EventAction           = "action"
	EventObservation      = "observation"
	EventReflecting       = "reflecting"
	EventReflectionResult = "reflection_result"
	EventAnswerStart      = "answer_start"
	EventAnswerToken      = "answer_token"
	EventAnswer           = "answer"
	EventMeta             = "meta"
	EventDone             = "done"
	EventError            = "error"
)

// Sink receives events in emission order. Returning a non-nil error aborts
// the run; the loop stops emitting and hands the error back to the caller.
type Sink func(Event) error
