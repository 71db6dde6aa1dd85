package events

// Lifecycle event codes emitted on the bus.
const (
	TypeBuildStarted        = "BUILD_STARTED"
	TypeBuildCompleted      = "BUILD_COMPLETED"
	TypeBuildFailed         = "BUILD_FAILED"
	TypeConversationCreated = "CONVERSATION_CREATED"
	TypeConversationDeleted = "CONVERSATION_DELETED"
)

// Event is one lifecycle notification. Code names what happened and Fields
// carries the event specific details. Delivery time comes from the transport,
// so the envelope itself stays timestamp free.
type Event struct {
	Code   string
	Fields map[string]interface{}
}

// NewBuildStarted announces that an ingestion run began over the given
// number of files.
func NewBuildStarted(files int) Event {
	return Event{
		Code:   TypeBuildStarted,
		Fields: map[string]interface{}{"files": files},
	}
}

// NewBuildCompleted announces a finished ingestion run.
func NewBuildCompleted(files, chunks int) Event {
	return Event{
		Code:   TypeBuildCompleted,
		Fields: map[string]interface{}{"files": files, "chunks": chunks},
	}
}

// NewBuildFailed announces an ingestion run that stopped on an error.
func NewBuildFailed(reason string) Event {
	return Event{
		Code:   TypeBuildFailed,
		Fields: map[string]interface{}{"reason": reason},
	}
}

// NewConversationCreated announces a new conversation.
func NewConversationCreated(id string) Event {
	return Event{
		Code:   TypeConversationCreated,
		Fields: map[string]interface{}{"conversation_id": id},
	}
}

// NewConversationDeleted announces a removed conversation.
func NewConversationDeleted(id string) Event {
	return Event{
		Code:   TypeConversationDeleted,
		Fields: map[string]interface{}{"conversation_id": id},
	}
}
