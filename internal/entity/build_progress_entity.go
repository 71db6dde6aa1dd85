package entity

// Build statuses reported by the ingestion pipeline.
const (
	BuildStatusIdle      = "idle"
	BuildStatusRunning   = "running"
	BuildStatusCompleted = "completed"
	BuildStatusError     = "error"
)

// BuildProgress is the snapshot of one index build. Progress counts chunks,
// not files. 0 <= Progress <= Total holds once Total is set.
type BuildProgress struct {
	Processing  bool   `json:"processing"`
	Progress    int    `json:"progress"`
	Total       int    `json:"total"`
	CurrentFile string `json:"current_file"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}
