package chat

// StreamEventType discriminates the events emitted while a turn runs.
type StreamEventType string

const (
	EventToken    StreamEventType = "token"
	EventComplete StreamEventType = "complete"
	EventError    StreamEventType = "error"
)

// Error reason codes surfaced on EventError. Callers get a machine-readable
// code, never a raw upstream error.
const (
	ReasonBackendFailed   = "COMPLETION_BACKEND_FAILED"
	ReasonBackendTimeout  = "COMPLETION_BACKEND_TIMEOUT"
	ReasonRateLimited     = "COMPLETION_RATE_LIMITED"
	ReasonCanceled        = "STREAM_CANCELED"
	ReasonPersistenceFail = "HISTORY_WRITE_FAILED"
)

// StreamEvent is one item of the event sequence produced by a running turn.
// A stream carries zero or more token events terminated by exactly one
// complete or error event.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	SessionID string          `json:"sessionId"`
	Content   string          `json:"content,omitempty"`
	TurnSeq   int64           `json:"turnSeq,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}
