package chat

import "time"

// Role tags who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable message within a session. Turns are identified by
// (SessionID, Seq); Seq increases strictly from 1 within a session.
type Turn struct {
	SessionID  string    `json:"sessionId"`
	Seq        int64     `json:"seq"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	TokenCount *int      `json:"tokenCount,omitempty"`
	LatencyMs  *int64    `json:"latencyMs,omitempty"`
}
