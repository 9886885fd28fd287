package chat

import "time"

// SessionStatus tracks whether a session still accepts turns.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Session is one conversation between a user and a persona.
type Session struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	PersonaID      string        `json:"personaId"`
	StartedAt      time.Time     `json:"startedAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	Status         SessionStatus `json:"status"`
}

// Open reports whether the session can still accept new turns.
func (s Session) Open() bool {
	return s.Status == SessionActive
}

// IdleSince reports whether the session has seen no activity since the cutoff.
func (s Session) IdleSince(cutoff time.Time) bool {
	return s.LastActivityAt.Before(cutoff)
}

// SessionSummary is the denormalized list-view row for history browsing.
type SessionSummary struct {
	Session
	TurnCount   int        `json:"turnCount"`
	FirstTurnAt *time.Time `json:"firstTurnAt,omitempty"`
	LastTurnAt  *time.Time `json:"lastTurnAt,omitempty"`
}
