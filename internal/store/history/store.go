// Package history is the append-only persistence layer for sessions and
// turns. Two implementations exist: MemoryStore (the contract reference,
// used in tests and when no database is configured) and PostgresStore.
package history

import (
	"context"
	"time"

	"github.com/zooconnect/ambassador-chat/internal/model/chat"
)

// Page bounds a range query.
type Page struct {
	Limit  int
	Offset int
}

const (
	// DefaultPageSize applies when a caller does not ask for a limit.
	DefaultPageSize = 50
	// MaxPageSize caps every page, including staff/admin cross-user listings.
	MaxPageSize = 200
)

// Normalize clamps the page into [1, MaxPageSize] with a non-negative offset.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Filter narrows session listings. Zero time bounds mean unbounded; the date
// range applies to the session's last activity time.
type Filter struct {
	PersonaID string
	From      time.Time
	To        time.Time
	Page      Page
}

func (f Filter) matches(s chat.Session) bool {
	if f.PersonaID != "" && s.PersonaID != f.PersonaID {
		return false
	}
	if !f.From.IsZero() && s.LastActivityAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.LastActivityAt.After(f.To) {
		return false
	}
	return true
}

// Store is the logical history contract. All turn writes are single-row
// appends keyed by (sessionID, seq); no cross-row transactions are needed.
type Store interface {
	CreateSession(ctx context.Context, s chat.Session) error
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	// TouchSession advances LastActivityAt; earlier timestamps are ignored so
	// the field stays monotonically non-decreasing.
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	// CloseSession marks the session closed. Idempotent.
	CloseSession(ctx context.Context, sessionID string) error

	// AppendTurn writes one immutable turn. A turn that already exists fails
	// with chat.ErrDuplicateTurn; a missing session with chat.ErrSessionNotFound.
	AppendTurn(ctx context.Context, t chat.Turn) error
	// LastTurnSeq returns the highest seq in the session, 0 when empty.
	LastTurnSeq(ctx context.Context, sessionID string) (int64, error)
	// TurnsBySession returns one page of turns in ascending seq order.
	TurnsBySession(ctx context.Context, sessionID string, p Page) ([]chat.Turn, error)
	// RecentTurns returns the newest n turns in chronological order.
	RecentTurns(ctx context.Context, sessionID string, n int) ([]chat.Turn, error)

	// SessionsByUser lists one user's sessions, most recent activity first.
	SessionsByUser(ctx context.Context, userID string, f Filter) ([]chat.SessionSummary, error)
	// SessionsByGuardian lists sessions across a guardian's children.
	SessionsByGuardian(ctx context.Context, userIDs []string, f Filter) ([]chat.SessionSummary, error)
	// AllSessions lists sessions across every user (staff/admin browsing).
	AllSessions(ctx context.Context, f Filter) ([]chat.SessionSummary, error)

	// CloseIdleSessions closes active sessions idle since before the cutoff.
	CloseIdleSessions(ctx context.Context, cutoff time.Time) (int, error)
	// DeleteOlderThan removes sessions (and their turns) whose last activity
	// precedes the cutoff. The retention sweep is the sole deletion path.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
