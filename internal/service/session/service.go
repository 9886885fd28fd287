// Package session owns session lifecycle: resolution, creation, the context
// window for prompt building, and closing.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zooconnect/ambassador-chat/internal/model/chat"
	"github.com/zooconnect/ambassador-chat/internal/store/history"
)

// Service manages conversation sessions on top of the history store.
type Service struct {
	store       history.Store
	windowSize  int
	idleTimeout time.Duration
	now         func() time.Time
}

// New wires the session manager. windowSize is the default context window
// length; idleTimeout is how long a session may sit inactive before a resolve
// treats it as expired.
func New(store history.Store, windowSize int, idleTimeout time.Duration) *Service {
	return &Service{
		store:       store,
		windowSize:  windowSize,
		idleTimeout: idleTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ResolveOrCreate returns the caller's existing session when the given id is
// live and owned by them; otherwise it creates a fresh session. A session
// owned by a different user fails with chat.ErrNotOwned. Closed or
// idle-expired sessions are never reused: their history stays readable but a
// new session is started in their place. A persona switch also starts a new
// session, since a session binds one user to one persona.
func (s *Service) ResolveOrCreate(ctx context.Context, userID, personaID, existingID string) (chat.Session, error) {
	if existingID != "" {
		existing, err := s.store.GetSession(ctx, existingID)
		switch {
		case errors.Is(err, chat.ErrSessionNotFound):
			// fall through to create
		case err != nil:
			return chat.Session{}, fmt.Errorf("resolve session: %w", err)
		case existing.UserID != userID:
			return chat.Session{}, chat.ErrNotOwned
		case existing.Open() && !s.expired(existing) && existing.PersonaID == personaID:
			if err := s.store.TouchSession(ctx, existing.ID, s.now()); err != nil {
				return chat.Session{}, fmt.Errorf("touch session: %w", err)
			}
			existing.LastActivityAt = s.now()
			return existing, nil
		default:
			// Closed, expired, or rebound to another persona: retire it.
			if existing.Open() {
				if err := s.store.CloseSession(ctx, existing.ID); err != nil {
					return chat.Session{}, fmt.Errorf("close stale session: %w", err)
				}
			}
		}
	}

	return s.create(ctx, userID, personaID)
}

func (s *Service) create(ctx context.Context, userID, personaID string) (chat.Session, error) {
	now := s.now()
	session := chat.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		PersonaID:      personaID,
		StartedAt:      now,
		LastActivityAt: now,
		Status:         chat.SessionActive,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *Service) expired(sess chat.Session) bool {
	if s.idleTimeout <= 0 {
		return false
	}
	return sess.IdleSince(s.now().Add(-s.idleTimeout))
}

// Get retrieves a session by id.
func (s *Service) Get(ctx context.Context, sessionID string) (chat.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// ContextWindow returns the most recent maxTurns turns in chronological
// order. maxTurns <= 0 uses the configured default. Every call re-reads the
// store, so a retried turn sees the current state.
func (s *Service) ContextWindow(ctx context.Context, sessionID string, maxTurns int) ([]chat.Turn, error) {
	if maxTurns <= 0 {
		maxTurns = s.windowSize
	}
	return s.store.RecentTurns(ctx, sessionID, maxTurns)
}

// Touch advances the session's last-activity time.
func (s *Service) Touch(ctx context.Context, sessionID string) error {
	return s.store.TouchSession(ctx, sessionID, s.now())
}

// Close marks the session closed. Idempotent.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	return s.store.CloseSession(ctx, sessionID)
}
