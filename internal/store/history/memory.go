package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zooconnect/ambassador-chat/internal/model/chat"
)

// MemoryStore implements Store with mutex-guarded maps. It is the reference
// implementation of the contract and the default backend when no database
// URL is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	turns    map[string][]chat.Turn
}

// NewMemoryStore bootstraps an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		turns:    make(map[string][]chat.Turn),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session chat.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return chat.ErrDuplicateID
	}
	s.sessions[session.ID] = session
	s.turns[session.ID] = make([]chat.Turn, 0, 16)
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return session, nil
}

func (s *MemoryStore) TouchSession(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.ErrSessionNotFound
	}
	if at.After(session.LastActivityAt) {
		session.LastActivityAt = at
		s.sessions[sessionID] = session
	}
	return nil
}

func (s *MemoryStore) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.ErrSessionNotFound
	}
	session.Status = chat.SessionClosed
	s.sessions[sessionID] = session
	return nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, t chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[t.SessionID]; !ok {
		return chat.ErrSessionNotFound
	}

	turns := s.turns[t.SessionID]
	idx := sort.Search(len(turns), func(i int) bool { return turns[i].Seq >= t.Seq })
	if idx < len(turns) && turns[idx].Seq == t.Seq {
		return chat.ErrDuplicateTurn
	}

	turns = append(turns, chat.Turn{})
	copy(turns[idx+1:], turns[idx:])
	turns[idx] = t
	s.turns[t.SessionID] = turns
	return nil
}

func (s *MemoryStore) LastTurnSeq(_ context.Context, sessionID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return 0, chat.ErrSessionNotFound
	}
	turns := s.turns[sessionID]
	if len(turns) == 0 {
		return 0, nil
	}
	return turns[len(turns)-1].Seq, nil
}

func (s *MemoryStore) TurnsBySession(_ context.Context, sessionID string, p Page) ([]chat.Turn, error) {
	p = p.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, chat.ErrSessionNotFound
	}

	turns := s.turns[sessionID]
	if p.Offset >= len(turns) {
		return []chat.Turn{}, nil
	}
	end := p.Offset + p.Limit
	if end > len(turns) {
		end = len(turns)
	}
	page := make([]chat.Turn, end-p.Offset)
	copy(page, turns[p.Offset:end])
	return page, nil
}

func (s *MemoryStore) RecentTurns(_ context.Context, sessionID string, n int) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, chat.ErrSessionNotFound
	}

	turns := s.turns[sessionID]
	start := 0
	if n > 0 && len(turns) > n {
		start = len(turns) - n
	}
	recent := make([]chat.Turn, len(turns)-start)
	copy(recent, turns[start:])
	return recent, nil
}

func (s *MemoryStore) SessionsByUser(ctx context.Context, userID string, f Filter) ([]chat.SessionSummary, error) {
	return s.listSessions(func(sess chat.Session) bool { return sess.UserID == userID }, f), nil
}

func (s *MemoryStore) SessionsByGuardian(ctx context.Context, userIDs []string, f Filter) ([]chat.SessionSummary, error) {
	wards := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		wards[id] = struct{}{}
	}
	return s.listSessions(func(sess chat.Session) bool {
		_, ok := wards[sess.UserID]
		return ok
	}, f), nil
}

func (s *MemoryStore) AllSessions(ctx context.Context, f Filter) ([]chat.SessionSummary, error) {
	return s.listSessions(func(chat.Session) bool { return true }, f), nil
}

func (s *MemoryStore) listSessions(match func(chat.Session) bool, f Filter) []chat.SessionSummary {
	p := f.Page.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]chat.SessionSummary, 0)
	for id, sess := range s.sessions {
		if !match(sess) || !f.matches(sess) {
			continue
		}
		matched = append(matched, s.summarize(sess, s.turns[id]))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].LastActivityAt.Equal(matched[j].LastActivityAt) {
			return matched[i].LastActivityAt.After(matched[j].LastActivityAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if p.Offset >= len(matched) {
		return []chat.SessionSummary{}
	}
	end := p.Offset + p.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[p.Offset:end]
}

func (s *MemoryStore) summarize(sess chat.Session, turns []chat.Turn) chat.SessionSummary {
	summary := chat.SessionSummary{Session: sess, TurnCount: len(turns)}
	if len(turns) > 0 {
		first := turns[0].CreatedAt
		last := turns[len(turns)-1].CreatedAt
		summary.FirstTurnAt = &first
		summary.LastTurnAt = &last
	}
	return summary
}

func (s *MemoryStore) CloseIdleSessions(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	for id, sess := range s.sessions {
		if sess.Status == chat.SessionActive && sess.IdleSince(cutoff) {
			sess.Status = chat.SessionClosed
			s.sessions[id] = sess
			closed++
		}
	}
	return closed, nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, sess := range s.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.turns, id)
			deleted++
		}
	}
	return deleted, nil
}
