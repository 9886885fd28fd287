package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zooconnect/ambassador-chat/internal/model/chat"
)

const pgForeignKeyViolation = "23503"

// PostgresStore implements Store on a pgx connection pool. All queries are
// single-statement; the (session_id, seq) primary key provides the
// idempotency guard for AppendTurn.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to the given database URL and verifies it
// with a ping.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateSession(ctx context.Context, session chat.Session) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, persona_id, started_at, last_activity_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		session.ID, session.UserID, session.PersonaID,
		session.StartedAt, session.LastActivityAt, string(session.Status),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrDuplicateID
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, persona_id, started_at, last_activity_at, status
		FROM sessions WHERE id = $1`, sessionID)

	var session chat.Session
	var status string
	err := row.Scan(&session.ID, &session.UserID, &session.PersonaID,
		&session.StartedAt, &session.LastActivityAt, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.Status = chat.SessionStatus(status)
	return session, nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET last_activity_at = GREATEST(last_activity_at, $2)
		WHERE id = $1`, sessionID, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) CloseSession(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET status = 'closed' WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, t chat.Turn) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO turns (session_id, seq, role, content, created_at, token_count, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, seq) DO NOTHING`,
		t.SessionID, t.Seq, string(t.Role), t.Content, t.CreatedAt, t.TokenCount, t.LatencyMs,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return chat.ErrSessionNotFound
		}
		return fmt.Errorf("insert turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrDuplicateTurn
	}
	return nil
}

func (s *PostgresStore) LastTurnSeq(ctx context.Context, sessionID string) (int64, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return 0, err
	}

	var seq int64
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM turns WHERE session_id = $1`, sessionID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("last turn seq: %w", err)
	}
	return seq, nil
}

func (s *PostgresStore) TurnsBySession(ctx context.Context, sessionID string, p Page) ([]chat.Turn, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	p = p.Normalize()
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, seq, role, content, created_at, token_count, latency_ms
		FROM turns WHERE session_id = $1
		ORDER BY seq ASC LIMIT $2 OFFSET $3`,
		sessionID, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]chat.Turn, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT session_id, seq, role, content, created_at, token_count, latency_ms
		FROM (
			SELECT * FROM turns WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
		) newest ORDER BY seq ASC`,
		sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows pgx.Rows) ([]chat.Turn, error) {
	turns := make([]chat.Turn, 0)
	for rows.Next() {
		var t chat.Turn
		var role string
		if err := rows.Scan(&t.SessionID, &t.Seq, &role, &t.Content,
			&t.CreatedAt, &t.TokenCount, &t.LatencyMs); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = chat.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) SessionsByUser(ctx context.Context, userID string, f Filter) ([]chat.SessionSummary, error) {
	return s.listSessions(ctx, "s.user_id = $1", []any{userID}, f)
}

func (s *PostgresStore) SessionsByGuardian(ctx context.Context, userIDs []string, f Filter) ([]chat.SessionSummary, error) {
	if len(userIDs) == 0 {
		return []chat.SessionSummary{}, nil
	}
	return s.listSessions(ctx, "s.user_id = ANY($1)", []any{userIDs}, f)
}

func (s *PostgresStore) AllSessions(ctx context.Context, f Filter) ([]chat.SessionSummary, error) {
	return s.listSessions(ctx, "", nil, f)
}

func (s *PostgresStore) listSessions(ctx context.Context, where string, args []any, f Filter) ([]chat.SessionSummary, error) {
	p := f.Page.Normalize()

	conds := make([]string, 0, 4)
	if where != "" {
		conds = append(conds, where)
	}
	if f.PersonaID != "" {
		args = append(args, f.PersonaID)
		conds = append(conds, fmt.Sprintf("s.persona_id = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("s.last_activity_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("s.last_activity_at <= $%d", len(args)))
	}

	query := `
		SELECT s.id, s.user_id, s.persona_id, s.started_at, s.last_activity_at, s.status,
		       COUNT(t.seq), MIN(t.created_at), MAX(t.created_at)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, p.Limit, p.Offset)
	query += fmt.Sprintf(`
		GROUP BY s.id
		ORDER BY s.last_activity_at DESC, s.id ASC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]chat.SessionSummary, 0)
	for rows.Next() {
		var sum chat.SessionSummary
		var status string
		if err := rows.Scan(&sum.ID, &sum.UserID, &sum.PersonaID, &sum.StartedAt,
			&sum.LastActivityAt, &status, &sum.TurnCount,
			&sum.FirstTurnAt, &sum.LastTurnAt); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		sum.Status = chat.SessionStatus(status)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return summaries, nil
}

func (s *PostgresStore) CloseIdleSessions(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET status = 'closed'
		WHERE status = 'active' AND last_activity_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("close idle sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE last_activity_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
