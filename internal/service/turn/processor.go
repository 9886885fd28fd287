// Package turn orchestrates one conversation turn: durably record the user
// message, stream the assistant's reply token by token, then commit the
// finished assistant turn. The no-orphan rule holds throughout: a session
// never ends up with a persisted half of an assistant turn.
package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zooconnect/ambassador-chat/internal/model/chat"
	"github.com/zooconnect/ambassador-chat/internal/model/persona"
	"github.com/zooconnect/ambassador-chat/internal/service/completion"
	"github.com/zooconnect/ambassador-chat/internal/service/session"
	"github.com/zooconnect/ambassador-chat/internal/store/history"
)

// ErrPersonaNotFound surfaces an unknown persona id before any turn state is
// touched.
var ErrPersonaNotFound = errors.New("persona not found")

// persistTimeout bounds the final assistant-turn write, which runs detached
// from the caller's context once the backend has finished.
const persistTimeout = 10 * time.Second

// Processor runs turns. At most one turn may be in flight per session;
// concurrent attempts fail fast with chat.ErrSessionBusy.
type Processor struct {
	sessions *session.Service
	store    history.Store
	personas persona.Store
	backend  completion.Backend
	timeout  time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewProcessor wires the turn processor. timeout is the per-turn wall-clock
// bound on the completion backend.
func NewProcessor(sessions *session.Service, store history.Store, personas persona.Store, backend completion.Backend, timeout time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		sessions: sessions,
		store:    store,
		personas: personas,
		backend:  backend,
		timeout:  timeout,
		logger:   logger.With().Str("component", "turn").Logger(),
		inflight: make(map[string]struct{}),
	}
}

// RunTurn resolves the session, persists the user turn, and starts streaming
// the assistant's reply. Synchronous failures (unknown persona, foreign
// session, busy session, user-turn write failure) are returned as errors
// before any event is emitted; everything after that arrives on the event
// channel, which carries zero or more token events terminated by exactly one
// complete or error event.
func (p *Processor) RunTurn(ctx context.Context, userID, personaID, sessionID, message string) (chat.Session, <-chan chat.StreamEvent, error) {
	pers, ok := p.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, nil, ErrPersonaNotFound
	}

	sess, err := p.sessions.ResolveOrCreate(ctx, userID, personaID, sessionID)
	if err != nil {
		return chat.Session{}, nil, err
	}

	if !p.acquire(sess.ID) {
		return chat.Session{}, nil, chat.ErrSessionBusy
	}

	userSeq, err := p.persistUserTurn(ctx, sess.ID, message)
	if err != nil {
		p.release(sess.ID)
		return chat.Session{}, nil, err
	}

	// The context window is read after the user turn is durable; turns at or
	// past userSeq are excluded so the new message appears exactly once in
	// the prompt.
	window, err := p.sessions.ContextWindow(ctx, sess.ID, 0)
	if err != nil {
		p.release(sess.ID)
		return chat.Session{}, nil, fmt.Errorf("load context window: %w", err)
	}
	prompt := buildPrompt(pers, window, userSeq, message)

	events := make(chan chat.StreamEvent, 32)
	go p.streamTurn(ctx, sess, pers, prompt, userSeq, events)

	return sess, events, nil
}

func (p *Processor) persistUserTurn(ctx context.Context, sessionID, message string) (int64, error) {
	lastSeq, err := p.store.LastTurnSeq(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("last turn seq: %w", err)
	}

	userSeq := lastSeq + 1
	err = p.store.AppendTurn(ctx, chat.Turn{
		SessionID: sessionID,
		Seq:       userSeq,
		Role:      chat.RoleUser,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, chat.ErrDuplicateTurn) {
		return 0, fmt.Errorf("persist user turn: %w", err)
	}
	return userSeq, nil
}

func buildPrompt(pers persona.Persona, window []chat.Turn, userSeq int64, message string) completion.Prompt {
	historyMsgs := make([]*schema.Message, 0, len(window))
	for _, t := range window {
		if t.Seq >= userSeq {
			continue
		}
		switch t.Role {
		case chat.RoleUser:
			historyMsgs = append(historyMsgs, schema.UserMessage(t.Content))
		case chat.RoleAssistant:
			historyMsgs = append(historyMsgs, schema.AssistantMessage(t.Content, nil))
		}
	}

	return completion.Prompt{
		System:  pers.SystemPrompt,
		History: historyMsgs,
		Query:   message,
	}
}

// streamTurn drives the backend stream and owns the terminal event. It runs
// until the backend finishes, the caller disconnects, or the per-turn
// timeout fires; on any failure the assistant half is discarded.
func (p *Processor) streamTurn(ctx context.Context, sess chat.Session, pers persona.Persona, prompt completion.Prompt, userSeq int64, events chan<- chat.StreamEvent) {
	defer close(events)
	defer p.release(sess.ID)

	backendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	params := completion.Params{Temperature: pers.Temperature, MaxTokens: pers.MaxTokens}

	stream, err := p.backend.Stream(backendCtx, prompt, params)
	if err != nil {
		p.fail(ctx, sess.ID, events, err)
		return
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			p.fail(ctx, sess.ID, events, recvErr)
			return
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		if !p.emit(ctx, events, chat.StreamEvent{
			Type:      chat.EventToken,
			SessionID: sess.ID,
			Content:   chunk.Content,
		}) {
			// Caller disconnected mid-stream: discard everything received.
			p.logger.Debug().Str("session", sess.ID).Msg("caller disconnected, turn discarded")
			return
		}
	}

	reply, err := schema.ConcatMessages(chunks)
	if err != nil {
		p.fail(ctx, sess.ID, events, err)
		return
	}

	latency := time.Since(start).Milliseconds()
	assistantSeq := userSeq + 1

	// The reply is complete; its durability no longer depends on the
	// caller's socket.
	persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer persistCancel()

	turn := chat.Turn{
		SessionID:  sess.ID,
		Seq:        assistantSeq,
		Role:       chat.RoleAssistant,
		Content:    reply.Content,
		CreatedAt:  time.Now().UTC(),
		TokenCount: completion.CompletionTokens(reply),
		LatencyMs:  &latency,
	}
	if err := p.store.AppendTurn(persistCtx, turn); err != nil && !errors.Is(err, chat.ErrDuplicateTurn) {
		p.logger.Error().Err(err).Str("session", sess.ID).Msg("assistant turn write failed")
		p.emit(ctx, events, chat.StreamEvent{
			Type:      chat.EventError,
			SessionID: sess.ID,
			Reason:    chat.ReasonPersistenceFail,
		})
		return
	}

	if err := p.sessions.Touch(persistCtx, sess.ID); err != nil {
		p.logger.Warn().Err(err).Str("session", sess.ID).Msg("session touch failed")
	}

	p.logger.Info().
		Str("session", sess.ID).
		Str("persona", pers.ID).
		Int64("seq", assistantSeq).
		Int64("latency_ms", latency).
		Msg("turn completed")

	p.emit(ctx, events, chat.StreamEvent{
		Type:      chat.EventComplete,
		SessionID: sess.ID,
		TurnSeq:   assistantSeq,
	})
}

// fail emits the terminal error event with a machine-readable reason. The
// assistant turn is not persisted on any failure path.
func (p *Processor) fail(ctx context.Context, sessionID string, events chan<- chat.StreamEvent, err error) {
	reason := chat.ReasonBackendFailed
	switch {
	case errors.Is(err, context.Canceled):
		reason = chat.ReasonCanceled
	default:
		switch completion.Classify(err).Kind {
		case completion.KindTimeout:
			reason = chat.ReasonBackendTimeout
		case completion.KindRateLimited:
			reason = chat.ReasonRateLimited
		}
	}

	p.logger.Warn().Err(err).Str("session", sessionID).Str("reason", reason).Msg("turn failed")
	p.emit(ctx, events, chat.StreamEvent{
		Type:      chat.EventError,
		SessionID: sessionID,
		Reason:    reason,
	})
}

// emit delivers an event unless the caller has gone away.
func (p *Processor) emit(ctx context.Context, events chan<- chat.StreamEvent, ev chat.StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Processor) acquire(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[sessionID]; busy {
		return false
	}
	p.inflight[sessionID] = struct{}{}
	return true
}

func (p *Processor) release(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, sessionID)
}
