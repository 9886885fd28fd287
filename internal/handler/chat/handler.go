package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	chatmodel "github.com/zooconnect/ambassador-chat/internal/model/chat"
	"github.com/zooconnect/ambassador-chat/internal/model/identity"
	"github.com/zooconnect/ambassador-chat/internal/middleware"
	"github.com/zooconnect/ambassador-chat/internal/service/session"
	"github.com/zooconnect/ambassador-chat/internal/service/turn"
	"github.com/zooconnect/ambassador-chat/pkg/httpx"
)

// Handler serves turn execution: an SSE endpoint and a WebSocket variant.
type Handler struct {
	processor *turn.Processor
	sessions  *session.Service
	logger    zerolog.Logger
}

// New creates the chat handler.
func New(processor *turn.Processor, sessions *session.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		processor: processor,
		sessions:  sessions,
		logger:    logger.With().Str("component", "chat-handler").Logger(),
	}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleChatSocket)
	r.Post("/sessions/{sessionID}/close", h.handleCloseSession)
}

// turnRequest is the inbound body for one turn.
type turnRequest struct {
	PersonaID string `json:"personaId"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireChatter(w, r)
	if !ok {
		return
	}

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PersonaID == "" || req.Message == "" {
		httpx.RespondError(w, http.StatusBadRequest, "personaId and message are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sess, events, err := h.processor.RunTurn(r.Context(), caller.UserID, req.PersonaID, req.SessionID, req.Message)
	if err != nil {
		respondTurnError(w, err)
		return
	}

	httpx.SetupSSEHeaders(w)

	// The session event tells the client which session the turn landed in,
	// which matters when one was created implicitly.
	if err := httpx.SendSSEEvent(w, flusher, "session", map[string]string{"sessionId": sess.ID}); err != nil {
		h.logger.Debug().Err(err).Msg("session event write failed")
		return
	}

	for ev := range events {
		if err := httpx.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
			// Client went away; RunTurn's context does the cleanup.
			h.logger.Debug().Err(err).Str("session", sess.ID).Msg("sse write failed")
			return
		}
	}
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireChatter(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Get(r.Context(), sessionID)
	if errors.Is(err, chatmodel.ErrSessionNotFound) {
		httpx.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	// Owners close their own sessions; admins may close any. Staff access to
	// history is read-only, so it grants no close path.
	if sess.UserID != caller.UserID && caller.Role != identity.RoleAdmin {
		httpx.RespondError(w, http.StatusForbidden, "not your session")
		return
	}

	if err := h.sessions.Close(r.Context(), sessionID); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "close failed")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// requireChatter rejects anonymous callers: starting a turn needs a real
// user identity even though history access control happens elsewhere.
func requireChatter(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	caller, ok := middleware.IdentityFrom(r.Context())
	if !ok || caller.UserID == "" || caller.Role == identity.RoleVisitor {
		httpx.RespondError(w, http.StatusUnauthorized, "sign in to chat with an ambassador")
		return identity.Identity{}, false
	}
	return caller, true
}

func respondTurnError(w http.ResponseWriter, err error) {
	status, message := turnErrorStatus(err)
	httpx.RespondError(w, status, message)
}

// turnErrorStatus maps synchronous RunTurn failures to a status and a
// message safe to hand to the caller.
func turnErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, turn.ErrPersonaNotFound):
		return http.StatusBadRequest, "persona not found"
	case errors.Is(err, chatmodel.ErrNotOwned):
		return http.StatusForbidden, "session belongs to another user"
	case errors.Is(err, chatmodel.ErrSessionBusy):
		return http.StatusConflict, "a turn is already in progress for this session"
	default:
		return http.StatusInternalServerError, "turn failed to start"
	}
}
