package history

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zooconnect/ambassador-chat/internal/middleware"
	chatmodel "github.com/zooconnect/ambassador-chat/internal/model/chat"
	"github.com/zooconnect/ambassador-chat/internal/service/access"
	historysvc "github.com/zooconnect/ambassador-chat/internal/service/history"
	store "github.com/zooconnect/ambassador-chat/internal/store/history"
	"github.com/zooconnect/ambassador-chat/pkg/httpx"
)

// Handler serves authorized history reads.
type Handler struct {
	queries *historysvc.Service
}

// New creates the history handler.
func New(queries *historysvc.Service) *Handler {
	return &Handler{queries: queries}
}

// RegisterRoutes mounts the history routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history/sessions", h.handleListConversations)
	r.Get("/history/sessions/{sessionID}", h.handleGetConversation)
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.queries.GetConversation(r.Context(), caller, sessionID, pageFrom(r))
	if err != nil {
		respondHistoryError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"turns":     turns,
	})
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "identity required")
		return
	}

	filter, err := filterFrom(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.queries.ListConversations(r.Context(), caller, historysvc.ListRequest{
		TargetUserID: r.URL.Query().Get("user"),
		Filter:       filter,
	})
	if err != nil {
		respondHistoryError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func pageFrom(r *http.Request) store.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return store.Page{Limit: limit, Offset: offset}
}

func filterFrom(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		PersonaID: q.Get("persona"),
		Page:      pageFrom(r),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return store.Filter{}, errors.New("invalid from timestamp, want RFC3339")
		}
		f.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return store.Filter{}, errors.New("invalid to timestamp, want RFC3339")
		}
		f.To = t
	}
	return f, nil
}

func respondHistoryError(w http.ResponseWriter, err error) {
	var forbidden *access.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		httpx.RespondJSON(w, http.StatusForbidden, map[string]string{
			"error":  "access denied",
			"reason": string(forbidden.Reason),
		})
	case errors.Is(err, chatmodel.ErrSessionNotFound):
		httpx.RespondError(w, http.StatusNotFound, "session not found")
	default:
		httpx.RespondError(w, http.StatusInternalServerError, "history read failed")
	}
}
