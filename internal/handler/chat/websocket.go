package chat

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsError is the shape of a synchronous failure on the socket.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleChatSocket streams turn events over a WebSocket. The client sends
// one turnRequest JSON message per turn and receives the same event JSON the
// SSE endpoint produces; the connection stays open for follow-up turns.
func (h *Handler) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireChatter(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req turnRequest
		if err := conn.ReadJSON(&req); err != nil {
			return // client closed or sent garbage
		}
		if req.PersonaID == "" || req.Message == "" {
			if err := conn.WriteJSON(wsError{Type: "error", Error: "personaId and message are required"}); err != nil {
				return
			}
			continue
		}

		sess, events, err := h.processor.RunTurn(r.Context(), caller.UserID, req.PersonaID, req.SessionID, req.Message)
		if err != nil {
			_, message := turnErrorStatus(err)
			if werr := conn.WriteJSON(wsError{Type: "error", Error: message}); werr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(map[string]string{"type": "session", "sessionId": sess.ID}); err != nil {
			return
		}
		for ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug().Err(err).Str("session", sess.ID).Msg("websocket write failed")
				return
			}
		}
	}
}
