package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zooconnect/ambassador-chat/internal/auth"
	"github.com/zooconnect/ambassador-chat/internal/handler"
	"github.com/zooconnect/ambassador-chat/internal/model/identity"
	"github.com/zooconnect/ambassador-chat/internal/model/persona"
	"github.com/zooconnect/ambassador-chat/internal/service/completion"
	historysvc "github.com/zooconnect/ambassador-chat/internal/service/history"
	sessionsvc "github.com/zooconnect/ambassador-chat/internal/service/session"
	turnsvc "github.com/zooconnect/ambassador-chat/internal/service/turn"
	"github.com/zooconnect/ambassador-chat/internal/store/history"
)

const testSecret = "handler-test-secret"

// scriptedBackend streams a fixed reply word by word.
type scriptedBackend struct {
	reply string
}

func (b *scriptedBackend) Complete(ctx context.Context, p completion.Prompt, params completion.Params) (*schema.Message, error) {
	return schema.AssistantMessage(b.reply, nil), nil
}

func (b *scriptedBackend) Stream(ctx context.Context, p completion.Prompt, params completion.Params) (*schema.StreamReader[*schema.Message], error) {
	reader, writer := schema.Pipe[*schema.Message](2)
	go func() {
		defer writer.Close()
		for _, word := range strings.SplitAfter(b.reply, " ") {
			writer.Send(schema.AssistantMessage(word, nil), nil)
		}
		writer.Send(&schema.Message{
			Role: schema.Assistant,
			ResponseMeta: &schema.ResponseMeta{
				FinishReason: "stop",
				Usage:        &schema.TokenUsage{CompletionTokens: 7},
			},
		}, nil)
	}()
	return reader, nil
}

func newTestRouter(t *testing.T) (http.Handler, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore()
	sessions := sessionsvc.New(store, 10, 30*time.Minute)
	personas := persona.NewMemoryStore(persona.Seed())
	backend := &scriptedBackend{reply: "Hello young explorer! Lions purr too."}
	processor := turnsvc.NewProcessor(sessions, store, personas, backend, time.Minute, zerolog.Nop())
	queries := historysvc.NewService(store, zerolog.Nop())
	validator := auth.NewJWTValidator(testSecret)

	return handler.NewRouter(validator, personas, sessions, processor, queries, zerolog.Nop()), store
}

func bearerFor(t *testing.T, id identity.Identity) string {
	t.Helper()
	token, err := auth.NewToken(testSecret, id, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

// sseEvent is one parsed frame from an event-stream body.
type sseEvent struct {
	name string
	data map[string]any
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(frame, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.data))
			}
		}
		events = append(events, ev)
	}
	return events
}

func postChat(t *testing.T, router http.Handler, bearer string, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestChatHappyPath(t *testing.T) {
	router, _ := newTestRouter(t)
	bearer := bearerFor(t, identity.Identity{UserID: "alice", Role: identity.RoleUser})

	resp := postChat(t, router, bearer, map[string]string{"personaId": "leo", "message": "Hello!"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	events := parseSSE(t, resp.Body.String())
	require.GreaterOrEqual(t, len(events), 3)

	assert.Equal(t, "session", events[0].name)
	sessionID, _ := events[0].data["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	var streamed strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, "token", ev.name)
		streamed.WriteString(ev.data["content"].(string))
	}
	assert.Equal(t, "Hello young explorer! Lions purr too.", streamed.String())

	last := events[len(events)-1]
	assert.Equal(t, "complete", last.name)
	assert.Equal(t, float64(2), last.data["turnSeq"])

	// The recorded conversation is readable by its owner: two turns, in order.
	req := httptest.NewRequest(http.MethodGet, "/api/history/sessions/"+sessionID, nil)
	req.Header.Set("Authorization", bearer)
	historyResp := httptest.NewRecorder()
	router.ServeHTTP(historyResp, req)
	require.Equal(t, http.StatusOK, historyResp.Code)

	var payload struct {
		Turns []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(historyResp.Body.Bytes(), &payload))
	require.Len(t, payload.Turns, 2)
	assert.Equal(t, "user", payload.Turns[0].Role)
	assert.Equal(t, "Hello!", payload.Turns[0].Content)
	assert.Equal(t, "assistant", payload.Turns[1].Role)
}

func TestChatRequiresIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := postChat(t, router, "", map[string]string{"personaId": "leo", "message": "Hello!"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestChatVisitorRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	bearer := bearerFor(t, identity.Identity{UserID: "ghost", Role: identity.RoleVisitor})

	resp := postChat(t, router, bearer, map[string]string{"personaId": "leo", "message": "Hello!"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestChatInvalidToken(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := postChat(t, router, "Bearer garbage", map[string]string{"personaId": "leo", "message": "Hello!"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestChatValidation(t *testing.T) {
	router, _ := newTestRouter(t)
	bearer := bearerFor(t, identity.Identity{UserID: "alice", Role: identity.RoleUser})

	resp := postChat(t, router, bearer, map[string]string{"personaId": "leo"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = postChat(t, router, bearer, map[string]string{"message": "Hello!"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatUnknownPersona(t *testing.T) {
	router, _ := newTestRouter(t)
	bearer := bearerFor(t, identity.Identity{UserID: "alice", Role: identity.RoleUser})

	resp := postChat(t, router, bearer, map[string]string{"personaId": "unicorn", "message": "Hello!"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatForeignSessionForbidden(t *testing.T) {
	router, _ := newTestRouter(t)
	alice := bearerFor(t, identity.Identity{UserID: "alice", Role: identity.RoleUser})
	mallory := bearerFor(t, identity.Identity{UserID: "mallory", Role: identity.RoleUser})

	resp := postChat(t, router, alice, map[string]string{"personaId": "leo", "message": "Hello!"})
	require.Equal(t, http.StatusOK, resp.Code)
	events := parseSSE(t, resp.Body.String())
	sessionID := events[0].data["sessionId"].(string)

	resp = postChat(t, router, mallory, map[string]string{
		"personaId": "leo", "message": "mine now", "sessionId": sessionID,
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestCloseSession(t *testing.T) {
	router, store := newTestRouter(t)
	alice := bearerFor(t, identity.Identity{UserID: "alice", Role: identity.RoleUser})
	staffer := bearerFor(t, identity.Identity{UserID: "keeper", Role: identity.RoleStaff})

	resp := postChat(t, router, alice, map[string]string{"personaId": "leo", "message": "Hello!"})
	require.Equal(t, http.StatusOK, resp.Code)
	sessionID := parseSSE(t, resp.Body.String())[0].data["sessionId"].(string)

	// Staff history access is read-only: no close path.
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/close", nil)
	req.Header.Set("Authorization", staffer)
	closeResp := httptest.NewRecorder()
	router.ServeHTTP(closeResp, req)
	assert.Equal(t, http.StatusForbidden, closeResp.Code)

	// The owner may close, and closing twice is fine.
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/close", nil)
		req.Header.Set("Authorization", alice)
		closeResp = httptest.NewRecorder()
		router.ServeHTTP(closeResp, req)
		assert.Equal(t, http.StatusOK, closeResp.Code)
	}

	sess, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, sess.Open())
}
