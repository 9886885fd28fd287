package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zooconnect/ambassador-chat/internal/model/chat"
	"github.com/zooconnect/ambassador-chat/internal/model/identity"
	"github.com/zooconnect/ambassador-chat/internal/service/access"
	historysvc "github.com/zooconnect/ambassador-chat/internal/service/history"
	store "github.com/zooconnect/ambassador-chat/internal/store/history"
)

var (
	alice = identity.Identity{UserID: "alice", Role: identity.RoleUser}
	bob   = identity.Identity{UserID: "bob", Role: identity.RoleParent, GuardianOf: []string{"alice"}}
	carol = identity.Identity{UserID: "carol", Role: identity.RoleUser}
	guest = identity.Identity{UserID: "guest", Role: identity.RoleVisitor}
	staff = identity.Identity{UserID: "keeper", Role: identity.RoleStaff}
	admin = identity.Identity{UserID: "root", Role: identity.RoleAdmin}
)

func seed(t *testing.T) (*historysvc.Service, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	svc := historysvc.NewService(mem, zerolog.Nop())
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	sessions := []struct {
		id, user, persona string
		at                time.Time
	}{
		{"sess-alice-1", "alice", "leo", base},
		{"sess-alice-2", "alice", "pip", base.Add(time.Hour)},
		{"sess-carol-1", "carol", "leo", base},
	}
	for _, s := range sessions {
		require.NoError(t, mem.CreateSession(ctx, chat.Session{
			ID: s.id, UserID: s.user, PersonaID: s.persona,
			StartedAt: s.at, LastActivityAt: s.at, Status: chat.SessionActive,
		}))
		require.NoError(t, mem.AppendTurn(ctx, chat.Turn{
			SessionID: s.id, Seq: 1, Role: chat.RoleUser, Content: "hi", CreatedAt: s.at,
		}))
		require.NoError(t, mem.AppendTurn(ctx, chat.Turn{
			SessionID: s.id, Seq: 2, Role: chat.RoleAssistant, Content: "hello", CreatedAt: s.at.Add(time.Second),
		}))
	}
	return svc, mem
}

func TestGetConversationSelf(t *testing.T) {
	svc, _ := seed(t)

	turns, err := svc.GetConversation(context.Background(), alice, "sess-alice-1", store.Page{})
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
	assert.Equal(t, chat.RoleAssistant, turns[1].Role)
}

func TestGetConversationVisitorDenied(t *testing.T) {
	svc, _ := seed(t)

	_, err := svc.GetConversation(context.Background(), guest, "sess-alice-1", store.Page{})
	var forbidden *access.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, access.NoAccessVisitor, forbidden.Reason)

	// Ownership is irrelevant for visitors.
	_, err = svc.GetConversation(context.Background(), guest, "sess-carol-1", store.Page{})
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, access.NoAccessVisitor, forbidden.Reason)
}

func TestGetConversationGuardianAllowed(t *testing.T) {
	svc, _ := seed(t)

	turns, err := svc.GetConversation(context.Background(), bob, "sess-alice-1", store.Page{})
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestGetConversationUnrelatedDenied(t *testing.T) {
	svc, _ := seed(t)

	_, err := svc.GetConversation(context.Background(), bob, "sess-carol-1", store.Page{})
	var forbidden *access.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, access.NotAuthorized, forbidden.Reason)
}

func TestGetConversationStaffAndAdmin(t *testing.T) {
	svc, _ := seed(t)

	for _, id := range []identity.Identity{staff, admin} {
		turns, err := svc.GetConversation(context.Background(), id, "sess-carol-1", store.Page{})
		require.NoError(t, err)
		assert.Len(t, turns, 2)
	}
}

func TestGetConversationUnknownSession(t *testing.T) {
	svc, _ := seed(t)

	_, err := svc.GetConversation(context.Background(), admin, "no-such-session", store.Page{})
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestListConversationsOwnScope(t *testing.T) {
	svc, _ := seed(t)

	sessions, err := svc.ListConversations(context.Background(), alice, historysvc.ListRequest{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "sess-alice-2", sessions[0].ID)
	assert.Equal(t, 2, sessions[0].TurnCount)
}

func TestListConversationsGuardianScope(t *testing.T) {
	svc, _ := seed(t)

	// Bob's own guardianship scope covers alice's sessions.
	sessions, err := svc.ListConversations(context.Background(), bob, historysvc.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	// Naming the child explicitly works too.
	sessions, err = svc.ListConversations(context.Background(), bob, historysvc.ListRequest{TargetUserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	// An unrelated target is forbidden.
	_, err = svc.ListConversations(context.Background(), bob, historysvc.ListRequest{TargetUserID: "carol"})
	var forbidden *access.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, access.NotAuthorized, forbidden.Reason)
}

func TestListConversationsVisitorDenied(t *testing.T) {
	svc, _ := seed(t)

	_, err := svc.ListConversations(context.Background(), guest, historysvc.ListRequest{})
	var forbidden *access.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, access.NoAccessVisitor, forbidden.Reason)
}

func TestListConversationsStaffAcrossUsers(t *testing.T) {
	svc, _ := seed(t)

	sessions, err := svc.ListConversations(context.Background(), staff, historysvc.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, sessions, 3)

	sessions, err = svc.ListConversations(context.Background(), staff, historysvc.ListRequest{TargetUserID: "carol"})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestListConversationsPersonaFilter(t *testing.T) {
	svc, _ := seed(t)

	sessions, err := svc.ListConversations(context.Background(), alice, historysvc.ListRequest{
		Filter: store.Filter{PersonaID: "pip"},
	})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-alice-2", sessions[0].ID)
}

func TestSweeperDeletesExpiredOnly(t *testing.T) {
	_, mem := seed(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC).Add(91 * 24 * time.Hour)
	sweeper := historysvc.NewSweeper(mem, 90*24*time.Hour, 30*time.Minute, time.Hour, zerolog.Nop()).
		WithClock(func() time.Time { return now })

	// A session with recent activity survives the sweep.
	require.NoError(t, mem.CreateSession(ctx, chat.Session{
		ID: "sess-fresh", UserID: "alice", PersonaID: "leo",
		StartedAt: now, LastActivityAt: now, Status: chat.SessionActive,
	}))

	sweeper.Sweep(ctx)

	_, err := mem.GetSession(ctx, "sess-alice-1")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = mem.GetSession(ctx, "sess-fresh")
	assert.NoError(t, err)
}

func TestSweeperClosesIdleSessions(t *testing.T) {
	_, mem := seed(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	sweeper := historysvc.NewSweeper(mem, 90*24*time.Hour, 30*time.Minute, time.Hour, zerolog.Nop()).
		WithClock(func() time.Time { return now })

	sweeper.Sweep(ctx)

	// sess-alice-1 last saw activity an hour ago: closed but still readable.
	sess, err := mem.GetSession(ctx, "sess-alice-1")
	require.NoError(t, err)
	assert.Equal(t, chat.SessionClosed, sess.Status)

	// sess-alice-2 was active 0 minutes ago relative to the fixed clock.
	sess, err = mem.GetSession(ctx, "sess-alice-2")
	require.NoError(t, err)
	assert.Equal(t, chat.SessionActive, sess.Status)
}
