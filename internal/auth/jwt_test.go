package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zooconnect/ambassador-chat/internal/auth"
	"github.com/zooconnect/ambassador-chat/internal/model/identity"
)

const testSecret = "unit-test-secret"

func TestJWTRoundTrip(t *testing.T) {
	want := identity.Identity{
		UserID:     "bob",
		Role:       identity.RoleParent,
		GuardianOf: []string{"alice", "dan"},
	}

	token, err := auth.NewToken(testSecret, want, time.Hour)
	require.NoError(t, err)

	got, err := auth.NewJWTValidator(testSecret).Validate(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJWTGuardianOfStrippedForNonParents(t *testing.T) {
	forged := identity.Identity{
		UserID:     "mallory",
		Role:       identity.RoleUser,
		GuardianOf: []string{"alice"},
	}

	token, err := auth.NewToken(testSecret, forged, time.Hour)
	require.NoError(t, err)

	got, err := auth.NewJWTValidator(testSecret).Validate(token)
	require.NoError(t, err)
	assert.Empty(t, got.GuardianOf)
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := auth.NewToken(testSecret, identity.Identity{UserID: "alice", Role: identity.RoleUser}, time.Hour)
	require.NoError(t, err)

	_, err = auth.NewJWTValidator("other-secret").Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	token, err := auth.NewToken(testSecret, identity.Identity{UserID: "alice", Role: identity.RoleUser}, -time.Minute)
	require.NoError(t, err)

	_, err = auth.NewJWTValidator(testSecret).Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTUnknownRole(t *testing.T) {
	token, err := auth.NewToken(testSecret, identity.Identity{UserID: "alice", Role: "superuser"}, time.Hour)
	require.NoError(t, err)

	_, err = auth.NewJWTValidator(testSecret).Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTGarbage(t *testing.T) {
	_, err := auth.NewJWTValidator(testSecret).Validate("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
