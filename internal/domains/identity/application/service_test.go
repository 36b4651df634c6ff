package application

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/memory"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

var secret = []byte("test-secret")

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T) (*Service, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(secret, memory.NewSessionStore(), WithClock(c.Now))
	require.NoError(t, err)
	return svc, c
}

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := NewService(nil, memory.NewSessionStore())
	require.ErrorIs(t, err, ErrSigningKeyRequired)
}

func TestIssueAndAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "owner-1", auth.RoleOwner, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)

	caller, err := svc.Authenticate(ctx, "Bearer "+token.Value)
	require.NoError(t, err)
	assert.Equal(t, auth.Caller{UserID: "owner-1", Role: auth.RoleOwner}, caller)

	caller, err = svc.Authenticate(ctx, token.Value)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", caller.UserID)
}

func TestIssueToken_RejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.IssueToken(context.Background(), " ", auth.RoleOwner, time.Hour)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.IssueToken(context.Background(), "u", auth.Role("admin"), time.Hour)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthenticate_Rejections(t *testing.T) {
	svc, c := newService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
	_, err = svc.Authenticate(ctx, "Bearer not-a-jwt")
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	other, err := NewService([]byte("other-secret"), memory.NewSessionStore(), WithClock(c.Now))
	require.NoError(t, err)
	forged, err := other.IssueToken(ctx, "owner-1", auth.RoleOwner, time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, forged.Value)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "owner-1", "role": "owner"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, unsigned)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	token, err := svc.IssueToken(ctx, "walker-1", auth.RoleWalker, time.Minute)
	require.NoError(t, err)
	c.now = c.now.Add(2 * time.Minute)
	_, err = svc.Authenticate(ctx, token.Value)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestSignOutRevokesTokens(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.IssueToken(ctx, "owner-1", auth.RoleOwner, 0)
	require.NoError(t, err)
	second, err := svc.IssueToken(ctx, "owner-1", auth.RoleOwner, 0)
	require.NoError(t, err)
	kept, err := svc.IssueToken(ctx, "walker-1", auth.RoleWalker, 0)
	require.NoError(t, err)

	caller, err := svc.Authenticate(ctx, first.Value)
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx, caller))

	for _, token := range []string{first.Value, second.Value} {
		_, err := svc.Authenticate(ctx, token)
		require.ErrorIs(t, err, auth.ErrNotAuthenticated)
	}
	_, err = svc.Authenticate(ctx, kept.Value)
	require.NoError(t, err)

	require.ErrorIs(t, svc.SignOut(ctx, auth.Caller{}), auth.ErrNotAuthenticated)
}
