package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donustur/donustur/internal/config"
	"github.com/donustur/donustur/internal/identity"
)

func newTestService(t *testing.T) (*Service, identity.Repository, identity.User) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	user := identity.User{
		ID:        "6f1c2f57-7d3a-4bb3-9b1c-2d8a0c0e4f11",
		Email:     "ayse@example.com",
		Groups:    []string{identity.GroupAdmin},
		Enabled:   true,
		Confirmed: true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	cfg := config.Config{
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	return NewService(cfg, repo), repo, user
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	svc, _, user := newTestService(t)
	pair, err := svc.Login(user)
	require.NoError(t, err)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, got, err := svc.VerifyAccess(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Groups)
	assert.Equal(t, user.Email, got.Email)

	_, _, err = svc.VerifyAccess(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshAndLogout(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()
	pair, err := svc.Login(user)
	require.NoError(t, err)

	access, exp, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(900), exp)
	_, _, err = svc.VerifyAccess(ctx, access)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, _, err = svc.VerifyAccess(ctx, access)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestExpiredToken(t *testing.T) {
	svc, _, user := newTestService(t)
	pair, err := svc.Login(user)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDisabledUserRejected(t *testing.T) {
	svc, repo, user := newTestService(t)
	ctx := context.Background()
	pair, err := svc.Login(user)
	require.NoError(t, err)

	_, err = repo.Modify(ctx, user.ID, func(u *identity.User) error {
		u.Enabled = false
		return nil
	})
	require.NoError(t, err)
	_, _, err = svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUserDisabled)
}

func TestParseRejectsTampering(t *testing.T) {
	now := time.Now()
	token, err := SignHS256(Claims{Subject: "u1", Kind: kindAccess, ExpiresAt: now.Add(time.Minute).Unix()}, []byte("k"))
	require.NoError(t, err)

	_, err = ParseAndVerifyHS256(token, []byte("other"), now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	parts := strings.Split(token, ".")
	forged, err := SignHS256(Claims{Subject: "u2", Kind: kindAccess, ExpiresAt: now.Add(time.Minute).Unix()}, []byte("k"))
	require.NoError(t, err)
	swapped := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]
	_, err = ParseAndVerifyHS256(swapped, []byte("k"), now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAndVerifyHS256("a.b", []byte("k"), now)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := ParseAndVerifyHS256(token, []byte("k"), now)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
}
