package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donustur/donustur/internal/auth"
	"github.com/donustur/donustur/internal/config"
	"github.com/donustur/donustur/internal/identity"
)

func TestJWTAuthAndRequireGroup(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryRepository()
	admin := identity.User{ID: "admin-1", Email: "admin@example.com", Groups: []string{identity.GroupAdmin}, Enabled: true, Confirmed: true}
	member := identity.User{ID: "user-1", Email: "user@example.com", Enabled: true, Confirmed: true}
	require.NoError(t, repo.Create(ctx, admin))
	require.NoError(t, repo.Create(ctx, member))

	tokens := auth.NewService(config.Config{JWTSecret: "a", RefreshSecret: "r", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}, repo)

	app := fiber.New()
	app.Use(RequestID(), JWTAuth(tokens))
	app.Get("/me", func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(UserID(c) + ":" + user.Email)
	})
	app.Get("/admin", RequireGroup(identity.GroupAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	call := func(path, token string) int {
		req := httptest.NewRequest(fiber.MethodGet, path, nil)
		if token != "" {
			req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	adminPair, err := tokens.Login(admin)
	require.NoError(t, err)
	memberPair, err := tokens.Login(member)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, call("/me", ""))
	assert.Equal(t, fiber.StatusUnauthorized, call("/me", "garbage"))
	assert.Equal(t, fiber.StatusOK, call("/me", memberPair.AccessToken))
	assert.Equal(t, fiber.StatusForbidden, call("/admin", memberPair.AccessToken))
	assert.Equal(t, fiber.StatusNoContent, call("/admin", adminPair.AccessToken))

	_, err = repo.Modify(ctx, member.ID, func(u *identity.User) error {
		u.Enabled = false
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, call("/me", memberPair.AccessToken))

	_, err = repo.Modify(ctx, admin.ID, func(u *identity.User) error {
		u.TokenVersion++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, call("/admin", adminPair.AccessToken))
}
