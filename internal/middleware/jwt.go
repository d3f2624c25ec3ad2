package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/donustur/donustur/internal/auth"
	"github.com/donustur/donustur/internal/identity"
)

const (
	localUserID = "user_id"
	localGroups = "groups"
	localUser   = "user"
)

// JWTAuth validates bearer access tokens, rejects revoked tokens and disabled
// users, and stores the caller in the request locals.
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		_, user, err := tokens.VerifyAccess(c.UserContext(), tokenStr)
		switch {
		case errors.Is(err, auth.ErrUserDisabled):
			return fiber.NewError(http.StatusForbidden, "user is disabled")
		case errors.Is(err, auth.ErrTokenExpired):
			return fiber.NewError(http.StatusUnauthorized, "token expired")
		case errors.Is(err, auth.ErrTokenRevoked):
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		case err != nil:
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(localUserID, user.ID)
		c.Locals(localGroups, user.Groups)
		c.Locals(localUser, user)
		return c.Next()
	}
}

// RequireGroup allows the request only when the caller belongs to group.
func RequireGroup(group string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groups, _ := c.Locals(localGroups).([]string)
		for _, g := range groups {
			if g == group {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "requires group "+group)
	}
}

// UserID returns the authenticated user id.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// CurrentUser returns the user loaded by JWTAuth.
func CurrentUser(c *fiber.Ctx) (identity.User, bool) {
	user, ok := c.Locals(localUser).(identity.User)
	return user, ok
}
