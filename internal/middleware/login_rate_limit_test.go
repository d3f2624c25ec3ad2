package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRateLimitPerEmail(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	login := func(email string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, login("a@example.com"))
	assert.Equal(t, fiber.StatusOK, login("A@example.com"))
	assert.Equal(t, fiber.StatusTooManyRequests, login("a@example.com"))
	assert.Equal(t, fiber.StatusOK, login("b@example.com"))

	assert.True(t, mr.TTL("rl:login:a@example.com") > 0)
}

func TestLoginRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 1), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestEmailRateLimitScopesAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app := fiber.New()
	app.Post("/confirm", EmailRateLimit(cache, "confirm", 1), ok)
	app.Post("/reset", EmailRateLimit(cache, "reset", 1), ok)

	call := func(path string) int {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(`{"email":"a@example.com"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, call("/confirm"))
	assert.Equal(t, fiber.StatusTooManyRequests, call("/confirm"))
	assert.Equal(t, fiber.StatusOK, call("/reset"))
	assert.True(t, mr.Exists("rl:confirm:a@example.com"))
	assert.True(t, mr.Exists("rl:reset:a@example.com"))
}
