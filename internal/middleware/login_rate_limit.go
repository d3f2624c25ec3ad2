package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// LoginRateLimit limits login attempts per email, or per IP when the body has
// no email, within a one minute window.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	return EmailRateLimit(cache, "login", maxPerMin)
}

// EmailRateLimit counts requests per scope and email (or IP) in a one minute
// window. Confirmation and password reset endpoints use it so verification
// codes cannot be enumerated.
func EmailRateLimit(cache *redis.Client, scope string, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		subject := strings.ToLower(strings.TrimSpace(req.Email))
		if subject == "" {
			subject = c.IP()
		}
		key := "rl:" + scope + ":" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			// fail open
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many "+scope+" attempts, try again later")
		}
		return c.Next()
	}
}
