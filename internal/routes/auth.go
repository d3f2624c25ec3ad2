package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/donustur/donustur/internal/auth"
	"github.com/donustur/donustur/internal/middleware"
)

// RegisterAuthRoutes wires account and token endpoints. Every endpoint that
// takes an email and a code, or sends one, is rate limited per email.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, cache *redis.Client, maxPerMin int) {
	limit := func(scope string) fiber.Handler {
		return middleware.EmailRateLimit(cache, scope, maxPerMin)
	}
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	group.Post("/confirm", limit("confirm"), h.Confirm)
	group.Post("/resend-code", limit("resend"), h.ResendCode)
	group.Post("/forgot-password", limit("forgot"), h.ForgotPassword)
	group.Post("/reset-password", limit("reset"), h.ResetPassword)
	group.Post("/login", middleware.LoginRateLimit(cache, maxPerMin), h.Login)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", h.Logout)
}
