package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/donustur/donustur/internal/bins"
	"github.com/donustur/donustur/internal/causes"
	"github.com/donustur/donustur/internal/rewards"
)

// RegisterRewardRoutes wires scans and donations behind the idempotency guard.
func RegisterRewardRoutes(r fiber.Router, h *rewards.Handler, idempotent fiber.Handler) {
	r.Post("/scans", idempotent, h.Scan)
	r.Post("/donations", idempotent, h.Donate)
}

// RegisterCatalogRoutes exposes read-only bin and cause lookups to users.
func RegisterCatalogRoutes(r fiber.Router, b *bins.Handler, c *causes.Handler) {
	r.Get("/bins", b.List)
	r.Get("/bins/:id", b.Get)
	r.Get("/causes/:id", c.Get)
}
