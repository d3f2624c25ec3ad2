package routes

import "github.com/gofiber/fiber/v2"

// RegisterAdminRoutes wires catalogue management, stats and user administration.
func RegisterAdminRoutes(r fiber.Router, h handlers) {
	r.Get("/stats", h.rewards.AdminStats)

	r.Get("/bins", h.bins.List)
	r.Post("/bins", h.bins.Create)
	r.Get("/bins/:id", h.bins.Get)
	r.Patch("/bins/:id", h.bins.Update)
	r.Delete("/bins/:id", h.bins.Delete)
	r.Get("/bins/:id/qr.png", h.bins.QR)

	r.Get("/causes", h.causes.List)
	r.Post("/causes", h.causes.Create)
	r.Get("/causes/:id", h.causes.Get)
	r.Patch("/causes/:id", h.causes.Update)
	r.Delete("/causes/:id", h.causes.Delete)
	r.Put("/causes/:id/logo", h.causes.SetLogo)
	r.Get("/causes/:id/stats", h.rewards.CauseStats)

	r.Get("/users", h.users.List)
	r.Get("/users/:id", h.users.Get)
	r.Patch("/users/:id", h.users.Update)
	r.Post("/users/:id/groups", h.users.AddGroup)
	r.Delete("/users/:id/groups/:group", h.users.RemoveGroup)
	r.Post("/users/:id/enable", h.users.Enable)
	r.Post("/users/:id/disable", h.users.Disable)
}
