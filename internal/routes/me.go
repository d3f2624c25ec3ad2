package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/donustur/donustur/internal/rewards"
	"github.com/donustur/donustur/internal/useradmin"
)

// RegisterMeRoutes exposes the caller's profile, stats and personal QR code.
func RegisterMeRoutes(r fiber.Router, users *useradmin.Handler, rw *rewards.Handler) {
	r.Get("/me", users.Me)
	r.Patch("/me", users.UpdateMe)
	r.Get("/me/stats", rw.MyStats)
	r.Get("/me/history", rw.MyHistory)
	r.Get("/me/qr.png", users.MyQR)
}
