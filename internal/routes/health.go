package routes

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness and readiness endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		checks := fiber.Map{"postgres": "disabled", "redis": "disabled", "storage": "ok"}
		healthy := true

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			checks["postgres"] = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				checks["postgres"], healthy = err.Error(), false
			}
		}
		if d.Cache != nil {
			checks["redis"] = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				checks["redis"], healthy = err.Error(), false
			}
		}
		if _, err := os.Stat(d.Cfg.StorageDir); err != nil {
			checks["storage"], healthy = err.Error(), false
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    checks,
			"env":       d.Cfg.Env,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
