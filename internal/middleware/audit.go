package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit emits one structured log line per request.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if requestID := RequestIDFrom(c); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if userID := UserID(c); userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}
		switch {
		case err != nil && status >= fiber.StatusInternalServerError:
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request failed", attrs...)
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.Warn("request rejected", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
		return err
	}
}
