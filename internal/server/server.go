package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/donustur/donustur/internal/config"
	"github.com/donustur/donustur/internal/middleware"
	"github.com/donustur/donustur/internal/routes"
)

const maxBodySize = 4 * 1024 * 1024

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	logger  *slog.Logger
	cleanup routes.Cleanup
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    maxBodySize,
		ErrorHandler: errorHandler(logger),
	})

	cleanup, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, logger: logger, cleanup: cleanup}, nil
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then drains background work such as
// queued emails.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.app.ShutdownWithContext(ctx)
	var cleanupErr error
	if s.cleanup != nil {
		cleanupErr = s.cleanup(ctx)
	}
	return errors.Join(httpErr, cleanupErr)
}

// errorHandler renders every error as {"error": ..., "request_id": ...}.
// Unexpected errors are logged and masked.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		message := "internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		} else {
			logger.ErrorContext(c.UserContext(), "unhandled error",
				slog.String("path", c.Path()),
				slog.String("request_id", middleware.RequestIDFrom(c)),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(fiber.Map{
			"error":      message,
			"request_id": middleware.RequestIDFrom(c),
		})
	}
}
