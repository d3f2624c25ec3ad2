package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/donustur/donustur/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls atomic.Int32
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(localUserID, c.Get("X-Test-User"))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/scans", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	app.Post("/fail", func(c *fiber.Ctx) error {
		calls.Add(1)
		return fiber.NewError(fiber.StatusPaymentRequired, "insufficient credits")
	})
	return app, &calls
}

func send(t *testing.T, app *fiber.App, path, user, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-User", user)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _ := setupTestApp(t)
	status, _ := send(t, app, "/scans", "u1", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, payload := send(t, app, "/scans", "u1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	status, cached := send(t, app, "/scans", "u1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if cached != payload {
		t.Fatalf("expected cached payload %s got %s", payload, cached)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cached), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	app, calls := setupTestApp(t)
	send(t, app, "/scans", "u1", "same")
	send(t, app, "/scans", "u2", "same")
	if calls.Load() != 2 {
		t.Fatalf("expected both users to reach the handler, got %d calls", calls.Load())
	}
}

func TestIdempotencyReleasesKeyOnError(t *testing.T) {
	app, calls := setupTestApp(t)
	status, _ := send(t, app, "/fail", "u1", "k")
	if status != fiber.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", status)
	}
	send(t, app, "/fail", "u1", "k")
	if calls.Load() != 2 {
		t.Fatalf("expected retry after failure, got %d calls", calls.Load())
	}
}
