package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const IdempotencyHeader = "Idempotency-Key"

// ResponseStore remembers the response sent for an idempotency key.
type ResponseStore interface {
	LookupResponse(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	SaveResponse(ctx context.Context, key string, status int, body []byte) error
}

// Idempotency replays the stored response when a request repeats an
// Idempotency-Key on the same route, so a retried transfer is not applied
// twice. Only successful responses are stored; failures may be retried.
func Idempotency(store ResponseStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// c.Get points into the request buffer, which fasthttp reuses.
		header := utils.CopyString(c.Get(IdempotencyHeader))
		if header == "" {
			return c.Next()
		}
		key := scopedKey(c.Method(), c.Route().Path, header)

		status, body, found, err := store.LookupResponse(c.UserContext(), key)
		if err != nil {
			slog.Error("Idempotency lookup failed", "error", err, "key", key, "request_id", GetRequestID(c))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "idempotency store unavailable", "code": "INTERNAL"})
		}
		if found {
			slog.Info("Idempotency hit, returning cached response", "key", key, "request_id", GetRequestID(c))
			c.Set("X-Idempotency-Hit", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		resStatus := c.Response().StatusCode()
		if resStatus < 200 || resStatus >= 300 {
			return nil
		}
		resBody := append([]byte(nil), c.Response().Body()...)

		if err := store.SaveResponse(c.UserContext(), key, resStatus, resBody); err != nil {
			slog.Error("Failed to save idempotency key", "error", err, "key", key)
		} else {
			slog.Debug("Idempotency key saved", "key", key)
		}
		return nil
	}
}

// scopedKey keeps one key from colliding across endpoints.
func scopedKey(method, path, key string) string {
	return method + " " + path + ":" + key
}
