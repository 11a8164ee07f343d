package idempotency

import (
	"errors"
	"regexp"

	"transferhub/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// HeaderKey is the request header carrying the client's idempotency key.
const HeaderKey = "Idempotency-Key"

// Replay marker headers added to replayed responses.
const (
	HeaderReplayed          = "X-Idempotency-Replayed"
	HeaderOriginalRequestID = "X-Original-Request-Id"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// Middleware applies the idempotency protocol to mutating requests that
// carry an Idempotency-Key header. Requests without a key, or with a
// non-mutating method, bypass the coordinator entirely.
func Middleware(coordinator *Coordinator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		default:
			return c.Next()
		}

		key := c.Get(HeaderKey)
		if key == "" {
			return c.Next()
		}

		if !keyPattern.MatchString(key) {
			return response.BadRequest(c, "Invalid idempotency key format. Use alphanumeric characters with dashes/underscores only (1-255 chars).")
		}

		fingerprint := Fingerprint(c.Method(), c.Path(), c.Body())

		outcome, err := coordinator.Execute(c.UserContext(), key, fingerprint, func() (Response, error) {
			if err := c.Next(); err != nil {
				return Response{}, err
			}

			body := make([]byte, len(c.Response().Body()))
			copy(body, c.Response().Body())

			return Response{
				StatusCode: c.Response().StatusCode(),
				Body:       body,
				Headers: map[string]string{
					fiber.HeaderContentType: string(c.Response().Header.ContentType()),
				},
			}, nil
		})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				return response.Conflict(c, "A request with this idempotency key is already being processed. Please wait or use a different key.")
			}
			return err
		}

		if outcome.Replayed {
			for name, value := range outcome.Response.Headers {
				c.Set(name, value)
			}
			c.Set(HeaderReplayed, "true")
			c.Set(HeaderOriginalRequestID, key)
			return c.Status(outcome.Response.StatusCode).Send(outcome.Response.Body)
		}

		// Fresh execution: the handler already wrote the response.
		return nil
	}
}
