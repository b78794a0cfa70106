package http

import (
	"bytes"
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/metrics"
)

// Idempotency headers.
const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotentReplayed  = "Idempotent-Replayed"
	maxIdempotencyTokenLength = 255
)

// replayedHeaders are kept with a stored response.
var replayedHeaders = []string{fiber.HeaderContentType, fiber.HeaderLocation}

// IdempotencyMiddleware replays the stored response of a POST that repeats an
// Idempotency-Key on the same path. Requests without the header pass through.
func IdempotencyMiddleware(svc *usecases.IdempotencyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(HeaderIdempotencyKey)
		if svc == nil || c.Method() != fiber.MethodPost || token == "" {
			return c.Next()
		}
		if len(token) > maxIdempotencyTokenLength {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key is too long")
		}

		key := usecases.IdempotencyKey(c.Path(), token)
		res, err := svc.Do(c.UserContext(), key, func(context.Context) (ports.StoredResponse, error) {
			if err := c.Next(); err != nil {
				// Render the error now so its response can be stored.
				if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
					return ports.StoredResponse{}, herr
				}
			}
			return snapshot(c), nil
		})
		if err != nil {
			return err
		}
		if !res.Replayed {
			return nil
		}

		metrics.IdempotentReplays.WithLabelValues(c.Route().Path).Inc()
		for name, value := range res.Response.Headers {
			c.Set(name, value)
		}
		c.Set(HeaderIdempotentReplayed, "true")
		return c.Status(res.Response.Status).Send(res.Response.Body)
	}
}

func snapshot(c *fiber.Ctx) ports.StoredResponse {
	resp := ports.StoredResponse{
		Status:  c.Response().StatusCode(),
		Headers: make(map[string]string, len(replayedHeaders)),
		Body:    bytes.Clone(c.Response().Body()),
	}
	for _, name := range replayedHeaders {
		if v := c.GetRespHeader(name); v != "" {
			resp.Headers[name] = v
		}
	}
	return resp
}
