package http

import (
	"crypto/subtle"
	"mime"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SecurityHeadersMiddleware sets defensive response headers. API responses
// are never cached.
func SecurityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
		c.Set(fiber.HeaderXFrameOptions, "DENY")
		c.Set(fiber.HeaderReferrerPolicy, "no-referrer")
		c.Set("Permissions-Policy", "geolocation=(), microphone=()")
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	}
}

// MaxBodyMiddleware rejects requests whose body exceeds limit bytes.
func MaxBodyMiddleware(limit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Request().Header.ContentLength() > limit || len(c.Body()) > limit {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "request body too large")
		}
		return c.Next()
	}
}

// EnforceJSONMiddleware requires a JSON content type on requests that carry a body.
func EnforceJSONMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
			mediaType, _, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
			if err != nil || !strings.EqualFold(mediaType, fiber.MIMEApplicationJSON) {
				return fiber.NewError(fiber.StatusUnsupportedMediaType, "content type must be application/json")
			}
		}
		return c.Next()
	}
}

// APIKeyMiddleware requires X-API-Key to match one of keys. With no keys
// configured every request passes.
func APIKeyMiddleware(keys []string) fiber.Handler {
	valid := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			valid = append(valid, []byte(k))
		}
	}

	return func(c *fiber.Ctx) error {
		if len(valid) == 0 {
			return c.Next()
		}
		got := []byte(c.Get(headerAPIKey))
		for _, k := range valid {
			if subtle.ConstantTimeCompare(got, k) == 1 {
				return c.Next()
			}
		}
		return errUnauthorized
	}
}

const headerAPIKey = "X-API-Key"
