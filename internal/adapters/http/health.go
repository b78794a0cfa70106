package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by /healthz. Overridden at build time with -ldflags.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler() fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"ok":      true,
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": Version,
		})
	}
}

// ReadyHandler pings every configured dependency.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps.Readiness))
		allOK := true
		for _, check := range deps.Readiness {
			if err := check.Pinger.Ping(ctx); err != nil {
				checks[check.Name] = "error: " + err.Error()
				allOK = false
				continue
			}
			checks[check.Name] = "ok"
		}

		code := fiber.StatusOK
		if !allOK {
			code = fiber.StatusServiceUnavailable
			LoggerFromCtx(c).Warn("readiness check failed", "checks", checks)
		}
		return c.Status(code).JSON(fiber.Map{
			"ok":     allOK,
			"checks": checks,
		})
	}
}
