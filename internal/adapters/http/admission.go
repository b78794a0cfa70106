package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/storemap/internal/core/usecases"
)

// AdmissionMiddleware charges the request to the caller's budget in class.
// Callers are identified by API key when present, otherwise by IP.
func AdmissionMiddleware(ctrl *usecases.AdmissionController, class usecases.AdmissionClass) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ctrl == nil {
			return c.Next()
		}
		if err := ctrl.Admit(c.UserContext(), class, callerIdentity(c)); err != nil {
			return err
		}
		return c.Next()
	}
}

func callerIdentity(c *fiber.Ctx) string {
	if key := c.Get(headerAPIKey); key != "" {
		return "key:" + key
	}
	return "ip:" + c.IP()
}
