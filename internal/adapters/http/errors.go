package http

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Error     string              `json:"error"`   // Error code: validation_error, not_found, unavailable, etc.
	Message   string              `json:"message"` // Human-readable message
	RequestID string              `json:"request_id,omitempty"`
	Fields    []domain.FieldError `json:"fields,omitempty"`
}

// ErrorHandler converts errors returned by handlers and middleware into
// APIError responses. It is installed as the Fiber ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, apiErr := classify(err)
	apiErr.RequestID = requestID(c)

	var limited *usecases.RateLimitedError
	if errors.As(err, &limited) {
		secs := int(math.Ceil(limited.RetryAfter.Seconds()))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(secs, 1)))
	}

	if status >= 500 {
		logging.FromContext(c.UserContext()).Error("request failed",
			"method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(apiErr)
}

func classify(err error) (int, APIError) {
	var verr domain.ValidationErrors
	switch {
	case errors.As(err, &verr):
		return fiber.StatusUnprocessableEntity, APIError{
			Error:   "validation_error",
			Message: "the given data was invalid",
			Fields:  verr,
		}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, APIError{Error: "not_found", Message: "resource not found"}
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests, APIError{Error: "rate_limited", Message: "too many requests, please try again later"}
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return fiber.StatusConflict, APIError{Error: "conflict", Message: "a request with this idempotency key is still in progress"}
	case errors.Is(err, domain.ErrUnavailable):
		return fiber.StatusServiceUnavailable, APIError{Error: "unavailable", Message: "a backing service is unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, APIError{Error: "timeout", Message: "request timed out"}
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return fiberStatus(ferr)
	}
	return fiber.StatusInternalServerError, APIError{Error: "internal_error", Message: "internal server error"}
}

func fiberStatus(ferr *fiber.Error) (int, APIError) {
	switch ferr.Code {
	case fiber.StatusRequestTimeout, fiber.StatusGatewayTimeout:
		return fiber.StatusGatewayTimeout, APIError{Error: "timeout", Message: "request timed out"}
	case fiber.StatusUnauthorized:
		return ferr.Code, APIError{Error: "unauthorized", Message: ferr.Message}
	case fiber.StatusRequestEntityTooLarge:
		return ferr.Code, APIError{Error: "payload_too_large", Message: ferr.Message}
	case fiber.StatusUnsupportedMediaType:
		return ferr.Code, APIError{Error: "unsupported_media_type", Message: ferr.Message}
	case fiber.StatusNotFound:
		return ferr.Code, APIError{Error: "not_found", Message: ferr.Message}
	}
	if ferr.Code >= 500 {
		return ferr.Code, APIError{Error: "internal_error", Message: "internal server error"}
	}
	code := strings.ToLower(strings.ReplaceAll(ferr.Message, " ", "_"))
	return ferr.Code, APIError{Error: code, Message: ferr.Message}
}

func requestID(c *fiber.Ctx) string {
	if rid, ok := c.Locals("requestid").(string); ok {
		return rid
	}
	return ""
}

// errUnauthorized is returned when the API key is missing or unknown.
var errUnauthorized = fiber.NewError(fiber.StatusUnauthorized, "a valid X-API-Key header is required")
