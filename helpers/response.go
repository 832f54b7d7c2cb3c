package helpers

import (
	"github.com/gofiber/fiber/v2"

	"lotto/services"
)

func JSONSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// JSONError maps the service error taxonomy onto HTTP status classes.
// Internal failures never leak detail to the caller.
func JSONError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	message := err.Error()
	if kind == services.KindInternal {
		message = "internal error"
	}
	return c.Status(statusFor(kind)).JSON(fiber.Map{
		"success": false,
		"error":   string(kind),
		"message": message,
		"data":    nil,
	})
}

// JSONBadRequest reports a malformed request body or parameter.
func JSONBadRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   string(services.KindInvalidInput),
		"message": message,
		"data":    nil,
	})
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindConflict, services.KindInvalidTransition:
		return fiber.StatusConflict
	case services.KindInternal:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}
