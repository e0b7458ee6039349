// handlers/common.go
package handlers

import (
	"errors"

	"loyalty-points-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps the engine's error taxonomy onto HTTP statuses so every
// route reports failures the same way.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrCannotGiftSelf):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrRewardNotFound),
		errors.Is(err, services.ErrRecipientNotFound),
		errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrReferralCodeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInsufficientPoints),
		errors.Is(err, services.ErrRewardUnavailable),
		errors.Is(err, services.ErrAlreadyReferred),
		errors.Is(err, services.ErrConcurrentModification):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}
