// middleware/admin.go
package middleware

import (
	"log"

	"loyalty-points-system/services"

	"github.com/gofiber/fiber/v2"
)

// RequireAdmin gates staff routes. The gateway's role header is enough; for
// callers without it we fall back to the staff role table so freshly-granted
// admins work before their session is reissued.
func RequireAdmin(admin *services.AdminService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
		}

		if roles, ok := c.Locals("user_roles").([]string); ok {
			for _, r := range roles {
				if r == "admin" {
					return c.Next()
				}
			}
		}

		isAdmin, err := admin.IsAdmin(userID)
		if err != nil {
			log.Printf("[ADMIN] role lookup failed for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "role lookup failed"})
		}
		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin role required"})
		}
		return c.Next()
	}
}
