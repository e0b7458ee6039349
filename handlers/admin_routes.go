// handlers/admin_routes.go
package handlers

import (
	"time"

	"loyalty-points-system/middleware"
	"loyalty-points-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes wires the staff surface: point adjustments, the balances
// overview, the global transaction feed, role grants and broadcasts.
func SetupAdminRoutes(app *fiber.App, engine *services.PointsEngine, history *services.HistoryService, admin *services.AdminService, announcements *services.AnnouncementService, notify *services.NotifyService) {
	adm := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin(admin))

	adm.Post("/users/:id/points", func(c *fiber.Ctx) error {
		targetID := c.Params("id")
		var req struct {
			Delta  int64  `json:"delta"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		tx, err := engine.Adjust(targetID, req.Delta, req.Reason)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tx)
	})

	adm.Get("/users", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		offset := c.QueryInt("offset", 0)
		accounts, total, err := admin.ListAccounts(limit, offset)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"accounts": accounts,
			"total":    total,
			"limit":    limit,
			"offset":   offset,
		})
	})

	adm.Get("/transactions", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		txs, err := history.ListRecent(limit)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(txs)
	})

	adm.Post("/roles", func(c *fiber.Ctx) error {
		grantedBy := c.Locals("user_id").(string)
		var req struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}

		grant, err := admin.AssignRole(req.UserID, req.Role, grantedBy)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(grant)
	})

	adm.Delete("/roles/:user_id", func(c *fiber.Ctx) error {
		if err := admin.RevokeRole(c.Params("user_id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Role revoked"})
	})

	adm.Post("/announcements", func(c *fiber.Ctx) error {
		createdBy := c.Locals("user_id").(string)
		var req struct {
			Title     string     `json:"title"`
			Body      string     `json:"body"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
		}

		ann, err := announcements.Create(req.Title, req.Body, createdBy, req.ExpiresAt)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ann)
	})

	adm.Delete("/announcements/:id", func(c *fiber.Ctx) error {
		if err := announcements.Deactivate(c.Params("id")); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "Announcement deactivated"})
	})

	// Direct broadcast into the outbox, for one-off pushes that aren't
	// banner announcements.
	adm.Post("/notifications", func(c *fiber.Ctx) error {
		var req struct {
			Kind  string `json:"kind"`
			Title string `json:"title"`
			Body  string `json:"body"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
		}
		if req.Kind == "" {
			req.Kind = "broadcast"
		}

		if err := notify.Broadcast(req.Kind, req.Title, req.Body); err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Notification queued"})
	})
}
