// handlers/social_routes.go
package handlers

import (
	"loyalty-points-system/middleware"
	"loyalty-points-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupSocialRoutes wires achievements, the referral program and the
// announcements banner.
func SetupSocialRoutes(app *fiber.App, achievements *services.AchievementService, referrals *services.ReferralService, announcements *services.AnnouncementService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/achievements", func(c *fiber.Ctx) error {
		all, err := achievements.ListAll()
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(all)
	})

	secured.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		earned, err := achievements.ListForUser(userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(earned)
	})

	// Explicit re-evaluation hook for the achievements screen's refresh
	// action. Safe to hammer: evaluation never awards twice.
	secured.Post("/user/achievements/evaluate", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		newlyEarned, err := achievements.Evaluate(userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"newly_earned": newlyEarned})
	})

	secured.Get("/user/referral-code", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		code, err := referrals.GetCode(userID)
		if err != nil {
			return fail(c, err)
		}
		if code == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no referral code yet"})
		}
		return c.JSON(code)
	})

	secured.Post("/user/referral-code", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		code, err := referrals.EnsureCode(userID)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(code)
	})

	secured.Get("/user/referrals", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		refs, err := referrals.ListForReferrer(userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(refs)
	})

	secured.Post("/user/referrals/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Code == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required"})
		}

		ref, err := referrals.Complete(userID, req.Code)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ref)
	})

	secured.Get("/announcements", func(c *fiber.Ctx) error {
		anns, err := announcements.ListActive()
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(anns)
	})
}
