// handlers/rewards_routes.go
package handlers

import (
	"loyalty-points-system/middleware"
	"loyalty-points-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupRewardRoutes wires the reward catalog for users plus the admin CRUD
// surface.
func SetupRewardRoutes(app *fiber.App, rewards *services.RewardService, admin *services.AdminService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Get("/rewards", rewards.GetCatalog)

	adm := secured.Group("/admin", middleware.RequireAdmin(admin))
	adm.Get("/rewards", rewards.GetAllRewards)
	adm.Post("/rewards", rewards.CreateReward)
	adm.Put("/rewards/:id", rewards.UpdateReward)
	adm.Delete("/rewards/:id", rewards.DeleteReward)
	adm.Post("/rewards/:id/image", rewards.UploadRewardImage)
}
