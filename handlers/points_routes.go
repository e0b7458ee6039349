// handlers/points_routes.go
package handlers

import (
	"loyalty-points-system/middleware"
	"loyalty-points-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// SetupPointsRoutes wires the user-facing ledger surface: balance, history,
// earning, redeeming, gifting and the offline action sync.
func SetupPointsRoutes(app *fiber.App, engine *services.PointsEngine, history *services.HistoryService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/user/points", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		acct, err := engine.GetAccount(userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(acct)
	})

	secured.Get("/user/transactions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit := c.QueryInt("limit", 20)
		offset := c.QueryInt("offset", 0)

		txs, total, err := history.ListForUser(userID, limit, offset)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"transactions": txs,
			"total":        total,
			"limit":        limit,
			"offset":       offset,
		})
	})

	secured.Post("/user/earn", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Points         int64           `json:"points"`
			Amount         decimal.Decimal `json:"amount"`
			Items          []string        `json:"items"`
			IdempotencyKey string          `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		tx, err := engine.Earn(userID, req.Points, req.Amount, req.Items, req.IdempotencyKey)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tx)
	})

	// QR checkout scan: the token is opaque to this service, the award size
	// comes from config.
	secured.Post("/user/scan", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Token          string `json:"token"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
		}

		tx, err := engine.Earn(userID, engine.Config.ScanAwardPoints, decimal.Zero,
			[]string{"QR Scan"}, req.IdempotencyKey)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tx)
	})

	secured.Post("/user/redeem", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			RewardID       string `json:"reward_id"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.RewardID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_id is required"})
		}

		tx, err := engine.Redeem(userID, req.RewardID, req.IdempotencyKey)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tx)
	})

	secured.Post("/user/gifts", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			RecipientID    string `json:"recipient_id"`
			Points         int64  `json:"points"`
			Message        string `json:"message"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.RecipientID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recipient_id is required"})
		}

		gift, err := engine.GiftPoints(userID, req.RecipientID, req.Points, req.Message, req.IdempotencyKey)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(gift)
	})

	secured.Get("/user/gifts", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		gifts, err := engine.ListGifts(userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(gifts)
	})

	// Offline action sync: queued client actions are replayed through the
	// same engine entry points, never as raw balance writes. Each entry
	// carries its own idempotency key so reconnect replays are safe.
	secured.Post("/user/actions/sync", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Actions []struct {
				Type           string          `json:"type"` // "earn" | "redeem"
				Points         int64           `json:"points"`
				Amount         decimal.Decimal `json:"amount"`
				Items          []string        `json:"items"`
				RewardID       string          `json:"reward_id"`
				IdempotencyKey string          `json:"idempotency_key"`
			} `json:"actions"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		type result struct {
			IdempotencyKey string `json:"idempotency_key"`
			Status         string `json:"status"`
			Error          string `json:"error,omitempty"`
		}
		results := make([]result, 0, len(req.Actions))

		for _, a := range req.Actions {
			r := result{IdempotencyKey: a.IdempotencyKey, Status: "applied"}
			if a.IdempotencyKey == "" {
				r.Status = "rejected"
				r.Error = "idempotency_key is required for replayed actions"
				results = append(results, r)
				continue
			}

			var err error
			switch a.Type {
			case "earn":
				_, err = engine.Earn(userID, a.Points, a.Amount, a.Items, a.IdempotencyKey)
			case "redeem":
				_, err = engine.Redeem(userID, a.RewardID, a.IdempotencyKey)
			default:
				r.Status = "rejected"
				r.Error = "unknown action type"
				results = append(results, r)
				continue
			}
			if err != nil {
				r.Status = "failed"
				r.Error = err.Error()
			}
			results = append(results, r)
		}

		return c.JSON(fiber.Map{"results": results})
	})
}
