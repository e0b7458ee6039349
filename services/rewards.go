// services/rewards.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"loyalty-points-system/models"
	"loyalty-points-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

func validCategory(c models.RewardCategory) bool {
	switch c {
	case models.RewardCategoryFood, models.RewardCategoryDrink, models.RewardCategorySpecial:
		return true
	}
	return false
}

// --- User Handlers ---

// GetCatalog lists rewards for the app's reward screen, cheapest first.
// Pass ?category= to filter; unavailable rewards are included only with
// ?include_unavailable=true so the UI can grey them out.
func (s *RewardService) GetCatalog(c *fiber.Ctx) error {
	query := s.DB.Model(&models.Reward{})

	if cat := strings.ToLower(c.Query("category")); cat != "" {
		if !validCategory(models.RewardCategory(cat)) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category"})
		}
		query = query.Where("category = ?", cat)
	}
	if c.Query("include_unavailable") != "true" {
		query = query.Where("available = ?", true)
	}

	var rewards []models.Reward
	if err := query.Order("points_cost ASC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching reward catalog: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// --- Admin Handlers ---

// CreateReward creates a new reward (Admin only)
func (s *RewardService) CreateReward(c *fiber.Ctx) error {
	var req struct {
		Name        string                `json:"name"`
		Description string                `json:"description"`
		PointsCost  int64                 `json:"points_cost"`
		Category    models.RewardCategory `json:"category"`
		Available   *bool                 `json:"available"`
		ImageURL    string                `json:"image_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}
	if req.PointsCost <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points_cost must be positive"})
	}
	if !validCategory(req.Category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category"})
	}

	reward := &models.Reward{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		PointsCost:  req.PointsCost,
		Category:    req.Category,
		Available:   true,
		ImageURL:    req.ImageURL,
	}
	if req.Available != nil {
		reward.Available = *req.Available
	}

	if err := s.DB.Create(reward).Error; err != nil {
		log.Printf("DB Error creating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reward"})
	}
	return c.Status(fiber.StatusCreated).JSON(reward)
}

// UpdateReward updates an existing reward (Admin only)
func (s *RewardService) UpdateReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var existing models.Reward
	if err := s.DB.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Name        *string                `json:"name"`
		Description *string                `json:"description"`
		PointsCost  *int64                 `json:"points_cost"`
		Category    *models.RewardCategory `json:"category"`
		Available   *bool                  `json:"available"`
		ImageURL    *string                `json:"image_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.PointsCost != nil {
		if *req.PointsCost <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points_cost must be positive"})
		}
		existing.PointsCost = *req.PointsCost
	}
	if req.Category != nil {
		if !validCategory(*req.Category) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category"})
		}
		existing.Category = *req.Category
	}
	if req.Available != nil {
		existing.Available = *req.Available
	}
	if req.ImageURL != nil {
		existing.ImageURL = *req.ImageURL
	}

	if err := s.DB.Save(&existing).Error; err != nil {
		log.Printf("DB Error updating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
	}
	return c.JSON(existing)
}

// DeleteReward soft-deletes a reward (Admin only). History keeps the reward
// name inside old transactions, so deletion never rewrites the ledger.
func (s *RewardService) DeleteReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&reward).Error; err != nil {
		log.Printf("DB Error deleting reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete reward"})
	}
	return c.JSON(fiber.Map{"message": "Reward deleted successfully"})
}

// GetAllRewards fetches every reward including unavailable and soft-deleted
// drafts-in-progress (Admin only).
func (s *RewardService) GetAllRewards(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Order("created_at DESC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching all rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// UploadRewardImage stores a reward image in R2 and saves the CDN URL.
func (s *RewardService) UploadRewardImage(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image file is required"})
	}

	key := fmt.Sprintf("rewards/%s-%s", slug.Make(reward.Name), reward.ID)
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("R2 upload failed for reward %s: %v", reward.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload image"})
	}

	reward.ImageURL = url
	if err := s.DB.Save(&reward).Error; err != nil {
		log.Printf("DB Error saving reward image URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save image URL"})
	}
	return c.JSON(fiber.Map{"message": "Image uploaded", "image_url": url})
}
