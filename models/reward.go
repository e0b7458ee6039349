package models

import (
	"time"
	gorm "gorm.io/gorm"
)

type RewardCategory string

const (
	RewardCategoryFood    RewardCategory = "food"
	RewardCategoryDrink   RewardCategory = "drink"
	RewardCategorySpecial RewardCategory = "special"
)

// Reward is a catalog entry users can redeem points against.
// Redemption transactions reference a reward by name, not by row, so catalog
// edits never rewrite history.
type Reward struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	PointsCost  int64          `gorm:"not null" json:"points_cost"`
	Category    RewardCategory `gorm:"not null" json:"category"`
	Available   bool           `gorm:"default:true;index" json:"available"`
	ImageURL    string         `gorm:"type:text" json:"image_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
