package models

import (
	"time"

	"gorm.io/gorm"
)

// UserPointsAccount is the single mutable row per user. Every balance change
// goes through the points engine; nothing else writes these columns.
type UserPointsAccount struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"user_id"` // from gateway X-User-ID

	CurrentPoints int64 `json:"current_points" gorm:"not null;default:0"`
	TotalEarned   int64 `json:"total_earned" gorm:"not null;default:0"`
	TotalRedeemed int64 `json:"total_redeemed" gorm:"not null;default:0"`

	Timestamps
}

func (UserPointsAccount) TableName() string {
	return "user_points"
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
