package models

import "time"

// ReferralCode is each user's shareable invite code.
type ReferralCode struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"user_id"`
	Code           string    `gorm:"uniqueIndex;not null" json:"code"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Referral tracks a completed signup through someone's code and whether the
// point bonuses were paid out. A user can be referred at most once.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"`

	ReferralCodeUsed string     `gorm:"not null" json:"referral_code_used"`
	BonusAwarded     bool       `json:"bonus_awarded" gorm:"default:false"`
	AwardedAt        *time.Time `json:"awarded_at,omitempty"`

	Timestamps
}
