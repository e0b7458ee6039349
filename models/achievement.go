package models

import "time"

type AchievementCriteria string

const (
	CriteriaVisitCount      AchievementCriteria = "visit_count"      // purchase transactions
	CriteriaLifetimePoints  AchievementCriteria = "lifetime_points"  // total_earned
	CriteriaRedemptionCount AchievementCriteria = "redemption_count" // redemption transactions
	CriteriaReferralCount   AchievementCriteria = "referral_count"   // completed referrals
)

// Achievement: static config seeded at startup.
type Achievement struct {
	ID            string              `gorm:"primaryKey;type:uuid" json:"id"`
	Code          string              `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_VISIT"
	Name          string              `gorm:"not null" json:"name"`
	Description   string              `gorm:"type:text" json:"description"`
	Criteria      AchievementCriteria `gorm:"not null" json:"criteria"`
	CriteriaValue int64               `gorm:"not null" json:"criteria_value"`
	PointsReward  int64               `gorm:"not null;default:0" json:"points_reward"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement: earned instance, at most one per (user, achievement).
type UserAchievement struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"not null;index:idx_user_achievement,unique" json:"user_id"`
	AchievementID  string    `gorm:"not null;index:idx_user_achievement,unique" json:"achievement_id"`
	EarnedAt       time.Time `gorm:"autoCreateTime" json:"earned_at"`

	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

// Seed definitions. Thresholds here are defaults; point rewards flow through
// the points engine when earned.
var DefaultAchievements = []Achievement{
	{
		Code:          "FIRST_VISIT",
		Name:          "First Bite",
		Description:   "Made your first purchase",
		Criteria:      CriteriaVisitCount,
		CriteriaValue: 1,
		PointsReward:  25,
	},
	{
		Code:          "REGULAR",
		Name:          "Regular",
		Description:   "10 purchases on record",
		Criteria:      CriteriaVisitCount,
		CriteriaValue: 10,
		PointsReward:  100,
	},
	{
		Code:          "POINTS_500",
		Name:          "Point Collector",
		Description:   "Earned 500 lifetime points",
		Criteria:      CriteriaLifetimePoints,
		CriteriaValue: 500,
		PointsReward:  50,
	},
	{
		Code:          "FIRST_REDEEM",
		Name:          "Treat Yourself",
		Description:   "Redeemed your first reward",
		Criteria:      CriteriaRedemptionCount,
		CriteriaValue: 1,
		PointsReward:  25,
	},
	{
		Code:          "RECRUITER",
		Name:          "Recruiter",
		Description:   "Referred 5 friends",
		Criteria:      CriteriaReferralCount,
		CriteriaValue: 5,
		PointsReward:  200,
	},
}
