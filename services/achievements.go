package services

import (
	"errors"
	"fmt"
	"log"

	"loyalty-points-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AchievementService decides which achievements a user has newly unlocked and
// pays out their bonuses through the points engine. Evaluation is idempotent:
// the (user, achievement) unique index blocks duplicate earned records, and
// the bonus credit carries a deterministic idempotency key, so evaluating
// twice can never award twice.
type AchievementService struct {
	DB     *gorm.DB
	Engine *PointsEngine
}

func NewAchievementService(db *gorm.DB, engine *PointsEngine) *AchievementService {
	return &AchievementService{DB: db, Engine: engine}
}

// SeedDefaults inserts the built-in achievement definitions, skipping codes
// that already exist so redeploys don't duplicate them.
func (s *AchievementService) SeedDefaults() error {
	for _, a := range models.DefaultAchievements {
		var count int64
		if err := s.DB.Model(&models.Achievement{}).Where("code = ?", a.Code).Count(&count).Error; err != nil {
			return storeErr(err)
		}
		if count > 0 {
			continue
		}
		a.ID = uuid.NewString()
		if err := s.DB.Create(&a).Error; err != nil {
			return storeErr(err)
		}
	}
	return nil
}

// ListForUser returns earned achievements newest-first, definitions included.
func (s *AchievementService) ListForUser(userID string) ([]models.UserAchievement, error) {
	var earned []models.UserAchievement
	err := s.DB.Where("external_user_id = ?", userID).
		Preload("Achievement").
		Order("earned_at DESC").
		Find(&earned).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return earned, nil
}

// ListAll returns every achievement definition ordered by threshold.
func (s *AchievementService) ListAll() ([]models.Achievement, error) {
	var all []models.Achievement
	if err := s.DB.Order("criteria_value ASC").Find(&all).Error; err != nil {
		return nil, storeErr(err)
	}
	return all, nil
}

// Evaluate checks every definition against the user's current state and
// returns the IDs of achievements earned by this call.
func (s *AchievementService) Evaluate(userID string) ([]string, error) {
	var defs []models.Achievement
	if err := s.DB.Find(&defs).Error; err != nil {
		return nil, storeErr(err)
	}

	var acct models.UserPointsAccount
	if err := s.DB.Where("external_user_id = ?", userID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // nothing earned yet, nothing to evaluate
		}
		return nil, storeErr(err)
	}

	var newlyEarned []string
	for _, def := range defs {
		met, err := s.meetsCriteria(userID, &acct, &def)
		if err != nil {
			return newlyEarned, err
		}
		if !met {
			continue
		}

		var count int64
		if err := s.DB.Model(&models.UserAchievement{}).
			Where("external_user_id = ? AND achievement_id = ?", userID, def.ID).
			Count(&count).Error; err != nil {
			return newlyEarned, storeErr(err)
		}

		if count == 0 {
			earned := models.UserAchievement{
				ID:             uuid.NewString(),
				ExternalUserID: userID,
				AchievementID:  def.ID,
			}
			err := s.DB.Create(&earned).Error
			switch {
			case err == nil:
				newlyEarned = append(newlyEarned, def.ID)
				log.Printf("[Achievements] %s earned %q", userID, def.Name)
			case errors.Is(err, gorm.ErrDuplicatedKey):
				// lost a race to another evaluation, already earned
			default:
				return newlyEarned, storeErr(err)
			}
		}

		if def.PointsReward > 0 {
			// The bonus is attempted on every evaluation, not just the one
			// that created the earned row: the deterministic key makes a
			// replay a no-op, and a crash between the row and the payout is
			// healed by the next evaluation.
			key := fmt.Sprintf("achievement:%s", def.ID)
			if _, err := s.Engine.earn(userID, def.PointsReward, decimal.Zero,
				[]string{fmt.Sprintf("Achievement: %s", def.Name)}, key); err != nil {
				log.Printf("[Achievements] bonus payout failed for %s/%s: %v", userID, def.Code, err)
			}
		}
	}
	return newlyEarned, nil
}

func (s *AchievementService) meetsCriteria(userID string, acct *models.UserPointsAccount, def *models.Achievement) (bool, error) {
	switch def.Criteria {
	case models.CriteriaLifetimePoints:
		return acct.TotalEarned >= def.CriteriaValue, nil
	case models.CriteriaVisitCount:
		n, err := s.countTransactions(userID, models.TransactionTypePurchase)
		return n >= def.CriteriaValue, err
	case models.CriteriaRedemptionCount:
		n, err := s.countTransactions(userID, models.TransactionTypeRedemption)
		return n >= def.CriteriaValue, err
	case models.CriteriaReferralCount:
		var n int64
		err := s.DB.Model(&models.Referral{}).
			Where("referrer_id = ? AND bonus_awarded = ?", userID, true).
			Count(&n).Error
		if err != nil {
			return false, storeErr(err)
		}
		return n >= def.CriteriaValue, nil
	default:
		return false, nil
	}
}

func (s *AchievementService) countTransactions(userID string, txType models.TransactionType) (int64, error) {
	var n int64
	err := s.DB.Model(&models.Transaction{}).
		Where("external_user_id = ? AND type = ?", userID, txType).
		Count(&n).Error
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
