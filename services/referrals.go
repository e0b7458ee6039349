package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"loyalty-points-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReferralService manages invite codes and pays out both sides of a
// completed referral through the points engine.
type ReferralService struct {
	DB     *gorm.DB
	Engine *PointsEngine
	Config LoyaltyConfig
}

func NewReferralService(db *gorm.DB, engine *PointsEngine, cfg LoyaltyConfig) *ReferralService {
	return &ReferralService{DB: db, Engine: engine, Config: cfg}
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// GetCode returns the user's referral code, or nil if none was generated yet.
func (s *ReferralService) GetCode(userID string) (*models.ReferralCode, error) {
	var code models.ReferralCode
	err := s.DB.Where("external_user_id = ?", userID).First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &code, nil
}

// EnsureCode returns the existing code or mints a new one.
func (s *ReferralService) EnsureCode(userID string) (*models.ReferralCode, error) {
	existing, err := s.GetCode(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	raw, err := generateCode()
	if err != nil {
		return nil, storeErr(err)
	}
	code := models.ReferralCode{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Code:           raw,
	}
	if err := s.DB.Create(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.GetCode(userID)
		}
		return nil, storeErr(err)
	}
	return &code, nil
}

// ListForReferrer returns the referrals credited to a user, newest first.
func (s *ReferralService) ListForReferrer(userID string) ([]models.Referral, error) {
	var refs []models.Referral
	err := s.DB.Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Find(&refs).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return refs, nil
}

// Complete records that referredID signed up through code and pays both
// bonuses. A user can only ever be referred once; the payouts carry
// deterministic idempotency keys so a retried completion cannot double-pay.
// A replay against a referral whose payouts never landed resumes them instead
// of rejecting, so a crash between the row commit and the bonuses is
// recoverable.
func (s *ReferralService) Complete(referredID, code string) (*models.Referral, error) {
	var refCode models.ReferralCode
	if err := s.DB.Where("code = ?", code).First(&refCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralCodeNotFound
		}
		return nil, storeErr(err)
	}
	if refCode.ExternalUserID == referredID {
		return nil, ErrCannotGiftSelf
	}

	ref := models.Referral{
		ID:               uuid.NewString(),
		ReferrerID:       refCode.ExternalUserID,
		ReferredID:       referredID,
		ReferralCodeUsed: refCode.Code,
	}
	if err := s.DB.Create(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.resumeExisting(referredID)
		}
		return nil, storeErr(err)
	}

	return s.awardBonuses(&ref)
}

// resumeExisting handles a Complete replay: an already-paid referral is a
// hard rejection, an unpaid one (crash before the payouts) gets its bonuses
// finished.
func (s *ReferralService) resumeExisting(referredID string) (*models.Referral, error) {
	var existing models.Referral
	if err := s.DB.Where("referred_id = ?", referredID).First(&existing).Error; err != nil {
		return nil, storeErr(err)
	}
	if existing.BonusAwarded {
		return nil, ErrAlreadyReferred
	}
	log.Printf("[Referrals] resuming unpaid bonuses for referral %s", existing.ID)
	return s.awardBonuses(&existing)
}

// awardBonuses pays both sides and marks the referral awarded. The payouts
// ride on the referral row's identity; replaying them is a no-op.
func (s *ReferralService) awardBonuses(ref *models.Referral) (*models.Referral, error) {
	referrerKey := fmt.Sprintf("referral:%s:referrer", ref.ID)
	referredKey := fmt.Sprintf("referral:%s:referred", ref.ID)

	if _, err := s.Engine.Earn(ref.ReferrerID, s.Config.ReferralBonusReferrer, decimal.Zero,
		[]string{"Referral bonus"}, referrerKey); err != nil {
		return nil, err
	}
	if _, err := s.Engine.Earn(ref.ReferredID, s.Config.ReferralBonusReferred, decimal.Zero,
		[]string{"Welcome bonus"}, referredKey); err != nil {
		return nil, err
	}

	now := time.Now()
	ref.BonusAwarded = true
	ref.AwardedAt = &now
	if err := s.DB.Save(ref).Error; err != nil {
		return nil, storeErr(err)
	}
	return ref, nil
}
