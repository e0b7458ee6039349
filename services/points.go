package services

import (
	"errors"
	"fmt"
	"log"

	"loyalty-points-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointsEngine is the sole authority for mutating a user's point balance.
// Every balance change is a conditional single-statement update paired with
// an append-only Transaction record inside one store transaction, so a crash
// or a concurrent writer can never leave the ledger and the balance apart.
type PointsEngine struct {
	DB     *gorm.DB
	Config LoyaltyConfig

	// Notify may be nil (e.g. in tests); enqueues ride the same store
	// transaction as the balance change.
	Notify *NotifyService

	// Achievements is evaluated after successful mutations. Set after
	// construction because the evaluator awards bonuses back through the
	// engine.
	Achievements *AchievementService
}

func NewPointsEngine(db *gorm.DB, cfg LoyaltyConfig, notify *NotifyService) *PointsEngine {
	return &PointsEngine{DB: db, Config: cfg, Notify: notify}
}

// errCASConflict is internal: a compare-and-set attempt lost the race and the
// enclosing loop should retry with fresh state.
var errCASConflict = errors.New("cas conflict")

// storeErr wraps unexpected store failures so callers see ErrStoreUnavailable
// while the sentinel taxonomy passes through untouched.
func storeErr(err error) error {
	if err == nil || IsClientError(err) || IsRetryable(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// GetAccount returns the user's points account, creating the zero-balance row
// on first touch (accounts are created implicitly on first contact).
func (e *PointsEngine) GetAccount(userID string) (*models.UserPointsAccount, error) {
	var acct models.UserPointsAccount
	err := e.DB.Where("external_user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = models.UserPointsAccount{ID: uuid.NewString(), ExternalUserID: userID}
		if err := e.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}},
			DoNothing: true,
		}).Create(&acct).Error; err != nil {
			return nil, storeErr(err)
		}
		// Re-read in case a concurrent first touch won the insert.
		if err := e.DB.Where("external_user_id = ?", userID).First(&acct).Error; err != nil {
			return nil, storeErr(err)
		}
		return &acct, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &acct, nil
}

// ensureAccount makes sure the balance row exists inside tx without touching
// an existing one.
func (e *PointsEngine) ensureAccount(tx *gorm.DB, userID string) error {
	acct := models.UserPointsAccount{ID: uuid.NewString(), ExternalUserID: userID}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoNothing: true,
	}).Create(&acct).Error
}

// findByIdemKey returns the already-recorded transaction for a replayed
// idempotency key, or nil when the key is unseen.
func (e *PointsEngine) findByIdemKey(tx *gorm.DB, userID, key string) (*models.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	var existing models.Transaction
	err := tx.Where("external_user_id = ? AND idempotency_key = ?", userID, key).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// Earn credits points for a purchase. Replaying the same idempotency key
// returns the original transaction without a second balance change.
func (e *PointsEngine) Earn(userID string, points int64, amount decimal.Decimal, items []string, idemKey string) (*models.Transaction, error) {
	rec, err := e.earn(userID, points, amount, items, idemKey)
	if err != nil {
		return nil, err
	}
	e.evaluateAchievements(userID)
	return rec, nil
}

// earn is the internal credit path. The achievement evaluator uses it
// directly so bonus credits don't re-trigger evaluation mid-evaluation.
func (e *PointsEngine) earn(userID string, points int64, amount decimal.Decimal, items []string, idemKey string) (*models.Transaction, error) {
	if points <= 0 || amount.IsNegative() || len(items) == 0 {
		return nil, ErrInvalidAmount
	}

	var out *models.Transaction
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := e.findByIdemKey(tx, userID, idemKey)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		if err := e.ensureAccount(tx, userID); err != nil {
			return err
		}

		res := tx.Model(&models.UserPointsAccount{}).
			Where("external_user_id = ?", userID).
			Updates(map[string]interface{}{
				"current_points": gorm.Expr("current_points + ?", points),
				"total_earned":   gorm.Expr("total_earned + ?", points),
			})
		if res.Error != nil {
			return res.Error
		}

		rec := &models.Transaction{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			Type:           models.TransactionTypePurchase,
			PointsEarned:   points,
			Amount:         amount,
			Items:          models.ItemList(items),
			IdempotencyKey: idemKey,
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		e.Notify.Enqueue(tx, userID, "points_earned",
			fmt.Sprintf("+%d points", points),
			fmt.Sprintf("You earned %d points. Keep it up!", points))

		out = rec
		return nil
	})
	if err != nil {
		// A racing replay of the same key hits the unique index; the first
		// write is the one that counts.
		if errors.Is(err, gorm.ErrDuplicatedKey) && idemKey != "" {
			if existing, ferr := e.findByIdemKey(e.DB, userID, idemKey); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, storeErr(err)
	}
	return out, nil
}

// Redeem spends points on a reward. The cost is always read from the fresh
// reward row; client-side state is never trusted. The decrement is a single
// conditional update, so N concurrent redeems over one redemption's worth of
// points leave exactly one winner.
func (e *PointsEngine) Redeem(userID, rewardID, idemKey string) (*models.Transaction, error) {
	var out *models.Transaction
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := e.findByIdemKey(tx, userID, idemKey)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		var reward models.Reward
		if err := tx.First(&reward, "id = ?", rewardID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRewardNotFound
			}
			return err
		}
		if !reward.Available {
			return ErrRewardUnavailable
		}

		cost := reward.PointsCost
		res := tx.Model(&models.UserPointsAccount{}).
			Where("external_user_id = ? AND current_points >= ?", userID, cost).
			Updates(map[string]interface{}{
				"current_points": gorm.Expr("current_points - ?", cost),
				"total_redeemed": gorm.Expr("total_redeemed + ?", cost),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var acct models.UserPointsAccount
			if err := tx.Where("external_user_id = ?", userID).First(&acct).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &InsufficientPointsError{UserID: userID, Available: 0, Requested: cost}
				}
				return err
			}
			return &InsufficientPointsError{UserID: userID, Available: acct.CurrentPoints, Requested: cost}
		}

		rec := &models.Transaction{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			Type:           models.TransactionTypeRedemption,
			PointsRedeemed: cost,
			Amount:         decimal.Zero,
			Items:          models.ItemList{reward.Name},
			IdempotencyKey: idemKey,
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		e.Notify.Enqueue(tx, userID, "reward_redeemed",
			"Reward redeemed",
			fmt.Sprintf("Enjoy your %s! (%d points)", reward.Name, cost))

		out = rec
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && idemKey != "" {
			if existing, ferr := e.findByIdemKey(e.DB, userID, idemKey); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, storeErr(err)
	}
	e.evaluateAchievements(userID)
	return out, nil
}

// GiftPoints moves points between two accounts: conditional debit on the
// sender, credit on the recipient, two Transactions and one PointGift record,
// all in one store transaction. Both sides commit or neither does.
func (e *PointsEngine) GiftPoints(senderID, recipientID string, points int64, message, idemKey string) (*models.PointGift, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	if senderID == recipientID {
		return nil, ErrCannotGiftSelf
	}

	var gift *models.PointGift
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		if idemKey != "" {
			var existing models.PointGift
			err := tx.Where("sender_id = ? AND idempotency_key = ?", senderID, idemKey).First(&existing).Error
			if err == nil {
				gift = &existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		// Recipient must resolve to an existing account; gifts never create
		// accounts on the receiving side.
		var recip models.UserPointsAccount
		if err := tx.Where("external_user_id = ?", recipientID).First(&recip).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}

		res := tx.Model(&models.UserPointsAccount{}).
			Where("external_user_id = ? AND current_points >= ?", senderID, points).
			Updates(map[string]interface{}{
				"current_points": gorm.Expr("current_points - ?", points),
				"total_redeemed": gorm.Expr("total_redeemed + ?", points),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var sender models.UserPointsAccount
			if err := tx.Where("external_user_id = ?", senderID).First(&sender).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &InsufficientPointsError{UserID: senderID, Available: 0, Requested: points}
				}
				return err
			}
			return &InsufficientPointsError{UserID: senderID, Available: sender.CurrentPoints, Requested: points}
		}

		if err := tx.Model(&models.UserPointsAccount{}).
			Where("external_user_id = ?", recipientID).
			Updates(map[string]interface{}{
				"current_points": gorm.Expr("current_points + ?", points),
				"total_earned":   gorm.Expr("total_earned + ?", points),
			}).Error; err != nil {
			return err
		}

		debit := &models.Transaction{
			ID:             uuid.NewString(),
			ExternalUserID: senderID,
			Type:           models.TransactionTypeRedemption,
			PointsRedeemed: points,
			Amount:         decimal.Zero,
			Items:          models.ItemList{fmt.Sprintf("Gift to %s", recipientID)},
			IdempotencyKey: idemKey,
		}
		credit := &models.Transaction{
			ID:             uuid.NewString(),
			ExternalUserID: recipientID,
			Type:           models.TransactionTypePurchase,
			PointsEarned:   points,
			Amount:         decimal.Zero,
			Items:          models.ItemList{"Gift received"},
		}
		if err := tx.Create(debit).Error; err != nil {
			return err
		}
		if err := tx.Create(credit).Error; err != nil {
			return err
		}

		g := &models.PointGift{
			ID:             uuid.NewString(),
			SenderID:       senderID,
			RecipientID:    recipientID,
			Points:         points,
			Message:        message,
			Status:         models.GiftStatusCompleted,
			IdempotencyKey: idemKey,
		}
		if err := tx.Create(g).Error; err != nil {
			return err
		}

		e.Notify.Enqueue(tx, recipientID, "gift_received",
			"You received a gift!",
			fmt.Sprintf("%d points from a friend", points))

		gift = g
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && idemKey != "" {
			var existing models.PointGift
			if ferr := e.DB.Where("sender_id = ? AND idempotency_key = ?", senderID, idemKey).First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, storeErr(err)
	}
	e.evaluateAchievements(recipientID)
	return gift, nil
}

// ListGifts returns gifts the user sent or received, newest first.
func (e *PointsEngine) ListGifts(userID string) ([]models.PointGift, error) {
	var gifts []models.PointGift
	err := e.DB.Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&gifts).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return gifts, nil
}

// Adjust applies a staff point correction. A credit behaves like an earn; a
// debit larger than the balance clamps to zero and records only the amount
// actually removed, keeping current == earned - redeemed intact. The clamp
// needs a read, so the debit path is compare-and-set with bounded retries.
func (e *PointsEngine) Adjust(userID string, delta int64, reason string) (*models.Transaction, error) {
	if delta == 0 || reason == "" {
		return nil, ErrInvalidAmount
	}

	if delta > 0 {
		var out *models.Transaction
		err := e.DB.Transaction(func(tx *gorm.DB) error {
			if err := e.ensureAccount(tx, userID); err != nil {
				return err
			}
			res := tx.Model(&models.UserPointsAccount{}).
				Where("external_user_id = ?", userID).
				Updates(map[string]interface{}{
					"current_points": gorm.Expr("current_points + ?", delta),
					"total_earned":   gorm.Expr("total_earned + ?", delta),
				})
			if res.Error != nil {
				return res.Error
			}
			rec := &models.Transaction{
				ID:             uuid.NewString(),
				ExternalUserID: userID,
				Type:           models.TransactionTypeAdminCredit,
				PointsEarned:   delta,
				Amount:         decimal.Zero,
				Items:          models.ItemList{reason},
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			out = rec
			return nil
		})
		if err != nil {
			return nil, storeErr(err)
		}
		return out, nil
	}

	requested := -delta
	for attempt := 0; attempt < e.Config.CASRetryLimit; attempt++ {
		var out *models.Transaction
		err := e.DB.Transaction(func(tx *gorm.DB) error {
			var acct models.UserPointsAccount
			if err := tx.Where("external_user_id = ?", userID).First(&acct).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAccountNotFound
				}
				return err
			}

			removed := requested
			if acct.CurrentPoints < removed {
				removed = acct.CurrentPoints
			}
			if removed == 0 {
				return &InsufficientPointsError{UserID: userID, Available: 0, Requested: requested}
			}

			res := tx.Model(&models.UserPointsAccount{}).
				Where("external_user_id = ? AND current_points = ?", userID, acct.CurrentPoints).
				Updates(map[string]interface{}{
					"current_points": gorm.Expr("current_points - ?", removed),
					"total_redeemed": gorm.Expr("total_redeemed + ?", removed),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errCASConflict
			}

			rec := &models.Transaction{
				ID:             uuid.NewString(),
				ExternalUserID: userID,
				Type:           models.TransactionTypeAdminDebit,
				PointsRedeemed: removed,
				Amount:         decimal.Zero,
				Items:          models.ItemList{reason},
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			out = rec
			return nil
		})
		if errors.Is(err, errCASConflict) {
			log.Printf("[PointsEngine] adjust CAS conflict for %s, attempt %d", userID, attempt+1)
			continue
		}
		if err != nil {
			return nil, storeErr(err)
		}
		return out, nil
	}
	return nil, ErrConcurrentModification
}

// evaluateAchievements is fire-and-forget after a successful mutation; a
// failed evaluation never fails the mutation that triggered it.
func (e *PointsEngine) evaluateAchievements(userID string) {
	if e.Achievements == nil {
		return
	}
	if _, err := e.Achievements.Evaluate(userID); err != nil {
		log.Printf("[PointsEngine] achievement evaluation failed for %s: %v", userID, err)
	}
}
