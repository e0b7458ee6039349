package services_test

import (
	"sync"
	"testing"

	"loyalty-points-system/models"
	"loyalty-points-system/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection serializes writers the way the production store's
	// row-level locking does, and keeps the in-memory DB on one handle.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.UserPointsAccount{},
		&models.Transaction{},
		&models.Reward{},
		&models.PointGift{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Announcement{},
		&models.StaffRole{},
		&models.NotificationOutbox{},
	))
	return db
}

func testConfig() services.LoyaltyConfig {
	return services.LoyaltyConfig{
		ScanAwardPoints:       50,
		ReferralBonusReferrer: 100,
		ReferralBonusReferred: 50,
		CASRetryLimit:         3,
		OutboxBatchSize:       25,
		OutboxMaxAttempts:     5,
	}
}

func newTestEngine(t *testing.T) (*services.PointsEngine, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return services.NewPointsEngine(db, testConfig(), nil), db
}

func createReward(t *testing.T, db *gorm.DB, name string, cost int64, available bool) *models.Reward {
	t.Helper()
	reward := &models.Reward{
		ID:         uuid.NewString(),
		Name:       name,
		PointsCost: cost,
		Category:   models.RewardCategoryFood,
		Available:  available,
	}
	require.NoError(t, db.Create(reward).Error)
	return reward
}

// requireLedgerInvariant asserts current == earned - redeemed and a
// non-negative balance for the given user.
func requireLedgerInvariant(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	var acct models.UserPointsAccount
	require.NoError(t, db.Where("external_user_id = ?", userID).First(&acct).Error)
	assert.Equal(t, acct.TotalEarned-acct.TotalRedeemed, acct.CurrentPoints,
		"current_points must equal total_earned - total_redeemed")
	assert.GreaterOrEqual(t, acct.CurrentPoints, int64(0), "balance must never go negative")
}

func TestEarnValidation(t *testing.T) {
	engine, _ := newTestEngine(t)

	cases := []struct {
		name   string
		points int64
		amount decimal.Decimal
		items  []string
	}{
		{"zero points", 0, decimal.Zero, []string{"Burger"}},
		{"negative points", -10, decimal.Zero, []string{"Burger"}},
		{"negative amount", 10, decimal.NewFromInt(-1), []string{"Burger"}},
		{"no items", 10, decimal.Zero, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Earn("user-1", tc.points, tc.amount, tc.items, "")
			assert.ErrorIs(t, err, services.ErrInvalidAmount)
		})
	}
}

func TestEarnRedeemScenario(t *testing.T) {
	engine, db := newTestEngine(t)
	reward := createReward(t, db, "Free Burger", 100, true)
	expensive := createReward(t, db, "Feast", 150, true)

	// Fresh user earns 100 points on a purchase.
	tx, err := engine.Earn("user-1", 100, decimal.NewFromFloat(10.0), []string{"Burger"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypePurchase, tx.Type)
	assert.Equal(t, int64(100), tx.PointsEarned)

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.CurrentPoints)
	assert.Equal(t, int64(100), acct.TotalEarned)

	// Redeeming a 150-point reward fails without touching the balance.
	_, err = engine.Redeem("user-1", expensive.ID, "")
	assert.ErrorIs(t, err, services.ErrInsufficientPoints)

	acct, err = engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.CurrentPoints)

	// Redeeming the 100-point reward drains the balance.
	redemption, err := engine.Redeem("user-1", reward.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRedemption, redemption.Type)
	assert.Equal(t, int64(100), redemption.PointsRedeemed)
	assert.Equal(t, models.ItemList{"Free Burger"}, redemption.Items)

	acct, err = engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.CurrentPoints)
	assert.Equal(t, int64(100), acct.TotalRedeemed)
	requireLedgerInvariant(t, db, "user-1")
}

func TestEarnIdempotency(t *testing.T) {
	engine, db := newTestEngine(t)

	first, err := engine.Earn("user-1", 50, decimal.Zero, []string{"QR Scan"}, "scan-abc")
	require.NoError(t, err)

	replay, err := engine.Earn("user-1", 50, decimal.Zero, []string{"QR Scan"}, "scan-abc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID, "replayed key must return the original transaction")

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acct.CurrentPoints, "balance must change exactly once")

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("external_user_id = ?", "user-1").Count(&count).Error)
	assert.Equal(t, int64(1), count, "exactly one transaction for the replayed key")
}

func TestRedeemRewardNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Earn("user-1", 500, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)

	_, err = engine.Redeem("user-1", uuid.NewString(), "")
	assert.ErrorIs(t, err, services.ErrRewardNotFound)
}

func TestRedeemRewardUnavailable(t *testing.T) {
	engine, db := newTestEngine(t)
	reward := createReward(t, db, "Birthday Special", 100, false)
	_, err := engine.Earn("user-1", 500, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)

	_, err = engine.Redeem("user-1", reward.ID, "")
	assert.ErrorIs(t, err, services.ErrRewardUnavailable)
}

func TestRedeemIdempotency(t *testing.T) {
	engine, db := newTestEngine(t)
	reward := createReward(t, db, "Free Fries", 100, true)
	_, err := engine.Earn("user-1", 200, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)

	first, err := engine.Redeem("user-1", reward.ID, "redeem-1")
	require.NoError(t, err)

	// Double-tap: same idempotency key must not double-charge.
	replay, err := engine.Redeem("user-1", reward.ID, "redeem-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.CurrentPoints)
	requireLedgerInvariant(t, db, "user-1")
}

func TestConcurrentRedeemSingleWinner(t *testing.T) {
	engine, db := newTestEngine(t)
	reward := createReward(t, db, "Free Burger", 100, true)

	// Exactly enough points for one redemption.
	_, err := engine.Earn("user-1", 100, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Redeem("user-1", reward.ID, "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, services.ErrInsufficientPoints)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent redeem may win")

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.CurrentPoints)
	requireLedgerInvariant(t, db, "user-1")
}

func TestGiftPoints(t *testing.T) {
	engine, db := newTestEngine(t)

	_, err := engine.Earn("alice", 300, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)
	_, err = engine.Earn("bob", 10, decimal.Zero, []string{"Coffee"}, "")
	require.NoError(t, err)

	gift, err := engine.GiftPoints("alice", "bob", 100, "enjoy!", "gift-1")
	require.NoError(t, err)
	assert.Equal(t, models.GiftStatusCompleted, gift.Status)
	assert.Equal(t, int64(100), gift.Points)

	alice, err := engine.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(200), alice.CurrentPoints)
	assert.Equal(t, int64(100), alice.TotalRedeemed)

	bob, err := engine.GetAccount("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(110), bob.CurrentPoints)
	assert.Equal(t, int64(110), bob.TotalEarned)

	// Exactly two transactions plus one gift record.
	var giftCount int64
	require.NoError(t, db.Model(&models.PointGift{}).Count(&giftCount).Error)
	assert.Equal(t, int64(1), giftCount)

	var debitCount, creditCount int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("external_user_id = ? AND type = ?", "alice", models.TransactionTypeRedemption).
		Count(&debitCount).Error)
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("external_user_id = ? AND type = ?", "bob", models.TransactionTypePurchase).
		Count(&creditCount).Error)
	assert.Equal(t, int64(1), debitCount)
	assert.Equal(t, int64(2), creditCount) // bob's own earn + the gift credit

	requireLedgerInvariant(t, db, "alice")
	requireLedgerInvariant(t, db, "bob")
}

func TestGiftPointsIdempotency(t *testing.T) {
	engine, db := newTestEngine(t)
	_, err := engine.Earn("alice", 300, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)
	_, err = engine.Earn("bob", 10, decimal.Zero, []string{"Coffee"}, "")
	require.NoError(t, err)

	first, err := engine.GiftPoints("alice", "bob", 100, "", "gift-1")
	require.NoError(t, err)

	replay, err := engine.GiftPoints("alice", "bob", 100, "", "gift-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	alice, err := engine.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(200), alice.CurrentPoints, "replay must not debit twice")

	var giftCount int64
	require.NoError(t, db.Model(&models.PointGift{}).Count(&giftCount).Error)
	assert.Equal(t, int64(1), giftCount)
}

func TestGiftPointsFailures(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Earn("alice", 50, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)
	_, err = engine.Earn("bob", 10, decimal.Zero, []string{"Coffee"}, "")
	require.NoError(t, err)

	_, err = engine.GiftPoints("alice", "alice", 10, "", "")
	assert.ErrorIs(t, err, services.ErrCannotGiftSelf)

	_, err = engine.GiftPoints("alice", "bob", 0, "", "")
	assert.ErrorIs(t, err, services.ErrInvalidAmount)

	_, err = engine.GiftPoints("alice", "nobody", 10, "", "")
	assert.ErrorIs(t, err, services.ErrRecipientNotFound)

	// Insufficient balance leaves both accounts untouched.
	_, err = engine.GiftPoints("alice", "bob", 500, "", "")
	assert.ErrorIs(t, err, services.ErrInsufficientPoints)

	alice, err := engine.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), alice.CurrentPoints)
	bob, err := engine.GetAccount("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(10), bob.CurrentPoints)
}

func TestAdjustCredit(t *testing.T) {
	engine, db := newTestEngine(t)

	tx, err := engine.Adjust("user-1", 200, "goodwill")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeAdminCredit, tx.Type)
	assert.Equal(t, int64(200), tx.PointsEarned)
	assert.Equal(t, models.ItemList{"goodwill"}, tx.Items)

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), acct.CurrentPoints)
	requireLedgerInvariant(t, db, "user-1")
}

func TestAdjustDebitClamps(t *testing.T) {
	engine, db := newTestEngine(t)
	_, err := engine.Earn("user-1", 30, decimal.Zero, []string{"Snack"}, "")
	require.NoError(t, err)

	// Debit beyond the balance zeroes it and records only what was removed.
	tx, err := engine.Adjust("user-1", -500, "correction")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeAdminDebit, tx.Type)
	assert.Equal(t, int64(30), tx.PointsRedeemed)

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.CurrentPoints)
	assert.Equal(t, int64(30), acct.TotalRedeemed)
	requireLedgerInvariant(t, db, "user-1")
}

func TestAdjustValidation(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Adjust("user-1", 0, "noop")
	assert.ErrorIs(t, err, services.ErrInvalidAmount)

	_, err = engine.Adjust("user-1", 10, "")
	assert.ErrorIs(t, err, services.ErrInvalidAmount)

	// Debiting a user with no account is surfaced, not silently created.
	_, err = engine.Adjust("ghost", -10, "correction")
	assert.ErrorIs(t, err, services.ErrAccountNotFound)
}

// installBalanceInterloper bumps the user's balance right after each read of
// the user_points table, inside the reader's own transaction, so the
// compare-and-set that follows misses. This stands in for a concurrent writer
// landing between the read and the conditional update.
func installBalanceInterloper(t *testing.T, db *gorm.DB, userID string, times int) *int {
	t.Helper()
	remaining := times
	err := db.Callback().Query().After("gorm:query").Register("balance_interloper", func(tx *gorm.DB) {
		if remaining <= 0 || tx.Statement.Table != "user_points" {
			return
		}
		remaining--
		if _, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE user_points SET current_points = current_points + 1, total_earned = total_earned + 1 WHERE external_user_id = ?",
			userID); err != nil {
			t.Errorf("interloper update failed: %v", err)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Callback().Query().Remove("balance_interloper")
	})
	return &remaining
}

func TestAdjustDebitRetriesAfterConflict(t *testing.T) {
	engine, db := newTestEngine(t)
	_, err := engine.Earn("user-1", 30, decimal.Zero, []string{"Snack"}, "")
	require.NoError(t, err)

	remaining := installBalanceInterloper(t, db, "user-1", 1)

	tx, err := engine.Adjust("user-1", -10, "correction")
	require.NoError(t, err)
	assert.Equal(t, 0, *remaining, "the first attempt must have hit the conflict")
	assert.Equal(t, int64(10), tx.PointsRedeemed)

	// The conflicted attempt rolled back; the retry debited the fresh state.
	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), acct.CurrentPoints)
	requireLedgerInvariant(t, db, "user-1")
}

func TestAdjustDebitSurfacesConcurrentModification(t *testing.T) {
	engine, db := newTestEngine(t)
	_, err := engine.Earn("user-1", 30, decimal.Zero, []string{"Snack"}, "")
	require.NoError(t, err)

	// Conflict on every attempt up to the retry bound.
	installBalanceInterloper(t, db, "user-1", testConfig().CASRetryLimit)

	_, err = engine.Adjust("user-1", -10, "correction")
	assert.ErrorIs(t, err, services.ErrConcurrentModification)

	// Every attempt rolled back, nothing changed.
	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), acct.CurrentPoints)
	requireLedgerInvariant(t, db, "user-1")
}

func TestAdjustDebitOnEmptyBalance(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Earn("user-1", 30, decimal.Zero, []string{"Snack"}, "")
	require.NoError(t, err)
	_, err = engine.Adjust("user-1", -30, "drain")
	require.NoError(t, err)

	// Nothing left to remove: surfaced instead of writing a zero-point record.
	_, err = engine.Adjust("user-1", -10, "again")
	assert.ErrorIs(t, err, services.ErrInsufficientPoints)
}

func TestOutboxRowRidesTheEarn(t *testing.T) {
	db := newTestDB(t)
	notify := services.NewNotifyService(db)
	engine := services.NewPointsEngine(db, testConfig(), notify)

	_, err := engine.Earn("user-1", 50, decimal.Zero, []string{"Burger"}, "")
	require.NoError(t, err)

	rows, err := notify.PendingBatch(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "points_earned", rows[0].Kind)
	assert.Equal(t, "user-1", rows[0].ExternalUserID)
}
