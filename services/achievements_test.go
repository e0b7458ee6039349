package services_test

import (
	"testing"

	"loyalty-points-system/models"
	"loyalty-points-system/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAchievementFixture(t *testing.T) (*services.PointsEngine, *services.AchievementService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	engine := services.NewPointsEngine(db, testConfig(), nil)
	ach := services.NewAchievementService(db, engine)
	engine.Achievements = ach
	require.NoError(t, ach.SeedDefaults())
	return engine, ach, db
}

func earnedCodes(t *testing.T, ach *services.AchievementService, userID string) []string {
	t.Helper()
	earned, err := ach.ListForUser(userID)
	require.NoError(t, err)
	codes := make([]string, 0, len(earned))
	for _, e := range earned {
		require.NotNil(t, e.Achievement)
		codes = append(codes, e.Achievement.Code)
	}
	return codes
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	_, ach, db := newAchievementFixture(t)
	require.NoError(t, ach.SeedDefaults())

	var count int64
	require.NoError(t, db.Model(&models.Achievement{}).Count(&count).Error)
	assert.Equal(t, int64(len(models.DefaultAchievements)), count)
}

func TestFirstPurchaseUnlocksFirstVisit(t *testing.T) {
	engine, ach, db := newAchievementFixture(t)

	_, err := engine.Earn("user-1", 100, decimal.NewFromInt(10), []string{"Burger"}, "")
	require.NoError(t, err)

	assert.Contains(t, earnedCodes(t, ach, "user-1"), "FIRST_VISIT")

	// 100 from the purchase plus the 25-point bonus.
	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(125), acct.CurrentPoints)
	requireLedgerInvariant(t, db, "user-1")
}

func TestEvaluateIsIdempotent(t *testing.T) {
	engine, ach, db := newAchievementFixture(t)

	_, err := engine.Earn("user-1", 100, decimal.Zero, []string{"Burger"}, "")
	require.NoError(t, err)

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	balanceBefore := acct.CurrentPoints

	// Re-running evaluation must award nothing new and pay nothing again.
	newly, err := ach.Evaluate("user-1")
	require.NoError(t, err)
	assert.Empty(t, newly)

	acct, err = engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, balanceBefore, acct.CurrentPoints)

	var rows int64
	require.NoError(t, db.Model(&models.UserAchievement{}).
		Where("external_user_id = ?", "user-1").Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestEvaluateHealsMissingBonus(t *testing.T) {
	db := newTestDB(t)
	engine := services.NewPointsEngine(db, testConfig(), nil)

	// Earn before wiring the evaluator so no achievements fire yet.
	_, err := engine.Earn("user-1", 100, decimal.Zero, []string{"Burger"}, "")
	require.NoError(t, err)

	ach := services.NewAchievementService(db, engine)
	engine.Achievements = ach
	require.NoError(t, ach.SeedDefaults())

	var def models.Achievement
	require.NoError(t, db.First(&def, "code = ?", "FIRST_VISIT").Error)

	// An earned row without its bonus transaction, as left behind by a crash
	// between the two writes.
	require.NoError(t, db.Create(&models.UserAchievement{
		ID:             uuid.NewString(),
		ExternalUserID: "user-1",
		AchievementID:  def.ID,
	}).Error)

	newly, err := ach.Evaluate("user-1")
	require.NoError(t, err)
	assert.Empty(t, newly, "the earned row already exists")

	acct, err := engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(125), acct.CurrentPoints, "the missing bonus must be paid")

	// And only once: the next evaluation replays the key as a no-op.
	_, err = ach.Evaluate("user-1")
	require.NoError(t, err)
	acct, err = engine.GetAccount("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(125), acct.CurrentPoints)
	requireLedgerInvariant(t, db, "user-1")
}

func TestLifetimePointsThreshold(t *testing.T) {
	engine, ach, _ := newAchievementFixture(t)

	_, err := engine.Earn("user-1", 500, decimal.Zero, []string{"Catering order"}, "")
	require.NoError(t, err)

	codes := earnedCodes(t, ach, "user-1")
	assert.Contains(t, codes, "FIRST_VISIT")
	assert.Contains(t, codes, "POINTS_500")
	assert.NotContains(t, codes, "REGULAR")
}

func TestFirstRedemptionUnlocks(t *testing.T) {
	engine, ach, db := newAchievementFixture(t)
	reward := createReward(t, db, "Free Coffee", 100, true)

	_, err := engine.Earn("user-1", 200, decimal.Zero, []string{"Meal"}, "")
	require.NoError(t, err)
	_, err = engine.Redeem("user-1", reward.ID, "")
	require.NoError(t, err)

	assert.Contains(t, earnedCodes(t, ach, "user-1"), "FIRST_REDEEM")
	requireLedgerInvariant(t, db, "user-1")
}
