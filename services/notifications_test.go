package services_test

import (
	"errors"
	"testing"

	"loyalty-points-system/models"
	"loyalty-points-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastAndPendingBatch(t *testing.T) {
	db := newTestDB(t)
	notify := services.NewNotifyService(db)

	require.NoError(t, notify.Broadcast("announcement", "Happy Hour", "Half price drinks today"))

	rows, err := notify.PendingBatch(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].ExternalUserID, "broadcasts carry no user ID")
	assert.Equal(t, models.OutboxStatusPending, rows[0].Status)
}

func TestMarkSentRemovesFromBatch(t *testing.T) {
	db := newTestDB(t)
	notify := services.NewNotifyService(db)
	require.NoError(t, notify.Broadcast("announcement", "Hi", "body"))

	rows, err := notify.PendingBatch(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, notify.MarkSent(rows[0].ID))

	rows, err = notify.PendingBatch(10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	var row models.NotificationOutbox
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, models.OutboxStatusSent, row.Status)
	assert.NotNil(t, row.SentAt)
}

func TestMarkAttemptFailedGivesUpAtBudget(t *testing.T) {
	db := newTestDB(t)
	notify := services.NewNotifyService(db)
	require.NoError(t, notify.Broadcast("announcement", "Hi", "body"))

	rows, err := notify.PendingBatch(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	cause := errors.New("dispatcher unreachable")
	maxAttempts := 3
	for i := 0; i < maxAttempts; i++ {
		require.NoError(t, notify.MarkAttemptFailed(id, cause, maxAttempts))
	}

	var row models.NotificationOutbox
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	assert.Equal(t, models.OutboxStatusFailed, row.Status)
	assert.Equal(t, maxAttempts, row.Attempts)
	assert.Equal(t, "dispatcher unreachable", row.LastError)

	rows, err = notify.PendingBatch(10)
	require.NoError(t, err)
	assert.Empty(t, rows, "failed rows leave the dispatch queue")
}
