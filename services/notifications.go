package services

import (
	"errors"
	"log"
	"time"

	"loyalty-points-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotifyService writes notification events into the durable outbox. Delivery
// (push/email) is entirely the dispatcher service's problem; the outbox
// worker hands batches over and tracks attempts.
type NotifyService struct {
	DB *gorm.DB
}

func NewNotifyService(db *gorm.DB) *NotifyService {
	return &NotifyService{DB: db}
}

// Enqueue writes an outbox row inside the caller's transaction so the
// notification exists iff the balance change committed. Nil-safe: the engine
// runs without a notifier in tests.
func (n *NotifyService) Enqueue(tx *gorm.DB, userID, kind, title, body string) {
	if n == nil {
		return
	}
	row := &models.NotificationOutbox{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Kind:           kind,
		Title:          title,
		Body:           body,
		Status:         models.OutboxStatusPending,
	}
	if err := tx.Create(row).Error; err != nil {
		// An undeliverable notification must never fail the point mutation.
		log.Printf("[Notify] failed to enqueue %s for %s: %v", kind, userID, err)
	}
}

// Broadcast enqueues a notification addressed to everyone (empty user ID).
func (n *NotifyService) Broadcast(kind, title, body string) error {
	row := &models.NotificationOutbox{
		ID:     uuid.NewString(),
		Kind:   kind,
		Title:  title,
		Body:   body,
		Status: models.OutboxStatusPending,
	}
	if err := n.DB.Create(row).Error; err != nil {
		return storeErr(err)
	}
	return nil
}

// PendingBatch returns the oldest undispatched rows, capped at limit.
func (n *NotifyService) PendingBatch(limit int) ([]models.NotificationOutbox, error) {
	var rows []models.NotificationOutbox
	err := n.DB.Where("status = ?", models.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return rows, nil
}

// MarkSent finalizes a delivered row.
func (n *NotifyService) MarkSent(id string) error {
	now := time.Now()
	return n.DB.Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  models.OutboxStatusSent,
			"sent_at": &now,
		}).Error
}

// MarkAttemptFailed bumps the attempt counter; rows past maxAttempts flip to
// failed so the worker stops hammering the dispatcher with them.
func (n *NotifyService) MarkAttemptFailed(id string, cause error, maxAttempts int) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return n.DB.Transaction(func(tx *gorm.DB) error {
		var row models.NotificationOutbox
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		row.Attempts++
		row.LastError = msg
		if row.Attempts >= maxAttempts {
			row.Status = models.OutboxStatusFailed
		}
		return tx.Save(&row).Error
	})
}
