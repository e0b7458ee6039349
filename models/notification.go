package models

import "time"

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// NotificationOutbox is the durable queue between the points engine and the
// external push/email dispatcher. Rows are written in the same store
// transaction as the balance change they announce, then drained by the
// outbox worker.
type NotificationOutbox struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string       `gorm:"index" json:"user_id,omitempty"` // empty = broadcast
	Kind           string       `gorm:"not null" json:"kind"`           // points_earned, reward_redeemed, gift_received, ...
	Title          string       `gorm:"not null" json:"title"`
	Body           string       `gorm:"type:text" json:"body"`
	Status         OutboxStatus `gorm:"not null;default:'pending';index" json:"status"`
	Attempts       int          `gorm:"not null;default:0" json:"attempts"`
	LastError      string       `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
}

func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}
