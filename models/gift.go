package models

import "time"

type GiftStatus string

const (
	GiftStatusCompleted GiftStatus = "completed"
	// GiftStatusPending marks a gift whose recipient credit has not landed
	// yet. With the single-transaction engine this is never the final state;
	// it exists so a crash mid-settlement is visible, not hidden.
	GiftStatusPending GiftStatus = "pending"
)

// PointGift records a point transfer between two users. Created in the same
// store transaction as the paired debit/credit Transactions.
type PointGift struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	SenderID    string     `gorm:"index;not null;index:idx_gift_sender_idem,unique" json:"sender_id"`
	RecipientID string     `gorm:"index;not null" json:"recipient_id"`
	Points      int64      `gorm:"not null" json:"points"`
	Message     string     `gorm:"type:text" json:"message,omitempty"`
	Status      GiftStatus `gorm:"not null;default:'completed'" json:"status"`

	// Caller-supplied dedup token, shared with the sender's debit Transaction.
	IdempotencyKey string `gorm:"index:idx_gift_sender_idem,unique,where:idempotency_key <> ''" json:"idempotency_key,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
