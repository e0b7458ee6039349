package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypePurchase    TransactionType = "purchase"
	TransactionTypeRedemption  TransactionType = "redemption"
	TransactionTypeAdminCredit TransactionType = "admin_credit"
	TransactionTypeAdminDebit  TransactionType = "admin_debit"
)

// ItemList stores the descriptive item labels as a JSON text column so the
// same model works on postgres and the sqlite test driver.
type ItemList []string

func (l ItemList) Value() (driver.Value, error) {
	if l == nil {
		l = ItemList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *ItemList) Scan(value interface{}) error {
	if value == nil {
		*l = ItemList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for ItemList")
	}
}

// Transaction is the append-only audit record for every balance change.
// Rows are never updated or deleted once written.
type Transaction struct {
	ID             string          `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string          `gorm:"index:idx_tx_user;index:idx_tx_user_idem,unique,where:idempotency_key <> ''" json:"user_id"`
	Type           TransactionType `gorm:"not null" json:"transaction_type"`
	PointsEarned   int64           `json:"points_earned" gorm:"not null;default:0"`
	PointsRedeemed int64           `json:"points_redeemed" gorm:"not null;default:0"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"amount"`
	Items          ItemList        `gorm:"type:text" json:"items"`

	// Caller-supplied dedup token; empty for internal writes that carry
	// their own deterministic key upstream.
	IdempotencyKey string `gorm:"index:idx_tx_user_idem,unique,where:idempotency_key <> ''" json:"idempotency_key,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
