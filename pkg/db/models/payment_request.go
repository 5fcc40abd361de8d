package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

// PaymentRequest is the durable record of one short-lived payment request.
// Status, confirmation and observation fields are mutated exclusively by the
// reconciliation engine (or an explicit merchant cancel while pending); the
// rest is immutable after creation. Rows are never deleted.
type PaymentRequest struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Currency       enums.Currency      `gorm:"column:currency;type:varchar(8);not null;index"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(36,18);not null"`
	Address        string              `gorm:"column:address;not null;index"`
	Status         enums.PaymentStatus `gorm:"column:status;type:varchar(16);not null;default:'pending';index"`
	Confirmations  int                 `gorm:"column:confirmations;not null;default:0"`
	ObservedAmount *decimal.Decimal    `gorm:"column:observed_amount;type:numeric(36,18)"`
	TxReference    *string             `gorm:"column:tx_reference"`
	CallbackURL    *string             `gorm:"column:callback_url"`
	ExpiresAt      time.Time           `gorm:"column:expires_at;not null;index"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	ExpiredAt      *time.Time          `gorm:"column:expired_at"`
	CancelledAt    *time.Time          `gorm:"column:cancelled_at"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (PaymentRequest) TableName() string { return "payment_requests" }
