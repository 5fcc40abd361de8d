package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

// AuditEvent records one lifecycle fact about a payment request. The trail is
// append-only; expired records persist for audit.
type AuditEvent struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;index"`
	Kind      enums.AuditKind `gorm:"column:kind;type:varchar(32);not null"`
	Data      json.RawMessage `gorm:"column:data;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides the default pluralization.
func (AuditEvent) TableName() string { return "payment_audit_events" }
