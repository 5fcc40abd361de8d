package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/chainpay-backend/pkg/db/models"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

// Repository defines persistence operations for payment request tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.PaymentRequest) (*models.PaymentRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	ListPending(ctx context.Context, now time.Time, limit int) ([]models.PaymentRequest, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.PaymentRequest, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error)
	UpdateObservation(ctx context.Context, id uuid.UUID, confirmations int, observedAmount decimal.Decimal, txReference *string) (bool, error)
	AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, paymentID uuid.UUID) ([]models.AuditEvent, error)
}

// AddressProvider hands out a receiving address for a new payment request.
type AddressProvider interface {
	Next(ctx context.Context, currency enums.Currency) (string, error)
}

// Service defines the merchant-facing payment request operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.PaymentRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.PaymentRequest, error)
	AuditTrail(ctx context.Context, paymentID uuid.UUID) ([]models.AuditEvent, error)
}
