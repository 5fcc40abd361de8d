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

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.PaymentRequest) (*models.PaymentRequest, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	var payment models.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListPending(ctx context.Context, now time.Time, limit int) ([]models.PaymentRequest, error) {
	var payments []models.PaymentRequest
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentStatusPending).
		Where("expires_at > ?", now).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.PaymentRequest, error) {
	var payments []models.PaymentRequest
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentStatusPending).
		Where("expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// CompareAndSetStatus transitions a payment only if it is still in the
// expected source status. A false return means another writer won the race;
// callers treat that as a no-op, not an error.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateObservation records confirmation progress on a still-pending payment.
// Confirmations only ever move forward.
func (r *repository) UpdateObservation(ctx context.Context, id uuid.UUID, confirmations int, observedAmount decimal.Decimal, txReference *string) (bool, error) {
	updates := map[string]any{
		"confirmations":   confirmations,
		"observed_amount": observedAmount,
	}
	if txReference != nil {
		updates["tx_reference"] = *txReference
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("id = ? AND status = ? AND confirmations <= ?", id, enums.PaymentStatusPending, confirmations).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListAuditEvents(ctx context.Context, paymentID uuid.UUID) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
