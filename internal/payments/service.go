package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chainpay-backend/pkg/db"
	"github.com/angelmondragon/chainpay-backend/pkg/db/models"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo       Repository
	tx         txRunner
	addresses  AddressProvider
	logg       *logger.Logger
	paymentTTL time.Duration
	now        func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Addresses  AddressProvider
	Logger     *logger.Logger
	PaymentTTL time.Duration
}

// NewService builds the merchant-facing payment request service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address provider required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PaymentTTL <= 0 {
		return nil, fmt.Errorf("payment ttl must be positive, got %s", params.PaymentTTL)
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		addresses:  params.Addresses,
		logg:       params.Logger,
		paymentTTL: params.PaymentTTL,
		now:        time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PaymentRequest, error) {
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", input.Currency))
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.CallbackURL != nil {
		parsed, err := url.Parse(*input.CallbackURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback url must be absolute http(s)")
		}
	}

	address, err := s.addresses.Next(ctx, input.Currency)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payment := &models.PaymentRequest{
		Currency:    input.Currency,
		Amount:      input.Amount,
		Address:     address,
		Status:      enums.PaymentStatusPending,
		CallbackURL: input.CallbackURL,
		ExpiresAt:   now.Add(s.paymentTTL),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, payment); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodePersistenceConflict, err, "payment id collision")
			}
			return pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not create payment request")
		}
		return repo.AppendAuditEvent(ctx, NewAuditEvent(payment.ID, enums.AuditKindCreated, map[string]any{
			"currency":   payment.Currency,
			"amount":     payment.Amount.String(),
			"address":    payment.Address,
			"expires_at": payment.ExpiresAt,
		}))
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithCurrency(s.logg.WithPaymentID(ctx, payment.ID.String()), payment.Currency.String())
	s.logg.Info(logCtx, "payment request created")
	return payment, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not load payment request")
	}
	return payment, nil
}

// Cancel moves a still-pending payment to cancelled. Terminal records are
// left untouched and reported as a state conflict.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	return s.operatorTransition(ctx, id, enums.PaymentStatusCancelled, enums.AuditKindCancelled, map[string]any{
		"cancelled_at": s.now().UTC(),
	}, nil)
}

// MarkFailed is an explicit operator action. The engine never fails payments
// on its own; provider outages and anomalies stay pending until a human
// rules on them.
func (s *service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.PaymentRequest, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}
	return s.operatorTransition(ctx, id, enums.PaymentStatusFailed, enums.AuditKindFailed, map[string]any{
		"failure_reason": reason,
	}, map[string]any{"reason": reason})
}

func (s *service) AuditTrail(ctx context.Context, paymentID uuid.UUID) ([]models.AuditEvent, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	events, err := s.repo.ListAuditEvents(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not load audit trail")
	}
	return events, nil
}

func (s *service) operatorTransition(ctx context.Context, id uuid.UUID, to enums.PaymentStatus, kind enums.AuditKind, updates map[string]any, auditData map[string]any) (*models.PaymentRequest, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is already %s", payment.Status))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.CompareAndSetStatus(ctx, id, enums.PaymentStatusPending, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not update payment status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment left pending state concurrently")
		}
		return repo.AppendAuditEvent(ctx, NewAuditEvent(id, kind, auditData))
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithPaymentID(ctx, id.String()), fmt.Sprintf("payment %s", to))
	return s.Get(ctx, id)
}

// NewAuditEvent builds an audit row with its payload encoded as JSON.
func NewAuditEvent(paymentID uuid.UUID, kind enums.AuditKind, data map[string]any) *models.AuditEvent {
	event := &models.AuditEvent{PaymentID: paymentID, Kind: kind}
	if len(data) > 0 {
		if payload, err := json.Marshal(data); err == nil {
			event.Data = payload
		}
	}
	return event
}
