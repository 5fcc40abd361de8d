package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/pkg/db/models"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

// CreateInput captures what a merchant supplies when opening a payment
// request. Address assignment and expiry are decided server-side.
type CreateInput struct {
	Currency    enums.Currency
	Amount      decimal.Decimal
	CallbackURL *string
}

// PaymentResponse is the external representation of a payment request.
type PaymentResponse struct {
	ID             uuid.UUID           `json:"id"`
	Currency       enums.Currency      `json:"currency"`
	Amount         decimal.Decimal     `json:"amount"`
	Address        string              `json:"address"`
	Status         enums.PaymentStatus `json:"status"`
	Confirmations  int                 `json:"confirmations"`
	ObservedAmount *decimal.Decimal    `json:"observed_amount,omitempty"`
	TxReference    *string             `json:"tx_reference,omitempty"`
	ExpiresAt      time.Time           `json:"expires_at"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	FailureReason  *string             `json:"failure_reason,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ToPaymentResponse maps the persistence model onto the external shape.
func ToPaymentResponse(payment *models.PaymentRequest) *PaymentResponse {
	if payment == nil {
		return nil
	}
	return &PaymentResponse{
		ID:             payment.ID,
		Currency:       payment.Currency,
		Amount:         payment.Amount,
		Address:        payment.Address,
		Status:         payment.Status,
		Confirmations:  payment.Confirmations,
		ObservedAmount: payment.ObservedAmount,
		TxReference:    payment.TxReference,
		ExpiresAt:      payment.ExpiresAt,
		PaidAt:         payment.PaidAt,
		FailureReason:  payment.FailureReason,
		CreatedAt:      payment.CreatedAt,
	}
}
