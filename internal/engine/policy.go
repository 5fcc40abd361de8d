package engine

import (
	"github.com/angelmondragon/chainpay-backend/internal/resolver"
	"github.com/angelmondragon/chainpay-backend/pkg/db/models"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

// Action is the engine's decision for one payment after inspecting a
// snapshot.
type Action int

const (
	// ActionNone leaves the record untouched.
	ActionNone Action = iota
	// ActionRecordProgress persists new confirmation or balance data while
	// the payment stays pending.
	ActionRecordProgress
	// ActionMarkPaid transitions the payment to paid.
	ActionMarkPaid
)

// Decide maps one (payment, snapshot) pair onto an action. The rules are
// deliberately conservative:
//
//   - terminal records never change,
//   - error snapshots carry no information and change nothing,
//   - paid requires this payment's full amount observed, at or above the
//     confirmation threshold,
//   - anything observed short of that is recorded as progress only.
//
// The balance is re-checked against the payment's own amount here because
// snapshots are shared per (currency, address): pool addresses serve several
// live payments, and a snapshot that settled a small payment must never
// settle a larger one on the same address.
func Decide(payment *models.PaymentRequest, snapshot *resolver.Snapshot, threshold int) Action {
	if payment == nil || snapshot == nil {
		return ActionNone
	}
	if payment.Status != enums.PaymentStatusPending {
		return ActionNone
	}
	if snapshot.Status == resolver.SnapshotError {
		return ActionNone
	}
	if snapshot.Actionable(threshold) && snapshot.Balance.GreaterThanOrEqual(payment.Amount) {
		return ActionMarkPaid
	}
	if hasProgress(payment, snapshot) {
		return ActionRecordProgress
	}
	return ActionNone
}

// hasProgress reports whether the snapshot tells us anything the record does
// not already hold. Confirmations only ever move forward.
func hasProgress(payment *models.PaymentRequest, snapshot *resolver.Snapshot) bool {
	if snapshot.Confirmations > payment.Confirmations {
		return true
	}
	if snapshot.Balance.IsPositive() {
		if payment.ObservedAmount == nil || !payment.ObservedAmount.Equal(snapshot.Balance) {
			return true
		}
	}
	return false
}
