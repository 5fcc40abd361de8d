package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/chainpay-backend/internal/notify"
	"github.com/angelmondragon/chainpay-backend/internal/payments"
	"github.com/angelmondragon/chainpay-backend/internal/resolver"
	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/db/models"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
	"github.com/angelmondragon/chainpay-backend/pkg/metrics"
)

type statusResolver interface {
	Resolve(ctx context.Context, currency enums.Currency, address string, expectedAmount decimal.Decimal) (*resolver.Snapshot, error)
}

type snapshotCache interface {
	Get(ctx context.Context, currency enums.Currency, address string) *resolver.Snapshot
	Put(ctx context.Context, currency enums.Currency, address string, snapshot *resolver.Snapshot)
}

type callbackDispatcher interface {
	Dispatch(ctx context.Context, callbackURL string, event notify.PaidEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Engine drives pending payments toward a terminal status. Each tick walks
// the pending set with bounded concurrency; one payment's failure never
// blocks the rest of the batch.
type Engine struct {
	repo       payments.Repository
	tx         txRunner
	resolver   statusResolver
	cache      snapshotCache
	dispatcher callbackDispatcher
	chains     config.ChainsConfig
	logg       *logger.Logger
	metrics    *metrics.ReconcileMetrics

	concurrency int
	now         func() time.Time

	reconciling atomic.Bool
	sweeping    atomic.Bool
}

// Params carries the dependencies for New.
type Params struct {
	Repo        payments.Repository
	Tx          txRunner
	Resolver    statusResolver
	Cache       snapshotCache
	Dispatcher  callbackDispatcher
	Chains      config.ChainsConfig
	Logger      *logger.Logger
	Metrics     *metrics.ReconcileMetrics
	Concurrency int
}

func New(params Params) (*Engine, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("status resolver required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("callback dispatcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Engine{
		repo:        params.Repo,
		tx:          params.Tx,
		resolver:    params.Resolver,
		cache:       params.Cache,
		dispatcher:  params.Dispatcher,
		chains:      params.Chains,
		logg:        params.Logger,
		metrics:     params.Metrics,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

// ReconcileTick checks every live pending payment against the chain. When a
// previous tick is still in flight the new one is skipped outright; a slow
// batch must not pile up concurrent sweeps of the same rows.
func (e *Engine) ReconcileTick(ctx context.Context) error {
	if !e.reconciling.CompareAndSwap(false, true) {
		e.logg.Warn(ctx, "previous reconcile tick still running, skipping")
		return nil
	}
	defer e.reconciling.Store(false)

	now := e.now().UTC()
	pending, err := e.repo.ListPending(ctx, now, 0)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not list pending payments")
	}
	if len(pending) == 0 {
		return nil
	}

	var mu sync.Mutex
	var batchErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range pending {
		payment := pending[i]
		g.Go(func() error {
			if err := e.reconcileOne(gctx, &payment); err != nil {
				mu.Lock()
				batchErr = multierr.Append(batchErr, fmt.Errorf("payment %s: %w", payment.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if batchErr != nil {
		e.logg.Error(ctx, fmt.Sprintf("reconcile tick finished with errors for %d of %d payments",
			len(multierr.Errors(batchErr)), len(pending)), batchErr)
	}
	return batchErr
}

func (e *Engine) reconcileOne(ctx context.Context, payment *models.PaymentRequest) error {
	e.metrics.IncChecked()
	logCtx := e.logg.WithCurrency(e.logg.WithPaymentID(ctx, payment.ID.String()), payment.Currency.String())

	snapshot := e.cachedOrResolved(logCtx, payment)
	if snapshot == nil {
		// Providers are down for this currency. The payment simply stays
		// pending until the next tick or its expiry.
		return pkgerrors.New(pkgerrors.CodeProvidersExhausted, "no status available")
	}

	threshold := e.chains.ThresholdFor(payment.Currency)
	switch Decide(payment, snapshot, threshold) {
	case ActionMarkPaid:
		return e.markPaid(logCtx, payment, snapshot)
	case ActionRecordProgress:
		return e.recordProgress(logCtx, payment, snapshot)
	default:
		return nil
	}
}

func (e *Engine) cachedOrResolved(ctx context.Context, payment *models.PaymentRequest) *resolver.Snapshot {
	if e.cache != nil {
		if snapshot := e.cache.Get(ctx, payment.Currency, payment.Address); snapshot != nil {
			return snapshot
		}
	}
	snapshot, err := e.resolver.Resolve(ctx, payment.Currency, payment.Address, payment.Amount)
	if err != nil {
		return nil
	}
	if e.cache != nil {
		e.cache.Put(ctx, payment.Currency, payment.Address, snapshot)
	}
	return snapshot
}

func (e *Engine) markPaid(ctx context.Context, payment *models.PaymentRequest, snapshot *resolver.Snapshot) error {
	paidAt := e.now().UTC()
	updates := map[string]any{
		"paid_at":         paidAt,
		"confirmations":   snapshot.Confirmations,
		"observed_amount": snapshot.Balance,
	}
	if snapshot.TxReference != "" {
		updates["tx_reference"] = snapshot.TxReference
	}

	var won bool
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		ok, err := repo.CompareAndSetStatus(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not mark payment paid")
		}
		if !ok {
			return nil
		}
		won = true
		return repo.AppendAuditEvent(ctx, payments.NewAuditEvent(payment.ID, enums.AuditKindPaid, map[string]any{
			"observed_amount": snapshot.Balance.String(),
			"confirmations":   snapshot.Confirmations,
			"tx_reference":    snapshot.TxReference,
			"provider":        snapshot.Provider,
		}))
	})
	if err != nil {
		return err
	}
	if !won {
		// Another writer finished this payment first. Their transition
		// stands and this one dissolves into a no-op.
		e.logg.Info(ctx, "payment already finalized by a concurrent writer")
		return nil
	}

	e.metrics.IncTransition(enums.PaymentStatusPaid.String())
	e.logg.Info(ctx, "payment marked paid")
	e.notifyPaid(ctx, payment, snapshot, paidAt)
	return nil
}

// notifyPaid fires the merchant callback at most once, after the paid row is
// committed. A delivery failure is audited and dropped; the transition is
// already durable and is never rolled back.
func (e *Engine) notifyPaid(ctx context.Context, payment *models.PaymentRequest, snapshot *resolver.Snapshot, paidAt time.Time) {
	if payment.CallbackURL == nil || *payment.CallbackURL == "" {
		return
	}

	event := notify.PaidEvent{
		PaymentID:     payment.ID,
		Currency:      payment.Currency,
		Amount:        payment.Amount,
		Address:       payment.Address,
		Confirmations: snapshot.Confirmations,
		TxReference:   snapshot.TxReference,
		PaidAt:        paidAt,
	}
	if err := e.dispatcher.Dispatch(ctx, *payment.CallbackURL, event); err != nil {
		e.logg.Error(ctx, "paid callback delivery failed", err)
		e.appendAudit(ctx, payment.ID, enums.AuditKindNotificationFailed, map[string]any{"error": err.Error()})
		return
	}
	e.appendAudit(ctx, payment.ID, enums.AuditKindNotificationSent, map[string]any{"callback_url": *payment.CallbackURL})
}

func (e *Engine) recordProgress(ctx context.Context, payment *models.PaymentRequest, snapshot *resolver.Snapshot) error {
	var txRef *string
	if snapshot.TxReference != "" {
		txRef = &snapshot.TxReference
	}
	ok, err := e.repo.UpdateObservation(ctx, payment.ID, snapshot.Confirmations, snapshot.Balance, txRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not record confirmation progress")
	}
	if !ok {
		return nil
	}
	if snapshot.Confirmations > payment.Confirmations {
		e.appendAudit(ctx, payment.ID, enums.AuditKindConfirmationsUpdated, map[string]any{
			"confirmations": snapshot.Confirmations,
		})
	}
	return nil
}

// ExpireSweep finalizes pending payments whose window has lapsed. It runs on
// its own schedule and never touches the chain: expiry is a pure function of
// the clock.
func (e *Engine) ExpireSweep(ctx context.Context) error {
	if !e.sweeping.CompareAndSwap(false, true) {
		e.logg.Warn(ctx, "previous expiry sweep still running, skipping")
		return nil
	}
	defer e.sweeping.Store(false)

	now := e.now().UTC()
	lapsed, err := e.repo.ListExpiredPending(ctx, now, 0)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not list lapsed payments")
	}

	var sweepErr error
	for i := range lapsed {
		payment := lapsed[i]
		if err := e.expireOne(ctx, payment.ID, now); err != nil {
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("payment %s: %w", payment.ID, err))
		}
	}
	if sweepErr != nil {
		e.logg.Error(ctx, "expiry sweep finished with errors", sweepErr)
	}
	return sweepErr
}

func (e *Engine) expireOne(ctx context.Context, id uuid.UUID, now time.Time) error {
	var won bool
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		ok, err := repo.CompareAndSetStatus(ctx, id, enums.PaymentStatusPending, enums.PaymentStatusExpired, map[string]any{
			"expired_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistenceFailure, err, "could not expire payment")
		}
		if !ok {
			return nil
		}
		won = true
		return repo.AppendAuditEvent(ctx, payments.NewAuditEvent(id, enums.AuditKindExpired, nil))
	})
	if err != nil {
		return err
	}
	if won {
		e.metrics.IncTransition(enums.PaymentStatusExpired.String())
		e.logg.Info(e.logg.WithPaymentID(ctx, id.String()), "payment expired")
	}
	return nil
}

func (e *Engine) appendAudit(ctx context.Context, paymentID uuid.UUID, kind enums.AuditKind, data map[string]any) {
	if err := e.repo.AppendAuditEvent(ctx, payments.NewAuditEvent(paymentID, kind, data)); err != nil {
		e.logg.Error(ctx, "could not append audit event", err)
	}
}
