package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/internal/providers"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
	"github.com/angelmondragon/chainpay-backend/pkg/metrics"
)

// SnapshotStatus is the resolver's judgment of one point-in-time lookup.
type SnapshotStatus string

const (
	SnapshotPending SnapshotStatus = "pending"
	SnapshotPaid    SnapshotStatus = "paid"
	SnapshotError   SnapshotStatus = "error"
)

// Snapshot is a single point-in-time status read for one (currency, address)
// pair. An error snapshot means "no information", never "payment failed".
type Snapshot struct {
	Status        SnapshotStatus  `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
	Confirmations int             `json:"confirmations"`
	TxReference   string          `json:"txReference,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	ObservedAt    time.Time       `json:"observedAt"`
}

// Actionable reports whether the snapshot may drive a paid transition under
// the given confirmation threshold.
func (s *Snapshot) Actionable(threshold int) bool {
	return s != nil && s.Status == SnapshotPaid && s.Confirmations >= threshold
}

// RateGuard limits outbound provider calls across worker instances.
type RateGuard interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Resolver produces status snapshots by trying a currency's providers in
// priority order and accepting the first well-formed response (failover, not
// quorum).
type Resolver struct {
	registry *providers.Registry
	logg     *logger.Logger
	metrics  *metrics.ReconcileMetrics
	now      func() time.Time

	guard       RateGuard
	guardLimit  int64
	guardWindow time.Duration
}

// New builds a resolver over the configured chain registry.
func New(registry *providers.Registry, logg *logger.Logger, reconcileMetrics *metrics.ReconcileMetrics) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("chain registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Resolver{
		registry: registry,
		logg:     logg,
		metrics:  reconcileMetrics,
		now:      time.Now,
	}, nil
}

// UseRateGuard caps calls per provider per window. Limit zero leaves the
// guard disabled.
func (r *Resolver) UseRateGuard(guard RateGuard, limit int64, window time.Duration) {
	if guard == nil || limit <= 0 || window <= 0 {
		return
	}
	r.guard = guard
	r.guardLimit = limit
	r.guardWindow = window
}

// allowCall consults the rate guard. A guard outage never blocks the lookup.
func (r *Resolver) allowCall(ctx context.Context, provider string) bool {
	if r.guard == nil {
		return true
	}
	allowed, _, err := r.guard.FixedWindowAllow(ctx, "provider:"+provider, r.guardLimit, r.guardWindow)
	if err != nil {
		r.logg.Warn(r.logg.WithProvider(ctx, provider), "rate guard unavailable, allowing call")
		return true
	}
	return allowed
}

// Resolve performs the failover lookup for one payment. Malformed responses
// skip to the next provider; when every provider fails the caller receives an
// error snapshot and must treat it as no information.
func (r *Resolver) Resolve(ctx context.Context, currency enums.Currency, address string, expectedAmount decimal.Decimal) (*Snapshot, error) {
	observedAt := r.now().UTC()

	spec, ok := r.registry.Spec(currency)
	if !ok || len(spec.Clients) == 0 {
		return &Snapshot{Status: SnapshotError, ObservedAt: observedAt},
			pkgerrors.New(pkgerrors.CodeProvidersExhausted, fmt.Sprintf("no providers configured for %s", currency))
	}

	var lastErr error
	for _, client := range spec.Clients {
		if !r.allowCall(ctx, client.Name()) {
			lastErr = pkgerrors.New(pkgerrors.CodeProviderRateLimited, fmt.Sprintf("rate window exhausted for %s", client.Name()))
			r.logg.Warn(r.logg.WithProvider(ctx, client.Name()), "provider rate window exhausted, trying next")
			continue
		}
		balance, err := client.FetchBalance(ctx, currency, address)
		if err != nil {
			lastErr = err
			r.metrics.IncProviderFailure(client.Name())
			logCtx := r.logg.WithProvider(ctx, client.Name())
			r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "provider lookup failed, trying next")
			continue
		}
		return r.buildSnapshot(spec, client.Name(), balance, expectedAmount, observedAt), nil
	}

	return &Snapshot{Status: SnapshotError, ObservedAt: observedAt},
		pkgerrors.Wrap(pkgerrors.CodeProvidersExhausted, lastErr, fmt.Sprintf("all providers failed for %s", currency))
}

func (r *Resolver) buildSnapshot(spec *providers.ChainSpec, provider string, balance *providers.AddressBalance, expectedAmount decimal.Decimal, observedAt time.Time) *Snapshot {
	snapshot := &Snapshot{
		Status:        SnapshotPending,
		Balance:       balance.Balance,
		Confirmations: balance.Confirmations,
		Provider:      provider,
		ObservedAt:    observedAt,
	}
	if len(balance.TxRefs) > 0 {
		snapshot.TxReference = balance.TxRefs[0]
	}

	if balance.Balance.GreaterThanOrEqual(expectedAmount) && expectedAmount.IsPositive() {
		snapshot.Status = SnapshotPaid
		if !balance.ConfirmationsKnown {
			// Providers that cannot report confirmations are assumed to
			// have met the threshold once the balance condition holds.
			snapshot.Confirmations = spec.ConfirmationThreshold
		}
	}
	return snapshot
}
