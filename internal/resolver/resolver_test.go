package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/internal/providers"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

type fakeClient struct {
	name    string
	balance *providers.AddressBalance
	err     error
	calls   int
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) FetchBalance(ctx context.Context, currency enums.Currency, address string) (*providers.AddressBalance, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.balance, nil
}

func newTestResolver(t *testing.T, spec *providers.ChainSpec) *Resolver {
	t.Helper()
	registry := providers.NewRegistryFromSpecs(spec)
	r, err := New(registry, logger.New(logger.Options{ServiceName: "test"}), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.now = func() time.Time { return time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestResolveReturnsPendingBelowExpectedAmount(t *testing.T) {
	client := &fakeClient{name: "primary", balance: &providers.AddressBalance{
		Balance: decimal.Zero, ConfirmationsKnown: true,
	}}
	r := newTestResolver(t, &providers.ChainSpec{
		Currency: enums.CurrencyBTC, ConfirmationThreshold: 3, Clients: []providers.Client{client},
	})

	snapshot, err := r.Resolve(context.Background(), enums.CurrencyBTC, "addr", decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if snapshot.Status != SnapshotPending {
		t.Fatalf("expected pending, got %s", snapshot.Status)
	}
}

func TestResolveMapsSufficientBalanceToPaid(t *testing.T) {
	client := &fakeClient{name: "primary", balance: &providers.AddressBalance{
		Balance:            decimal.RequireFromString("0.0012"),
		Confirmations:      3,
		ConfirmationsKnown: true,
		TxRefs:             []string{"feed01"},
	}}
	r := newTestResolver(t, &providers.ChainSpec{
		Currency: enums.CurrencyBTC, ConfirmationThreshold: 3, Clients: []providers.Client{client},
	})

	snapshot, err := r.Resolve(context.Background(), enums.CurrencyBTC, "addr", decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if snapshot.Status != SnapshotPaid {
		t.Fatalf("expected paid, got %s", snapshot.Status)
	}
	if snapshot.TxReference != "feed01" {
		t.Fatalf("expected tx reference, got %q", snapshot.TxReference)
	}
	if !snapshot.Actionable(3) {
		t.Fatal("snapshot should be actionable at threshold 3")
	}
	if snapshot.Actionable(6) {
		t.Fatal("snapshot must not be actionable above its confirmation count")
	}
}

func TestResolveFailsOverToSecondProvider(t *testing.T) {
	broken := &fakeClient{name: "primary", err: pkgerrors.New(pkgerrors.CodeProviderUnavailable, "down")}
	healthy := &fakeClient{name: "secondary", balance: &providers.AddressBalance{
		Balance:            decimal.RequireFromString("0.002"),
		Confirmations:      4,
		ConfirmationsKnown: true,
	}}
	r := newTestResolver(t, &providers.ChainSpec{
		Currency: enums.CurrencyBTC, ConfirmationThreshold: 3, Clients: []providers.Client{broken, healthy},
	})

	snapshot, err := r.Resolve(context.Background(), enums.CurrencyBTC, "addr", decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if snapshot.Provider != "secondary" {
		t.Fatalf("expected secondary provider to win, got %q", snapshot.Provider)
	}
	if broken.calls != 1 || healthy.calls != 1 {
		t.Fatalf("expected one call each, got %d/%d", broken.calls, healthy.calls)
	}
	if snapshot.Status != SnapshotPaid {
		t.Fatalf("expected paid from failover snapshot, got %s", snapshot.Status)
	}
}

func TestResolveAllProvidersExhausted(t *testing.T) {
	first := &fakeClient{name: "a", err: pkgerrors.New(pkgerrors.CodeProviderUnavailable, "down")}
	second := &fakeClient{name: "b", err: pkgerrors.New(pkgerrors.CodeMalformedProvider, "garbage")}
	r := newTestResolver(t, &providers.ChainSpec{
		Currency: enums.CurrencyBTC, ConfirmationThreshold: 3, Clients: []providers.Client{first, second},
	})

	snapshot, err := r.Resolve(context.Background(), enums.CurrencyBTC, "addr", decimal.RequireFromString("0.001"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeProvidersExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if snapshot.Status != SnapshotError {
		t.Fatalf("expected error snapshot, got %s", snapshot.Status)
	}
}

func TestResolveZeroProvidersIsImmediateError(t *testing.T) {
	r := newTestResolver(t, &providers.ChainSpec{Currency: enums.CurrencyETH, ConfirmationThreshold: 12})

	snapshot, err := r.Resolve(context.Background(), enums.CurrencyETH, "0xaddr", decimal.New(1, 0))
	if !pkgerrors.HasCode(err, pkgerrors.CodeProvidersExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if snapshot.Status != SnapshotError {
		t.Fatalf("expected error snapshot, got %s", snapshot.Status)
	}
}

type fakeGuard struct {
	allowed map[string]bool
	err     error
}

func (f *fakeGuard) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	return f.allowed[scope], 0, nil
}

func TestResolveSkipsRateLimitedProvider(t *testing.T) {
	throttled := &fakeClient{name: "primary", balance: &providers.AddressBalance{
		Balance: decimal.RequireFromString("0.002"), Confirmations: 4, ConfirmationsKnown: true,
	}}
	healthy := &fakeClient{name: "secondary", balance: &providers.AddressBalance{
		Balance: decimal.RequireFromString("0.002"), Confirmations: 4, ConfirmationsKnown: true,
	}}
	r := newTestResolver(t, &providers.ChainSpec{
		Currency: enums.CurrencyBTC, ConfirmationThreshold: 3, Clients: []providers.Client{throttled, healthy},
	})
	r.UseRateGuard(&fakeGuard{allowed: map[string]bool{"provider:secondary": true}}, 10, time.Second)

	snapshot, err := r.Resolve(context.Background(), enums.CurrencyBTC, "addr", decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if throttled.calls != 0 {
		t.Fatalf("throttled provider must not be called, got %d calls", throttled.calls)
	}
	if snapshot.Provider != "secondary" {
		t.Fatalf("expected secondary provider, got %q", snapshot.Provider)
	}
}

func TestResolveGuardOutageAllowsCall(t *testing.T) {
	client := &fakeClient{name: "primary", balance: &providers.AddressBalance{
		Balance: decimal.Zero, ConfirmationsKnown: true,
	}}
	r := newTestResolver(t, &providers.ChainSpec{
		Currency: enums.CurrencyBTC, ConfirmationThreshold: 3, Clients: []providers.Client{client},
	})
	r.UseRateGuard(&fakeGuard{err: context.DeadlineExceeded}, 10, time.Second)

	if _, err := r.Resolve(context.Background(), enums.CurrencyBTC, "addr", decimal.RequireFromString("0.001")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("guard outage must not block the lookup, got %d calls", client.calls)
	}
}

func TestResolveAssumesThresholdWhenConfirmationsUnknown(t *testing.T) {
	client := &fakeClient{name: "balance-only", balance: &providers.AddressBalance{
		Balance:            decimal.RequireFromString("1.5"),
		ConfirmationsKnown: false,
	}}
	r := newTestResolver(t, &providers.ChainSpec{
		Currency: enums.CurrencyLTC, ConfirmationThreshold: 6, Clients: []providers.Client{client},
	})

	snapshot, err := r.Resolve(context.Background(), enums.CurrencyLTC, "addr", decimal.New(1, 0))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if snapshot.Confirmations != 6 {
		t.Fatalf("expected conservative threshold default 6, got %d", snapshot.Confirmations)
	}
	if !snapshot.Actionable(6) {
		t.Fatal("snapshot should be actionable under assumed confirmations")
	}
}
