package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/internal/resolver"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

type fakeStore struct {
	values   map[string]string
	ttls     map[string]time.Duration
	getErr   error
	setErr   error
	setCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	default:
		f.values[key] = fmt.Sprintf("%v", v)
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (f *fakeStore) SnapshotKey(currency, address string) string {
	return "cp:snapshot:" + currency + ":" + address
}

func newTestCache(t *testing.T, store *fakeStore) *SnapshotCache {
	t.Helper()
	c, err := New(Params{
		Store:  store,
		TTL:    30 * time.Second,
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestPutThenGetRoundTrips(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()

	snapshot := &resolver.Snapshot{
		Status:        resolver.SnapshotPaid,
		Balance:       decimal.RequireFromString("0.0012"),
		Confirmations: 3,
		Provider:      "blockcypher",
		ObservedAt:    time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	c.Put(ctx, enums.CurrencyBTC, "addr1", snapshot)

	got := c.Get(ctx, enums.CurrencyBTC, "addr1")
	if got == nil {
		t.Fatal("expected a cache hit")
	}
	if got.Status != resolver.SnapshotPaid || got.Confirmations != 3 {
		t.Fatalf("snapshot mangled in transit: %+v", got)
	}
	if !got.Balance.Equal(snapshot.Balance) {
		t.Fatalf("balance mangled: %s", got.Balance)
	}
	if ttl := store.ttls[store.SnapshotKey("BTC", "addr1")]; ttl != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %s", ttl)
	}
}

func TestGetMissWhenAbsent(t *testing.T) {
	c := newTestCache(t, newFakeStore())
	if got := c.Get(context.Background(), enums.CurrencyBTC, "addr1"); got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestGetDegradesRedisErrorToMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	c := newTestCache(t, store)
	if got := c.Get(context.Background(), enums.CurrencyBTC, "addr1"); got != nil {
		t.Fatalf("expected miss on redis error, got %+v", got)
	}
}

func TestGetDegradesGarbageToMiss(t *testing.T) {
	store := newFakeStore()
	store.values[store.SnapshotKey("BTC", "addr1")] = "{not json"
	c := newTestCache(t, store)
	if got := c.Get(context.Background(), enums.CurrencyBTC, "addr1"); got != nil {
		t.Fatalf("expected miss on garbage payload, got %+v", got)
	}
}

func TestPutSkipsErrorSnapshots(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	c.Put(context.Background(), enums.CurrencyBTC, "addr1", &resolver.Snapshot{Status: resolver.SnapshotError})
	if store.setCalls != 0 {
		t.Fatalf("error snapshot must not be cached, saw %d writes", store.setCalls)
	}
}

func TestPutSwallowsStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("connection refused")
	c := newTestCache(t, store)
	c.Put(context.Background(), enums.CurrencyBTC, "addr1", &resolver.Snapshot{Status: resolver.SnapshotPending})
}

func TestCachedPayloadIsStableJSON(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	c.Put(context.Background(), enums.CurrencyBTC, "addr1", &resolver.Snapshot{
		Status:  resolver.SnapshotPending,
		Balance: decimal.Zero,
	})
	var decoded map[string]any
	if err := json.Unmarshal([]byte(store.values[store.SnapshotKey("BTC", "addr1")]), &decoded); err != nil {
		t.Fatalf("cached payload is not json: %v", err)
	}
	if decoded["status"] != "pending" {
		t.Fatalf("unexpected status field: %v", decoded["status"])
	}
}
