package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/chainpay-backend/internal/resolver"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
	"github.com/angelmondragon/chainpay-backend/pkg/metrics"
)

// store is the slice of the redis client the cache needs. Keeping it narrow
// lets tests swap in an in-memory fake.
type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SnapshotKey(currency, address string) string
}

// SnapshotCache memoizes resolver snapshots per (currency, address) so that
// several payment requests watching the same address within one TTL window
// share a single provider lookup. Every cache failure degrades to a miss.
type SnapshotCache struct {
	store   store
	ttl     time.Duration
	logg    *logger.Logger
	metrics *metrics.ReconcileMetrics
}

// Params carries the dependencies for New.
type Params struct {
	Store   store
	TTL     time.Duration
	Logger  *logger.Logger
	Metrics *metrics.ReconcileMetrics
}

func New(params Params) (*SnapshotCache, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("snapshot ttl must be positive, got %s", params.TTL)
	}
	return &SnapshotCache{
		store:   params.Store,
		ttl:     params.TTL,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Get returns the cached snapshot for the address, or nil on a miss. Redis
// errors and undecodable payloads are both misses; the reconciler falls back
// to a live provider lookup either way.
func (c *SnapshotCache) Get(ctx context.Context, currency enums.Currency, address string) *resolver.Snapshot {
	raw, err := c.store.Get(ctx, c.store.SnapshotKey(string(currency), address))
	if err != nil || raw == "" {
		c.metrics.IncCacheMiss()
		return nil
	}

	var snapshot resolver.Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping undecodable cached snapshot")
		c.metrics.IncCacheMiss()
		return nil
	}

	c.metrics.IncCacheHit()
	return &snapshot
}

// Put stores the snapshot best-effort. Error snapshots are never cached, a
// provider outage must not be replayed to other payments for a full TTL.
func (c *SnapshotCache) Put(ctx context.Context, currency enums.Currency, address string, snapshot *resolver.Snapshot) {
	if snapshot == nil || snapshot.Status == resolver.SnapshotError {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "could not encode snapshot for cache")
		return
	}
	if err := c.store.Set(ctx, c.store.SnapshotKey(string(currency), address), payload, c.ttl); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "could not cache snapshot")
	}
}
