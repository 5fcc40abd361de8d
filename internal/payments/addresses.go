package payments

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(name string) string
}

// PoolAddressProvider rotates through the operator-configured receiving
// address pool per currency. The cursor lives in redis so every worker
// replica walks the same rotation; a redis outage falls back to a process
// local counter rather than refusing new payments.
type PoolAddressProvider struct {
	pools    config.AddressPools
	counters counterStore
	logg     *logger.Logger
	fallback atomic.Int64
}

func NewPoolAddressProvider(pools config.AddressPools, counters counterStore, logg *logger.Logger) (*PoolAddressProvider, error) {
	if len(pools) == 0 {
		return nil, fmt.Errorf("address pools required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PoolAddressProvider{pools: pools, counters: counters, logg: logg}, nil
}

func (p *PoolAddressProvider) Next(ctx context.Context, currency enums.Currency) (string, error) {
	pool := p.pools[currency.String()]
	if len(pool) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no receiving addresses configured for %s", currency))
	}

	cursor := p.nextCursor(ctx, currency)
	return pool[cursor%int64(len(pool))], nil
}

func (p *PoolAddressProvider) nextCursor(ctx context.Context, currency enums.Currency) int64 {
	if p.counters != nil {
		cursor, err := p.counters.Incr(ctx, p.counters.CounterKey("addr_cursor:"+currency.String()))
		if err == nil {
			return cursor
		}
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "address cursor unavailable, using local rotation")
	}
	return p.fallback.Add(1)
}
