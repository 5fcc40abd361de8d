package providers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

// AddressBalance is the raw result of one provider lookup for one address.
type AddressBalance struct {
	// Balance is denominated in the currency's native unit (BTC, ETH, ...),
	// already scaled down from the provider's raw integer representation.
	Balance decimal.Decimal
	// Confirmations reports the confirmation count of the most recent
	// inbound transaction. Only meaningful when ConfirmationsKnown is true;
	// some providers expose balances without confirmation detail.
	Confirmations      int
	ConfirmationsKnown bool
	// TxRefs lists observed inbound transaction identifiers, most recent first.
	TxRefs  []string
	Latency time.Duration
}

// Client queries one external chain-data source. Implementations perform a
// single attempt per call; retry and failover belong to the resolver.
type Client interface {
	Name() string
	FetchBalance(ctx context.Context, currency enums.Currency, address string) (*AddressBalance, error)
}
