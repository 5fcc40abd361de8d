package providers

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

// ChainSpec is the per-currency capability record: confirmation policy,
// native decimal scale and the ordered provider list.
type ChainSpec struct {
	Currency              enums.Currency
	ConfirmationThreshold int
	Decimals              int
	Clients               []Client
}

// Registry resolves per-currency chain capabilities. It replaces per-asset
// branching: callers look up a spec instead of switching on the currency.
type Registry struct {
	chains map[enums.Currency]*ChainSpec
}

// NewRegistry builds the registry from configuration. An empty topology is a
// fatal misconfiguration and is surfaced here, at startup, rather than
// per-payment at runtime.
func NewRegistry(cfg config.ChainsConfig, providerTimeout time.Duration) (*Registry, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no chain providers configured")
	}

	chains := make(map[enums.Currency]*ChainSpec, len(cfg.Providers))
	for code, endpoints := range cfg.Providers {
		currency, err := enums.ParseCurrency(code)
		if err != nil {
			return nil, fmt.Errorf("chain registry: %w", err)
		}
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("chain registry: currency %s has no providers", currency)
		}

		decimals := cfg.DecimalsFor(currency)
		clients := make([]Client, 0, len(endpoints))
		for _, endpoint := range endpoints {
			client, err := NewHTTPClient(endpoint, decimals, providerTimeout)
			if err != nil {
				return nil, fmt.Errorf("chain registry: currency %s: %w", currency, err)
			}
			clients = append(clients, client)
		}

		chains[currency] = &ChainSpec{
			Currency:              currency,
			ConfirmationThreshold: cfg.ThresholdFor(currency),
			Decimals:              decimals,
			Clients:               clients,
		}
	}
	return &Registry{chains: chains}, nil
}

// NewRegistryFromSpecs builds a registry from explicit specs. Intended for
// wiring test doubles.
func NewRegistryFromSpecs(specs ...*ChainSpec) *Registry {
	chains := make(map[enums.Currency]*ChainSpec, len(specs))
	for _, spec := range specs {
		if spec == nil {
			continue
		}
		chains[spec.Currency] = spec
	}
	return &Registry{chains: chains}
}

// Spec returns the capability record for a currency.
func (r *Registry) Spec(currency enums.Currency) (*ChainSpec, bool) {
	spec, ok := r.chains[currency]
	return spec, ok
}

// Currencies lists the configured currencies in stable order.
func (r *Registry) Currencies() []enums.Currency {
	out := make([]enums.Currency, 0, len(r.chains))
	for currency := range r.chains {
		out = append(out, currency)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
