package enums

import "fmt"

// Currency represents the assets a payment request can be denominated in.
type Currency string

const (
	CurrencyBTC  Currency = "BTC"
	CurrencyLTC  Currency = "LTC"
	CurrencyETH  Currency = "ETH"
	CurrencyBNB  Currency = "BNB"
	CurrencySOL  Currency = "SOL"
	CurrencyUSDT Currency = "USDT"
	CurrencyUSDC Currency = "USDC"
)

var validCurrencies = []Currency{
	CurrencyBTC,
	CurrencyLTC,
	CurrencyETH,
	CurrencyBNB,
	CurrencySOL,
	CurrencyUSDT,
	CurrencyUSDC,
}

// Currencies returns every supported currency.
func Currencies() []Currency {
	out := make([]Currency, len(validCurrencies))
	copy(out, validCurrencies)
	return out
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
