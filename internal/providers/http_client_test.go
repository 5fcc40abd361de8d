package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
)

func newTestClient(t *testing.T, serverURL, kind string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(config.ProviderEndpoint{
		Name: "test-provider",
		Kind: kind,
		URL:  serverURL + "/addrs/{address}",
	}, 8, 2*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client
}

func TestFetchBalanceDecodesBlockCypherSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/addrs/bc1q-test" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"balance": 120000,
			"final_balance": 120000,
			"txrefs": [
				{"tx_hash": "feed01", "confirmations": 3, "value": 120000},
				{"tx_hash": "feed00", "confirmations": 9, "value": 50000}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, KindBlockCypher)
	balance, err := client.FetchBalance(context.Background(), enums.CurrencyBTC, "bc1q-test")
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if want := decimal.RequireFromString("0.0012"); !balance.Balance.Equal(want) {
		t.Fatalf("expected balance %s, got %s", want, balance.Balance)
	}
	if !balance.ConfirmationsKnown || balance.Confirmations != 3 {
		t.Fatalf("expected 3 known confirmations, got known=%v n=%d", balance.ConfirmationsKnown, balance.Confirmations)
	}
	if len(balance.TxRefs) != 2 || balance.TxRefs[0] != "feed01" {
		t.Fatalf("unexpected tx refs %v", balance.TxRefs)
	}
	if balance.Latency <= 0 {
		t.Fatalf("expected latency to be recorded")
	}
}

func TestFetchBalanceDecodesSoChainEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"confirmed_balance": "0.005", "txs": [{"txid": "aa11"}]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, KindSoChain)
	balance, err := client.FetchBalance(context.Background(), enums.CurrencyLTC, "ltc1-test")
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if want := decimal.RequireFromString("0.005"); !balance.Balance.Equal(want) {
		t.Fatalf("expected balance %s, got %s", want, balance.Balance)
	}
	if balance.ConfirmationsKnown {
		t.Fatalf("sochain responses carry no confirmation detail")
	}
}

func TestFetchBalanceClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, KindBlockCypher)
	_, err := client.FetchBalance(context.Background(), enums.CurrencyBTC, "bc1q-test")
	if !pkgerrors.HasCode(err, pkgerrors.CodeProviderRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}

func TestFetchBalanceClassifiesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, KindBlockCypher)
	_, err := client.FetchBalance(context.Background(), enums.CurrencyBTC, "bc1q-test")
	if !pkgerrors.HasCode(err, pkgerrors.CodeProviderUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestFetchBalanceClassifiesMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, KindBlockCypher)
	_, err := client.FetchBalance(context.Background(), enums.CurrencyBTC, "bc1q-test")
	if !pkgerrors.HasCode(err, pkgerrors.CodeMalformedProvider) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestFetchBalanceRejectsNegativeBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance": -5}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, KindBlockCypher)
	_, err := client.FetchBalance(context.Background(), enums.CurrencyBTC, "bc1q-test")
	if !pkgerrors.HasCode(err, pkgerrors.CodeMalformedProvider) {
		t.Fatalf("expected malformed error for negative balance, got %v", err)
	}
}

func TestFetchBalanceTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewHTTPClient(config.ProviderEndpoint{
		Name: "slow-provider",
		Kind: KindBlockCypher,
		URL:  server.URL + "/addrs/{address}",
	}, 8, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	_, err = client.FetchBalance(context.Background(), enums.CurrencyBTC, "bc1q-test")
	if !pkgerrors.HasCode(err, pkgerrors.CodeProviderUnavailable) {
		t.Fatalf("expected unavailable error on timeout, got %v", err)
	}
}

func TestNewHTTPClientRejectsBadTemplates(t *testing.T) {
	if _, err := NewHTTPClient(config.ProviderEndpoint{Name: "x", Kind: KindSoChain, URL: "https://example.com/fixed"}, 8, time.Second); err == nil {
		t.Fatal("expected error for missing address placeholder")
	}
	if _, err := NewHTTPClient(config.ProviderEndpoint{Name: "x", Kind: "mystery", URL: "https://example.com/{address}"}, 8, time.Second); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
