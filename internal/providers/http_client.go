package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
)

const (
	defaultTimeout        = 8 * time.Second
	responseBodyLimit     = 1 << 20
	apiKeyHeader          = "X-Api-Key"
	addressURLPlaceholder = "{address}"
)

// HTTPClient is a ProviderClient backed by one REST endpoint. It performs a
// single request with a bounded timeout and no retries.
type HTTPClient struct {
	name       string
	urlPattern string
	apiKey     string
	decoder    Decoder
	decimals   int
	httpClient *http.Client
}

// Option configures optional client behavior.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPClient builds a provider client from one configured endpoint.
// decimals is the currency's native decimal scale, used to convert raw
// integer balances into native units.
func NewHTTPClient(endpoint config.ProviderEndpoint, decimals int, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	if endpoint.Name == "" {
		return nil, errors.New("provider endpoint name is required")
	}
	if !strings.Contains(endpoint.URL, addressURLPlaceholder) {
		return nil, fmt.Errorf("provider %s: url must contain %s", endpoint.Name, addressURLPlaceholder)
	}
	decoder, err := DecoderFor(endpoint.Kind)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", endpoint.Name, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &HTTPClient{
		name:       endpoint.Name,
		urlPattern: endpoint.URL,
		apiKey:     endpoint.APIKey,
		decoder:    decoder,
		decimals:   decimals,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Name identifies the provider in logs and metrics.
func (c *HTTPClient) Name() string { return c.name }

// FetchBalance performs one balance lookup for the given address.
func (c *HTTPClient) FetchBalance(ctx context.Context, currency enums.Currency, address string) (*AddressBalance, error) {
	url := strings.ReplaceAll(c.urlPattern, addressURLPlaceholder, address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build provider request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, pkgerrors.New(pkgerrors.CodeProviderRateLimited, fmt.Sprintf("provider %s rate limited", c.name))
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, fmt.Sprintf("provider %s returned status %d", c.name, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, fmt.Sprintf("read provider %s response", c.name))
	}

	balance, err := c.decoder.Decode(body, c.decimals)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedProvider, err, fmt.Sprintf("decode provider %s response", c.name))
	}
	if balance.Balance.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedProvider, fmt.Sprintf("provider %s reported negative balance", c.name))
	}
	balance.Latency = time.Since(start)
	return balance, nil
}

func classifyTransportError(name string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, fmt.Sprintf("provider %s timed out", name))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, fmt.Sprintf("provider %s timed out", name))
	}
	return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, fmt.Sprintf("provider %s unreachable", name))
}
