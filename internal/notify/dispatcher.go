package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chainpay-backend/pkg/errors"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
	"github.com/angelmondragon/chainpay-backend/pkg/metrics"
)

const signatureHeader = "X-Chainpay-Signature"

// PaidEvent is the payload POSTed to the merchant callback when a payment
// settles.
type PaidEvent struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	Currency      enums.Currency  `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Address       string          `json:"address"`
	Confirmations int             `json:"confirmations"`
	TxReference   string          `json:"tx_reference,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

// Dispatcher delivers paid callbacks at-most-once per transition. Delivery
// failure is terminal for the notification, never for the payment: the paid
// status stands regardless of what the merchant endpoint does.
type Dispatcher struct {
	httpClient    *http.Client
	signingSecret string
	maxAttempts   int
	logg          *logger.Logger
	metrics       *metrics.ReconcileMetrics
}

// Params carries the dependencies for New.
type Params struct {
	Config  config.CallbackConfig
	Logger  *logger.Logger
	Metrics *metrics.ReconcileMetrics
}

func New(params Params) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{
		httpClient:    &http.Client{Timeout: timeout},
		signingSecret: params.Config.SigningSecret,
		maxAttempts:   maxAttempts,
		logg:          params.Logger,
		metrics:       params.Metrics,
	}, nil
}

// Dispatch POSTs the event to callbackURL, retrying transient failures a
// bounded number of times within this single transition. The returned error
// is informational; callers log and audit it but never roll back the paid
// transition.
func (d *Dispatcher) Dispatch(ctx context.Context, callbackURL string, event PaidEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotificationFailure, err, "could not encode callback payload")
	}

	backoff := retry.WithMaxRetries(uint64(d.maxAttempts-1), retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return d.post(ctx, callbackURL, payload)
	})
	if err != nil {
		d.metrics.IncNotification("failed")
		return pkgerrors.Wrap(pkgerrors.CodeNotificationFailure, err,
			fmt.Sprintf("callback delivery failed after %d attempts", d.maxAttempts))
	}

	d.metrics.IncNotification("sent")
	d.logg.Info(d.logg.WithPaymentID(ctx, event.PaymentID.String()), "paid callback delivered")
	return nil
}

func (d *Dispatcher) post(ctx context.Context, callbackURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.signingSecret != "" {
		req.Header.Set(signatureHeader, sign(payload, d.signingSecret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("callback endpoint returned %d", resp.StatusCode))
	default:
		// 4xx other than 429 will not improve on retry.
		return fmt.Errorf("callback endpoint returned %d", resp.StatusCode)
	}
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
