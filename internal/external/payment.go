package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendly/internal/errs"
)

// PaymentClient talks to the external payment gateway. Orders are created
// server-side; the client completes checkout against the gateway directly
// and confirmations come back through the verify call and the webhook.
type PaymentClient struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	httpClient    *http.Client
}

type PaymentConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// OrderRequest is the gateway order creation payload. Amount is in minor
// currency units; Receipt is an idempotent identifier derived from the
// registration id.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the gateway's view of a created order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PaymentClient{
		baseURL:       cfg.BaseURL,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreateOrder registers an order with the gateway. A transport failure
// maps to ErrGatewayUnavailable so callers can retry without unwinding
// the pending registration.
func (pc *PaymentClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/v1/orders", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(pc.keyID, pc.keySecret)

	resp, err := pc.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", errs.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("order creation rejected: status %d", resp.StatusCode)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &order, nil
}

// VerifyCheckoutSignature checks the synchronous confirmation signature:
// HMAC-SHA256 over "orderID|paymentID" with the key secret.
func (pc *PaymentClient) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	expected := CheckoutSignature(pc.keySecret, orderID, paymentID)
	return equalSignatures(expected, signature)
}

// VerifyWebhookSignature checks the webhook signature computed over the
// exact raw bytes received, before any JSON parsing.
func (pc *PaymentClient) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	expected := WebhookSignature(pc.webhookSecret, rawBody)
	return equalSignatures(expected, signature)
}
