// Package payments wraps the hosted payment provider's REST API and verifies
// its webhook signatures.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/shopspring/decimal"
)

// Client talks to the payment provider.
type Client struct {
	http *resty.Client
	cfg  *config.PaymentsConfig
}

// NewClient builds a provider client from config.
func NewClient(cfg *config.Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.Payments.APIBaseURL).
		SetTimeout(cfg.Payments.HTTPTimeout).
		SetHeader("x-api-key", cfg.Payments.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http, cfg: &cfg.Payments}
}

// Invoice is the provider's response to an invoice creation.
type Invoice struct {
	ID         string          `json:"id"`
	PaymentURL string          `json:"invoice_url"`
	PayAmount  decimal.Decimal `json:"pay_amount"`
}

// CreateInvoice asks the provider for a hosted payment page.
func (c *Client) CreateInvoice(ctx context.Context, priceUsd decimal.Decimal, payAsset, orderID string) (*Invoice, error) {
	body := map[string]any{
		"price_amount":   priceUsd,
		"price_currency": "usd",
		"pay_currency":   payAsset,
		"order_id":       orderID,
		"ipn_callback_url": c.cfg.CallbackURL,
	}

	var invoice Invoice
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&invoice).
		Post("/invoice")
	if err != nil {
		return nil, fmt.Errorf("payments.CreateInvoice: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("payments.CreateInvoice: provider status %d: %s", resp.StatusCode(), resp.String())
	}
	if invoice.ID == "" {
		return nil, fmt.Errorf("payments.CreateInvoice: provider returned no invoice id")
	}
	return &invoice, nil
}

// MinAmount returns the provider's minimum payable amount for an asset pair.
// Used to validate deposit requests before creating an invoice.
func (c *Client) MinAmount(ctx context.Context, fromAsset string) (decimal.Decimal, error) {
	var out struct {
		MinAmount decimal.Decimal `json:"min_amount"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"currency_from": fromAsset,
			"currency_to":   "usd",
		}).
		SetResult(&out).
		Get("/min-amount")
	if err != nil {
		return decimal.Zero, fmt.Errorf("payments.MinAmount: %w", err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("payments.MinAmount: provider status %d", resp.StatusCode())
	}
	return out.MinAmount, nil
}

// ── Webhook signature ────────────────────────────────────────────────────────

// SignIPN computes the lowercase hex HMAC-SHA512 of rawBody with the shared
// IPN secret. Exported so tests can build valid deliveries.
func SignIPN(rawBody []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyIPN checks a webhook delivery signature in constant time.
func VerifyIPN(rawBody []byte, signature, secret string) bool {
	expected := SignIPN(rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
