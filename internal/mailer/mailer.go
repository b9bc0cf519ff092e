// Package mailer sends transactional email through a Resend-compatible REST
// API. Sends are fire-and-forget from the caller's perspective: a failed send
// is logged, never fatal.
package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/go-resty/resty/v2"
	"github.com/nexbit/tradecore/internal/config"
)

// Sender is the minimal interface services depend on, so tests can swap in a
// recorder.
type Sender interface {
	SendConfirmationCode(ctx context.Context, toEmail, code string) error
}

// Mailer sends email via the configured provider.
type Mailer struct {
	client *resty.Client
	cfg    *config.MailerConfig
}

// New builds a Mailer from config. With an empty API key the mailer runs in
// dev mode: messages are logged instead of sent.
func New(cfg *config.Config) *Mailer {
	client := resty.New().
		SetBaseURL(cfg.Mailer.APIBaseURL).
		SetTimeout(cfg.Mailer.HTTPTimeout).
		SetAuthToken(cfg.Mailer.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Mailer{client: client, cfg: &cfg.Mailer}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendConfirmationCode emails a transfer confirmation code. The plaintext code
// exists only in this message; storage keeps the hash.
func (m *Mailer) SendConfirmationCode(ctx context.Context, toEmail, code string) error {
	if m.cfg.APIKey == "" {
		log.Printf("[mailer] dev mode: confirmation code for %s: %s", toEmail, code)
		return nil
	}

	body := sendRequest{
		From:    m.cfg.FromAddress,
		To:      []string{toEmail},
		Subject: "Your transfer confirmation code",
		HTML: fmt.Sprintf(
			"<p>Your confirmation code is <strong>%s</strong>.</p><p>It expires in 10 minutes. If you did not request a transfer, ignore this message.</p>",
			code),
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("mailer.SendConfirmationCode: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mailer.SendConfirmationCode: provider status %d", resp.StatusCode())
	}
	return nil
}
