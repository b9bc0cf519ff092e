package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// DepositIntent
// ──────────────────────────────────────────────────────────────────────────────

// IntentStatus mirrors the payment provider's invoice lifecycle, plus the
// terminal "credited" state set once the wallet has been funded. The credited
// state is the idempotency anchor: a webhook replay against a credited intent
// never funds the wallet again.
type IntentStatus string

const (
	IntentWaiting       IntentStatus = "waiting"
	IntentConfirming    IntentStatus = "confirming"
	IntentConfirmed     IntentStatus = "confirmed"
	IntentSending       IntentStatus = "sending"
	IntentPartiallyPaid IntentStatus = "partially_paid"
	IntentFinished      IntentStatus = "finished"
	IntentFailed        IntentStatus = "failed"
	IntentRefunded      IntentStatus = "refunded"
	IntentExpired       IntentStatus = "expired"
	IntentCredited      IntentStatus = "credited"
)

// ShouldCredit returns true for provider statuses that mean the payment is
// final and the wallet should be funded.
func (s IntentStatus) ShouldCredit() bool {
	return s == IntentFinished || s == IntentConfirmed
}

// AlreadyCredited returns true once the intent has funded the wallet.
func (s IntentStatus) AlreadyCredited() bool {
	return s == IntentCredited
}

// DepositIntent is created when a user requests a payment-provider invoice and
// updated by webhook deliveries. Keyed by the provider's invoice id.
type DepositIntent struct {
	ID         uuid.UUID       `json:"id"          db:"id"`
	InvoiceID  string          `json:"invoice_id"  db:"invoice_id"` // provider-side id, unique
	UserID     uuid.UUID       `json:"user_id"     db:"user_id"`
	Email      string          `json:"email"       db:"email"`
	AmountUsd  decimal.Decimal `json:"amount_usd"  db:"amount_usd"`
	PayAsset   string          `json:"pay_asset"   db:"pay_asset"` // e.g. btc, usdttrc20
	PayAmount  decimal.Decimal `json:"pay_amount"  db:"pay_amount"`
	Status     IntentStatus    `json:"status"      db:"status"`
	PaymentURL string          `json:"payment_url" db:"payment_url"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"  db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Manual review requests
// ──────────────────────────────────────────────────────────────────────────────

// ReviewStatus is shared by manual deposit and withdrawal requests.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewRejected  ReviewStatus = "rejected"
	ReviewCompleted ReviewStatus = "completed" // withdrawals only: funds sent out
)

// DepositRequest is a manually-submitted deposit claim (tx hash + proof image)
// waiting for back-office review. Approval credits the wallet exactly once.
type DepositRequest struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	UserID        uuid.UUID       `json:"user_id"        db:"user_id"`
	AmountUsd     decimal.Decimal `json:"amount_usd"     db:"amount_usd"`
	Asset         string          `json:"asset"          db:"asset"`
	TxID          string          `json:"tx_id"          db:"tx_id"`
	ScreenshotURL string          `json:"screenshot_url" db:"screenshot_url"`
	Status        ReviewStatus    `json:"status"         db:"status"`
	ReviewedBy    *uuid.UUID      `json:"reviewed_by"    db:"reviewed_by"`
	ReviewNote    string          `json:"review_note"    db:"review_note"`
	RequestedAt   time.Time       `json:"requested_at"   db:"requested_at"`
	ReviewedAt    *time.Time      `json:"reviewed_at"    db:"reviewed_at"`
}

// WithdrawRequest is submitted by a user who wants to withdraw USD. The fee is
// computed from settings at submission time; the wallet is debited only when
// the request is approved.
type WithdrawRequest struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	UserID      uuid.UUID       `json:"user_id"      db:"user_id"`
	Amount      decimal.Decimal `json:"amount"       db:"amount"` // gross, debited on approval
	Fee         decimal.Decimal `json:"fee"          db:"fee"`
	Asset       string          `json:"asset"        db:"asset"`
	Address     string          `json:"address"      db:"address"`
	Status      ReviewStatus    `json:"status"       db:"status"`
	ReviewedBy  *uuid.UUID      `json:"reviewed_by"  db:"reviewed_by"`
	ReviewNote  string          `json:"review_note"  db:"review_note"`
	RequestedAt time.Time       `json:"requested_at" db:"requested_at"`
	ReviewedAt  *time.Time      `json:"reviewed_at"  db:"reviewed_at"`
}

// NetAmount returns the amount the user receives after fees.
func (w *WithdrawRequest) NetAmount() decimal.Decimal {
	return w.Amount.Sub(w.Fee)
}
