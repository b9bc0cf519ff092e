package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// TransferIntent
// ──────────────────────────────────────────────────────────────────────────────

// TransferStatus is the two-phase transfer state: an intent waits for a code
// confirmation, then completes. There is no partial state — the debit and
// credit happen together or not at all.
type TransferStatus string

const (
	TransferOtpPending TransferStatus = "otp_pending"
	TransferCompleted  TransferStatus = "completed"
)

// TransferIntent is phase one of an internal transfer: created when the sender
// initiates, completed only after the emailed code is confirmed.
type TransferIntent struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	FromUserID  uuid.UUID       `json:"from_user_id" db:"from_user_id"`
	FromEmail   string          `json:"from_email"   db:"from_email"`
	ToUserID    uuid.UUID       `json:"to_user_id"   db:"to_user_id"`
	ToEmail     string          `json:"to_email"     db:"to_email"`
	AmountUsd   decimal.Decimal `json:"amount_usd"   db:"amount_usd"`
	Status      TransferStatus  `json:"status"       db:"status"`
	CompletedAt *time.Time      `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
}

// TransferRecord is the immutable history row appended when a transfer
// completes.
type TransferRecord struct {
	ID         uuid.UUID       `json:"id"          db:"id"`
	TransferID uuid.UUID       `json:"transfer_id" db:"transfer_id"`
	FromUserID uuid.UUID       `json:"from_user_id" db:"from_user_id"`
	ToUserID   uuid.UUID       `json:"to_user_id"  db:"to_user_id"`
	AmountUsd  decimal.Decimal `json:"amount_usd"  db:"amount_usd"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// OneTimeCode
// ──────────────────────────────────────────────────────────────────────────────

// CodeTTL is how long a confirmation code stays valid after issue.
const CodeTTL = 10 * time.Minute

// OneTimeCode stores the SHA-256 hash of a 6-digit confirmation code, keyed by
// the subject's lowercased email. At most one active code exists per subject;
// issuing a new one replaces the old. Failed attempts are counted but do not
// lock the code out.
type OneTimeCode struct {
	SubjectKey string    `json:"subject_key" db:"subject_key"`
	CodeHash   string    `json:"-"           db:"code_hash"`
	Attempts   int       `json:"attempts"    db:"attempts"`
	ExpiresAt  time.Time `json:"expires_at"  db:"expires_at"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// IsExpired returns true when the code has passed its TTL.
func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Matches hashes candidate and compares it to the stored hash.
func (c *OneTimeCode) Matches(candidate string) bool {
	return c.CodeHash == HashCode(candidate)
}

// SubjectKeyFor normalises an email into the code lookup key.
func SubjectKeyFor(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashCode returns the lowercase hex SHA-256 of a confirmation code. Only the
// hash is ever persisted.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
