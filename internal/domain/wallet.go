package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// AccountType
// ──────────────────────────────────────────────────────────────────────────────

// AccountType selects which balance a trade or ledger entry touches.
// Real money and demo money never mix.
type AccountType string

const (
	AccountReal AccountType = "real"
	AccountDemo AccountType = "demo"
)

// Valid returns true when t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountReal || t == AccountDemo
}

// ──────────────────────────────────────────────────────────────────────────────
// Wallet
// ──────────────────────────────────────────────────────────────────────────────

// Wallet holds one user's USD balances. Both balances are invariantly >= 0;
// every mutation goes through WalletRepository.Credit/Debit inside a
// transaction, never through a split read/write.
type Wallet struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	UserID      uuid.UUID       `json:"user_id"      db:"user_id"`
	RealBalance decimal.Decimal `json:"real_balance" db:"real_balance"`
	DemoBalance decimal.Decimal `json:"demo_balance" db:"demo_balance"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"   db:"updated_at"`
}

// Balance returns the balance for the requested account type.
func (w *Wallet) Balance(account AccountType) decimal.Decimal {
	if account == AccountDemo {
		return w.DemoBalance
	}
	return w.RealBalance
}

// ──────────────────────────────────────────────────────────────────────────────
// LedgerEntry
// ──────────────────────────────────────────────────────────────────────────────

// EntryType enumerates ledger entry types for auditing.
type EntryType string

const (
	EntryDeposit       EntryType = "deposit"
	EntryWithdraw      EntryType = "withdraw"
	EntryTradeStake    EntryType = "trade_stake"
	EntryTradePayout   EntryType = "trade_payout"
	EntryTransferIn    EntryType = "transfer_in"
	EntryTransferOut   EntryType = "transfer_out"
	EntryEscrowHold    EntryType = "escrow_hold"
	EntryEscrowRelease EntryType = "escrow_release"
	EntryEscrowRefund  EntryType = "escrow_refund"
	EntryAdjustment    EntryType = "adjustment" // back-office manual correction
)

// LedgerEntry is an immutable audit record for every wallet balance change.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"      db:"wallet_id"`
	Account       AccountType     `json:"account"        db:"account"`
	Type          EntryType       `json:"type"           db:"type"`
	Amount        decimal.Decimal `json:"amount"         db:"amount"` // signed: credit > 0, debit < 0
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"  db:"balance_after"`
	RefID         *uuid.UUID      `json:"ref_id"         db:"ref_id"` // position, order, or transfer ID
	Description   string          `json:"description"    db:"description"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
}
