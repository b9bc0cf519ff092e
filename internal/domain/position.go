package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Side
// ──────────────────────────────────────────────────────────────────────────────

// Side is the direction of a timed position: BUY wins when the price rises,
// SELL wins when it falls.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid returns true when s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ──────────────────────────────────────────────────────────────────────────────
// PositionStatus
// ──────────────────────────────────────────────────────────────────────────────

// PositionStatus represents the lifecycle of a position. A position is settled
// exactly once: open → won or open → lost, never back.
type PositionStatus string

const (
	PositionOpen PositionStatus = "open"
	PositionWon  PositionStatus = "won"
	PositionLost PositionStatus = "lost"
)

// ──────────────────────────────────────────────────────────────────────────────
// Position
// ──────────────────────────────────────────────────────────────────────────────

// Position is a fixed-payout timed trade. The stake is debited from the chosen
// account when the position opens; settlement at expiry either credits
// stake + pnl (won) or credits nothing (lost).
type Position struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	UserID      uuid.UUID       `json:"user_id"      db:"user_id"`
	Symbol      string          `json:"symbol"       db:"symbol"`
	Side        Side            `json:"side"         db:"side"`
	Account     AccountType     `json:"account"      db:"account"`
	Stake       decimal.Decimal `json:"stake"        db:"stake"`
	EntryPrice  decimal.Decimal `json:"entry_price"  db:"entry_price"`
	PayoutPct   decimal.Decimal `json:"payout_pct"   db:"payout_pct"` // captured at open time
	Status      PositionStatus  `json:"status"       db:"status"`
	OpenedAt    time.Time       `json:"opened_at"    db:"opened_at"`
	ExpiresAt   time.Time       `json:"expires_at"   db:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"   db:"updated_at"`
}

// IsExpired returns true when the position's expiry has passed.
func (p *Position) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Won decides the binary outcome for an exit price. A BUY wins only when the
// exit is strictly above the entry; a SELL wins only when it is strictly below.
// An unchanged price loses either way.
func (p *Position) Won(exitPrice decimal.Decimal) bool {
	switch p.Side {
	case SideBuy:
		return exitPrice.GreaterThan(p.EntryPrice)
	case SideSell:
		return exitPrice.LessThan(p.EntryPrice)
	default:
		return false
	}
}

// PnL computes the signed profit for the position outcome, rounded down to
// 4 decimal places: stake × payoutPct/100 on a win, −stake on a loss.
func (p *Position) PnL(won bool) decimal.Decimal {
	if !won {
		return p.Stake.Neg()
	}
	return p.Stake.Mul(p.PayoutPct).Div(decimal.NewFromInt(100)).RoundDown(4)
}

// ──────────────────────────────────────────────────────────────────────────────
// TradeRecord
// ──────────────────────────────────────────────────────────────────────────────

// TradeRecord is the immutable settlement snapshot appended when a position is
// resolved. History rows are never updated or deleted.
type TradeRecord struct {
	ID         uuid.UUID       `json:"id"          db:"id"`
	PositionID uuid.UUID       `json:"position_id" db:"position_id"`
	UserID     uuid.UUID       `json:"user_id"     db:"user_id"`
	Symbol     string          `json:"symbol"      db:"symbol"`
	Side       Side            `json:"side"        db:"side"`
	Account    AccountType     `json:"account"     db:"account"`
	Stake      decimal.Decimal `json:"stake"       db:"stake"`
	EntryPrice decimal.Decimal `json:"entry_price" db:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"  db:"exit_price"`
	PayoutPct  decimal.Decimal `json:"payout_pct"  db:"payout_pct"`
	PnL        decimal.Decimal `json:"pnl"         db:"pnl"`
	Result     PositionStatus  `json:"result"      db:"result"`
	OpenedAt   time.Time       `json:"opened_at"   db:"opened_at"`
	ClosedAt   time.Time       `json:"closed_at"   db:"closed_at"`
}
