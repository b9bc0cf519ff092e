package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the platform configuration row edited from the back-office and
// consumed by services as a periodically refreshed snapshot. There is exactly
// one row; services never read it mid-operation, they capture a snapshot first.
type Settings struct {
	ID                 int             `json:"id"                    db:"id"`
	PayoutPct          decimal.Decimal `json:"payout_pct"            db:"payout_pct"`
	DemoBalanceDefault decimal.Decimal `json:"demo_balance_default"  db:"demo_balance_default"`
	WithdrawMinUsd     decimal.Decimal `json:"withdraw_min_usd"      db:"withdraw_min_usd"`
	WithdrawFeePct     decimal.Decimal `json:"withdraw_fee_pct"      db:"withdraw_fee_pct"`
	WithdrawFlatFeeUsd decimal.Decimal `json:"withdraw_flat_fee_usd" db:"withdraw_flat_fee_usd"`
	WithdrawDailyMax   decimal.Decimal `json:"withdraw_daily_max"    db:"withdraw_daily_max"` // gross USD per user per day
	UpdatedAt          time.Time       `json:"updated_at"            db:"updated_at"`
}

// AllowedDurations are the position expiry durations users may choose.
var AllowedDurations = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
}

// DurationAllowed returns true when d is one of the permitted expiries.
func DurationAllowed(d time.Duration) bool {
	for _, allowed := range AllowedDurations {
		if d == allowed {
			return true
		}
	}
	return false
}

// DefaultSettings returns the platform defaults used to seed the settings row.
func DefaultSettings() Settings {
	return Settings{
		ID:                 1,
		PayoutPct:          decimal.NewFromInt(82),
		DemoBalanceDefault: decimal.NewFromInt(10000),
		WithdrawMinUsd:     decimal.NewFromInt(20),
		WithdrawFeePct:     decimal.NewFromFloat(2.5),
		WithdrawFlatFeeUsd: decimal.NewFromInt(3),
		WithdrawDailyMax:   decimal.NewFromInt(10000),
	}
}

// WithdrawFee computes the fee for a gross withdrawal amount:
// amount × feePct/100 + flat fee, rounded down to cents.
func (s Settings) WithdrawFee(amount decimal.Decimal) decimal.Decimal {
	pctFee := amount.Mul(s.WithdrawFeePct).Div(decimal.NewFromInt(100))
	return pctFee.Add(s.WithdrawFlatFeeUsd).RoundDown(2)
}
