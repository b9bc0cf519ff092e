package domain_test

import (
	"testing"
	"time"

	"github.com/nexbit/tradecore/internal/domain"
	"github.com/shopspring/decimal"
)

// ── Outcome decision ──────────────────────────────────────────────────────────

func TestPosition_Won(t *testing.T) {
	entry := decimal.NewFromFloat(65000.50)

	cases := []struct {
		name string
		side domain.Side
		exit decimal.Decimal
		want bool
	}{
		{"buy wins on rise", domain.SideBuy, decimal.NewFromFloat(65000.51), true},
		{"buy loses on fall", domain.SideBuy, decimal.NewFromFloat(64999.99), false},
		{"buy loses on tie", domain.SideBuy, entry, false},
		{"sell wins on fall", domain.SideSell, decimal.NewFromFloat(64999.99), true},
		{"sell loses on rise", domain.SideSell, decimal.NewFromFloat(65000.51), false},
		{"sell loses on tie", domain.SideSell, entry, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &domain.Position{Side: tc.side, EntryPrice: entry}
			if got := p.Won(tc.exit); got != tc.want {
				t.Errorf("Won(%s) = %v, want %v", tc.exit, got, tc.want)
			}
		})
	}
}

// ── PnL math ──────────────────────────────────────────────────────────────────

// TestPosition_PnL validates the fixed-payout profit calculation.
//
//	Scenario: stake = 100 USD, payout = 82 %
//	  win:  pnl = 100 × 0.82 = 82      → credit = stake + pnl = 182
//	  loss: pnl = −100                 → credit = 0
func TestPosition_PnL(t *testing.T) {
	p := &domain.Position{
		Stake:     decimal.NewFromInt(100),
		PayoutPct: decimal.NewFromInt(82),
	}

	wantWin := decimal.NewFromInt(82)
	if got := p.PnL(true); !got.Equal(wantWin) {
		t.Errorf("PnL(won) = %s, want %s", got, wantWin)
	}

	wantLoss := decimal.NewFromInt(-100)
	if got := p.PnL(false); !got.Equal(wantLoss) {
		t.Errorf("PnL(lost) = %s, want %s", got, wantLoss)
	}

	// Win credit must equal stake + pnl.
	credit := p.Stake.Add(p.PnL(true))
	if !credit.Equal(decimal.NewFromInt(182)) {
		t.Errorf("win credit = %s, want 182", credit)
	}
}

func TestPosition_PnL_RoundsDown(t *testing.T) {
	// 33.33 × 0.82 = 27.3306 exactly; an awkward stake must not round up.
	p := &domain.Position{
		Stake:     decimal.NewFromFloat(33.337),
		PayoutPct: decimal.NewFromInt(82),
	}
	got := p.PnL(true)
	want := decimal.NewFromFloat(27.3363) // 27.33634 truncated at 4 dp
	if !got.Equal(want) {
		t.Errorf("PnL = %s, want %s", got, want)
	}
}

// ── Expiry ────────────────────────────────────────────────────────────────────

func TestPosition_IsExpired(t *testing.T) {
	now := time.Now().UTC()
	p := &domain.Position{ExpiresAt: now.Add(30 * time.Second)}
	if p.IsExpired(now) {
		t.Error("position should not be expired before its expiry")
	}
	if !p.IsExpired(now.Add(30 * time.Second)) {
		t.Error("position should be expired exactly at its expiry")
	}
	if !p.IsExpired(now.Add(time.Minute)) {
		t.Error("position should be expired after its expiry")
	}
}

// ── Side validity ─────────────────────────────────────────────────────────────

func TestSide_Valid(t *testing.T) {
	if !domain.SideBuy.Valid() {
		t.Error("BUY should be valid")
	}
	if !domain.SideSell.Valid() {
		t.Error("SELL should be valid")
	}
	if domain.Side("HOLD").Valid() {
		t.Error("HOLD should not be valid")
	}
}

// ── Durations ─────────────────────────────────────────────────────────────────

func TestDurationAllowed(t *testing.T) {
	for _, d := range []time.Duration{30 * time.Second, time.Minute, 5 * time.Minute} {
		if !domain.DurationAllowed(d) {
			t.Errorf("duration %v should be allowed", d)
		}
	}
	for _, d := range []time.Duration{0, 10 * time.Second, 2 * time.Minute, time.Hour} {
		if domain.DurationAllowed(d) {
			t.Errorf("duration %v should not be allowed", d)
		}
	}
}

// ── Wallet accounts ───────────────────────────────────────────────────────────

func TestWallet_Balance(t *testing.T) {
	w := &domain.Wallet{
		RealBalance: decimal.NewFromInt(250),
		DemoBalance: decimal.NewFromInt(10000),
	}
	if !w.Balance(domain.AccountReal).Equal(decimal.NewFromInt(250)) {
		t.Errorf("real balance = %s, want 250", w.Balance(domain.AccountReal))
	}
	if !w.Balance(domain.AccountDemo).Equal(decimal.NewFromInt(10000)) {
		t.Errorf("demo balance = %s, want 10000", w.Balance(domain.AccountDemo))
	}
}
