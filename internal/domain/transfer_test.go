package domain_test

import (
	"testing"
	"time"

	"github.com/nexbit/tradecore/internal/domain"
	"github.com/shopspring/decimal"
)

// ── One-time code hashing ─────────────────────────────────────────────────────

func TestHashCode_Deterministic(t *testing.T) {
	a := domain.HashCode("483920")
	b := domain.HashCode("483920")
	if a != b {
		t.Errorf("same code hashed differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
	if a == "483920" {
		t.Error("hash must not be the plaintext code")
	}
	if domain.HashCode("483921") == a {
		t.Error("different codes must hash differently")
	}
}

func TestOneTimeCode_Matches(t *testing.T) {
	c := &domain.OneTimeCode{CodeHash: domain.HashCode("120045")}
	if !c.Matches("120045") {
		t.Error("correct code should match")
	}
	if c.Matches("120046") {
		t.Error("wrong code should not match")
	}
	// Leading zeros are significant: "045120" != "45120".
	c2 := &domain.OneTimeCode{CodeHash: domain.HashCode("045120")}
	if c2.Matches("45120") {
		t.Error("code with stripped leading zero should not match")
	}
}

func TestOneTimeCode_IsExpired(t *testing.T) {
	now := time.Now().UTC()
	c := &domain.OneTimeCode{ExpiresAt: now.Add(domain.CodeTTL)}
	if c.IsExpired(now) {
		t.Error("fresh code should not be expired")
	}
	if !c.IsExpired(now.Add(domain.CodeTTL + time.Second)) {
		t.Error("code past its TTL should be expired")
	}
}

func TestSubjectKeyFor(t *testing.T) {
	if got := domain.SubjectKeyFor("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("SubjectKeyFor = %q, want %q", got, "alice@example.com")
	}
}

// ── Withdraw fee math ─────────────────────────────────────────────────────────

// TestSettings_WithdrawFee validates fee = amount × 2.5% + $3 flat.
//
//	amount 100 → 2.50 + 3 = 5.50, net 94.50
//	amount  20 → 0.50 + 3 = 3.50, net 16.50
func TestSettings_WithdrawFee(t *testing.T) {
	s := domain.DefaultSettings()

	fee := s.WithdrawFee(decimal.NewFromInt(100))
	if !fee.Equal(decimal.NewFromFloat(5.5)) {
		t.Errorf("fee(100) = %s, want 5.5", fee)
	}

	fee = s.WithdrawFee(decimal.NewFromInt(20))
	if !fee.Equal(decimal.NewFromFloat(3.5)) {
		t.Errorf("fee(20) = %s, want 3.5", fee)
	}

	req := &domain.WithdrawRequest{
		Amount: decimal.NewFromInt(100),
		Fee:    s.WithdrawFee(decimal.NewFromInt(100)),
	}
	if !req.NetAmount().Equal(decimal.NewFromFloat(94.5)) {
		t.Errorf("net = %s, want 94.5", req.NetAmount())
	}
}

func TestDefaultSettings(t *testing.T) {
	s := domain.DefaultSettings()
	if !s.PayoutPct.Equal(decimal.NewFromInt(82)) {
		t.Errorf("payout pct = %s, want 82", s.PayoutPct)
	}
	if !s.DemoBalanceDefault.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("demo default = %s, want 10000", s.DemoBalanceDefault)
	}
	if !s.WithdrawMinUsd.Equal(decimal.NewFromInt(20)) {
		t.Errorf("withdraw min = %s, want 20", s.WithdrawMinUsd)
	}
}
