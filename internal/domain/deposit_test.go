package domain_test

import (
	"testing"

	"github.com/nexbit/tradecore/internal/domain"
	"github.com/shopspring/decimal"
)

func TestIntentStatus_ShouldCredit(t *testing.T) {
	cases := []struct {
		status domain.IntentStatus
		want   bool
	}{
		{domain.IntentFinished, true},
		{domain.IntentConfirmed, true},
		{domain.IntentWaiting, false},
		{domain.IntentConfirming, false},
		{domain.IntentSending, false},
		{domain.IntentPartiallyPaid, false},
		{domain.IntentFailed, false},
		{domain.IntentRefunded, false},
		{domain.IntentExpired, false},
		{domain.IntentCredited, false},
	}
	for _, tc := range cases {
		if got := tc.status.ShouldCredit(); got != tc.want {
			t.Errorf("%s.ShouldCredit() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestIntentStatus_AlreadyCredited(t *testing.T) {
	if !domain.IntentCredited.AlreadyCredited() {
		t.Error("credited intent must report AlreadyCredited")
	}
	if domain.IntentFinished.AlreadyCredited() {
		t.Error("finished-but-uncredited intent must not report AlreadyCredited")
	}
}

func TestWithdrawRequest_NetAmount(t *testing.T) {
	req := domain.WithdrawRequest{
		Amount: decimal.NewFromInt(100),
		Fee:    decimal.RequireFromString("5.5"),
	}
	if got := req.NetAmount(); !got.Equal(decimal.RequireFromString("94.5")) {
		t.Errorf("NetAmount = %s, want 94.5", got)
	}
}
