package payments_test

import (
	"strings"
	"testing"

	"github.com/nexbit/tradecore/internal/payments"
)

func TestSignIPN(t *testing.T) {
	body := []byte(`{"invoice_id":123,"payment_status":"finished"}`)

	sig := payments.SignIPN(body, "super-secret")
	if len(sig) != 128 {
		t.Errorf("signature length = %d, want 128 hex chars (SHA-512)", len(sig))
	}
	if sig != strings.ToLower(sig) {
		t.Error("signature must be lowercase hex")
	}
	if sig != payments.SignIPN(body, "super-secret") {
		t.Error("signing the same body twice must give the same signature")
	}
	if sig == payments.SignIPN(body, "other-secret") {
		t.Error("different secrets must give different signatures")
	}
}

func TestVerifyIPN(t *testing.T) {
	body := []byte(`{"invoice_id":123,"payment_status":"finished","pay_amount":"0.0015"}`)
	secret := "super-secret"
	sig := payments.SignIPN(body, secret)

	if !payments.VerifyIPN(body, sig, secret) {
		t.Error("valid signature rejected")
	}
	if payments.VerifyIPN(body, sig, "wrong-secret") {
		t.Error("signature verified with the wrong secret")
	}
	if payments.VerifyIPN(body, "deadbeef", secret) {
		t.Error("garbage signature accepted")
	}

	// Any change to the raw body must invalidate the signature.
	tampered := []byte(`{"invoice_id":123,"payment_status":"finished","pay_amount":"9.9999"}`)
	if payments.VerifyIPN(tampered, sig, secret) {
		t.Error("tampered body passed verification")
	}
}
