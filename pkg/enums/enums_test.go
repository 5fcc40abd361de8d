package enums

import "testing"

func TestParseCurrency(t *testing.T) {
	cur, err := ParseCurrency("BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cur != CurrencyBTC {
		t.Fatalf("expected BTC, got %s", cur)
	}
	if _, err := ParseCurrency("DOGE"); err == nil {
		t.Fatal("expected error for unsupported currency")
	}
	if CurrencyUSDT.IsValid() != true {
		t.Fatal("USDT should be valid")
	}
}

func TestPaymentStatusTerminality(t *testing.T) {
	if PaymentStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, status := range []PaymentStatus{PaymentStatusPaid, PaymentStatusExpired, PaymentStatusCancelled, PaymentStatusFailed} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
	if PaymentStatus("bogus").IsTerminal() {
		t.Fatal("unknown status must not report terminal")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	status, err := ParsePaymentStatus("paid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", status)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParseAuditKind(t *testing.T) {
	kind, err := ParseAuditKind("notification_sent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != AuditKindNotificationSent {
		t.Fatalf("expected notification_sent, got %s", kind)
	}
	if _, err := ParseAuditKind("unknown"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
