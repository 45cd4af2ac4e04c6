package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name          string
		price         string
		paid          string
		wantStatus    Status
		wantRemaining string
	}{
		{name: "nothing paid", price: "1000", paid: "0", wantStatus: StatusPending, wantRemaining: "1000"},
		{name: "partial payment", price: "1000", paid: "300", wantStatus: StatusPartiallyPaid, wantRemaining: "700"},
		{name: "paid in full", price: "1000", paid: "1000", wantStatus: StatusSold, wantRemaining: "0"},
		{name: "cents are exact", price: "0.30", paid: "0.10", wantStatus: StatusPartiallyPaid, wantRemaining: "0.20"},
		{name: "one cent short", price: "999.99", paid: "999.98", wantStatus: StatusPartiallyPaid, wantRemaining: "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Derive(dec(tt.price), dec(tt.paid))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", rec.Status, tt.wantStatus)
			}
			if !rec.Remaining.Equal(dec(tt.wantRemaining)) {
				t.Fatalf("remaining = %s, want %s", rec.Remaining, tt.wantRemaining)
			}
			if !rec.Remaining.Add(dec(tt.paid)).Equal(dec(tt.price)) {
				t.Fatal("paid + remaining must equal price")
			}
		})
	}
}

func TestDeriveRejectsInvalidAmounts(t *testing.T) {
	tests := []struct {
		name      string
		price     string
		paid      string
		wantField string
	}{
		{name: "negative payment", price: "1000", paid: "-1", wantField: "montant_paye"},
		{name: "overpayment", price: "1000", paid: "1500", wantField: "montant_paye"},
		{name: "zero price", price: "0", paid: "0", wantField: "prix_vente_client"},
		{name: "negative price", price: "-10", paid: "0", wantField: "prix_vente_client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Derive(dec(tt.price), dec(tt.paid))
			if !errors.Is(err, ErrInvalidPayment) {
				t.Fatalf("expected ErrInvalidPayment, got %v", err)
			}
			var pe *PaymentError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *PaymentError, got %T", err)
			}
			if pe.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", pe.Field, tt.wantField)
			}
		})
	}
}

func TestDeriveOverpaymentReportsValueAndCeiling(t *testing.T) {
	_, err := Derive(dec("1000"), dec("1500"))
	var pe *PaymentError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PaymentError, got %v", err)
	}
	if !pe.Value.Equal(dec("1500")) || !pe.Ceiling.Equal(dec("1000")) {
		t.Fatalf("unexpected value/ceiling: %s/%s", pe.Value, pe.Ceiling)
	}
}
