package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "storage timeout", err: ErrTimeout, want: true},
		{name: "wrapped storage timeout", err: fmt.Errorf("update payment: %w", ErrTimeout), want: true},
		{name: "context deadline", err: context.DeadlineExceeded, want: true},
		{name: "transaction failure", err: ErrTransactionFailure, want: false},
		{name: "not found", err: ErrOrderNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "idempotency already exists",
			err:  ErrIdempotencyKeyAlreadyExists,
			want: true,
		},
		{
			name: "idempotency hash mismatch",
			err:  ErrIdempotencyHashMismatch,
			want: true,
		},
		{
			name: "wrapped idempotency conflict",
			err:  errors.Join(ErrIdempotencyHashMismatch, errors.New("additional context")),
			want: true,
		},
		{
			name: "other error",
			err:  ErrIdempotencyKeyNotFound,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIdempotencyConflict(tt.err); got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "none"},
		{err: &PaymentError{Field: "montant_paye", Value: decimal.NewFromInt(-1), Ceiling: decimal.NewFromInt(10)}, want: "invalid_payment"},
		{err: NewValidationError("client_nom", "is required"), want: "validation"},
		{err: &PartyNotFoundError{Kind: PartyClient, Name: "Alice"}, want: "party_not_found"},
		{err: ErrOrderNotFound, want: "not_found"},
		{err: fmt.Errorf("%w: x", ErrInvalidTransition), want: "invalid_transition"},
		{err: ErrPaymentFrozen, want: "payment_frozen"},
		{err: ErrTimeout, want: "timeout"},
		{err: ErrTransactionFailure, want: "transaction"},
		{err: errors.New("boom"), want: "internal"},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPaymentErrorMessage(t *testing.T) {
	err := &PaymentError{Field: "montant_paye", Value: decimal.RequireFromString("150"), Ceiling: decimal.RequireFromString("100")}
	want := "montant_paye: amount paid (150) must be between 0 and the order price (100)"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidPayment) {
		t.Fatal("payment error must unwrap to ErrInvalidPayment")
	}

	raw := &PaymentError{Field: "new_montant_paye", Raw: "abc"}
	if raw.Error() != `new_montant_paye: "abc" is not a number` {
		t.Fatalf("unexpected message %q", raw.Error())
	}
}

func TestPartyNotFoundErrorUnwrap(t *testing.T) {
	err := &PartyNotFoundError{Kind: PartySupplier, Name: "Acme"}
	if !errors.Is(err, ErrPartyNotFound) || !errors.Is(err, ErrNotFound) {
		t.Fatal("party error must unwrap to ErrPartyNotFound and ErrNotFound")
	}
	if errors.Is(err, ErrOrderNotFound) {
		t.Fatal("party error must not match ErrOrderNotFound")
	}
	if err.Error() != `supplier "Acme" not found` {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
