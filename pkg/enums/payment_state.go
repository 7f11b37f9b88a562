package enums

import "fmt"

// PaymentState is the client-side lifecycle of one payment intent.
type PaymentState string

const (
	PaymentStateIdle                PaymentState = "idle"
	PaymentStateCreatedLocal        PaymentState = "created_local"
	PaymentStateSubmitting          PaymentState = "submitting"
	PaymentStateProcessing          PaymentState = "processing"
	PaymentStateReconcileProcessing PaymentState = "reconcile_processing"
	PaymentStateSuccess             PaymentState = "success"
	PaymentStateFailed              PaymentState = "failed"
	PaymentStateExpired             PaymentState = "expired"
)

var validPaymentStates = []PaymentState{
	PaymentStateIdle,
	PaymentStateCreatedLocal,
	PaymentStateSubmitting,
	PaymentStateProcessing,
	PaymentStateReconcileProcessing,
	PaymentStateSuccess,
	PaymentStateFailed,
	PaymentStateExpired,
}

// String implements fmt.Stringer.
func (s PaymentState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentState.
func (s PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsBusy reports whether a network operation for the intent is in flight.
func (s PaymentState) IsBusy() bool {
	switch s {
	case PaymentStateSubmitting, PaymentStateProcessing, PaymentStateReconcileProcessing:
		return true
	}
	return false
}

// IsTerminal reports whether the intent has reached a final outcome.
func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateSuccess || s == PaymentStateExpired
}

// ParsePaymentState converts raw input into a PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}
