package payments

import (
	"context"

	"github.com/angelmondragon/momopay/internal/gateway"
	"github.com/angelmondragon/momopay/internal/intent"
)

// Backend is the subset of the payment backend the session depends on.
// *gateway.Client satisfies it.
type Backend interface {
	Pay(ctx context.Context, payload intent.Payload) (gateway.PayResult, error)
	Status(ctx context.Context, key string) (gateway.StatusResult, error)
	PaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error)
	BackupConfirm(ctx context.Context, chargeID string) (gateway.BackupResult, error)
	Transactions(ctx context.Context) ([]gateway.PaymentDetails, error)
}

// RetryPolicy bounds how many times reconciliation resends an intent the
// backend does not know about.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy allows three resubmissions.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3}
}

// Exhausted reports whether a record with attemptCount resubmissions may not be resent again.
func (p RetryPolicy) Exhausted(attemptCount int) bool {
	return attemptCount >= p.MaxAttempts
}
