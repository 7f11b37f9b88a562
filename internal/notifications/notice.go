package notifications

import (
	"time"

	"github.com/angelmondragon/momopay/internal/payments"
	"github.com/angelmondragon/momopay/pkg/enums"
)

// Severity classifies how a notice is presented to the payer.
type Severity string

const (
	SeverityInfo       Severity = "info"
	SeverityProcessing Severity = "processing"
	SeveritySuccess    Severity = "success"
	SeverityError      Severity = "error"
)

const (
	defaultDuration = 4 * time.Second
	errorDuration   = 6 * time.Second
)

const (
	msgRetrying   = "Retrying your transaction. Approve the charge on your phone!"
	msgDeferred   = "Your transaction is still being processed. Please check back later."
	msgChecking   = "Checking transaction status..."
	msgSubmitting = "Submitting payment request..."
	msgSucceeded  = "Payment successful! Redirecting..."
	msgFailed     = "Payment failed. Please try again."
	msgExpired    = "Transaction could not be completed. Please try again."
)

// Notice is a payer-facing message derived from a transition.
type Notice struct {
	Severity  Severity           `json:"severity"`
	Message   string             `json:"message"`
	Duration  time.Duration      `json:"duration"`
	State     enums.PaymentState `json:"state"`
	PaymentID string             `json:"paymentId,omitempty"`
	At        time.Time          `json:"at"`
}

// ForTransition returns the notice for tr. ok is false when the transition
// has nothing to tell the payer.
func ForTransition(tr payments.Transition) (Notice, bool) {
	notice := Notice{
		Duration:  defaultDuration,
		State:     tr.To,
		PaymentID: tr.Snapshot.PaymentID,
		At:        tr.At,
	}

	switch {
	case tr.Event.Type == payments.EventSubmitSucceeded && tr.Event.Resubmission:
		notice.Severity, notice.Message = SeverityInfo, msgRetrying
		return notice, true
	case tr.Event.Type == payments.EventReconcileDeferred:
		if tr.Event.Err != nil {
			// Transport trouble during a deferral is for the logs only.
			return Notice{}, false
		}
		notice.Severity, notice.Message = SeverityInfo, msgDeferred
		return notice, true
	case tr.From == tr.To:
		return Notice{}, false
	}

	switch tr.To {
	case enums.PaymentStateReconcileProcessing, enums.PaymentStateProcessing:
		notice.Severity, notice.Message = SeverityProcessing, msgChecking
	case enums.PaymentStateSubmitting:
		notice.Severity, notice.Message = SeverityInfo, msgSubmitting
	case enums.PaymentStateSuccess:
		notice.Severity, notice.Message = SeveritySuccess, msgSucceeded
	case enums.PaymentStateFailed:
		notice.Severity, notice.Message = SeverityError, msgFailed
		notice.Duration = errorDuration
		if tr.Snapshot.Error != "" {
			notice.Message = tr.Snapshot.Error
		}
	case enums.PaymentStateExpired:
		notice.Severity, notice.Message = SeverityError, msgExpired
	default:
		return Notice{}, false
	}
	return notice, true
}
