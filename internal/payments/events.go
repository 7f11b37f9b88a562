package payments

import (
	"time"

	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
)

// EventType names an input to the payment state machine.
type EventType string

const (
	EventUserSubmit          EventType = "user_submit"
	EventSubmitRequest       EventType = "submit_request"
	EventSubmitSucceeded     EventType = "submit_succeeded"
	EventSubmitFailed        EventType = "submit_failed"
	EventSettlementConfirmed EventType = "settlement_confirmed"
	EventBackupConfirmed     EventType = "backup_confirmed"
	EventBackupRejected      EventType = "backup_rejected"
	EventReconcileBegin      EventType = "reconcile_begin"
	EventReconcileSucceeded  EventType = "reconcile_succeeded"
	EventReconcileExpired    EventType = "reconcile_expired"
	EventReconcileDeferred   EventType = "reconcile_deferred"
	EventReconcileFailed     EventType = "reconcile_failed"
	EventReset               EventType = "reset"
)

// Event is dispatched to the Machine. Optional fields are applied by the
// events that carry them.
type Event struct {
	Type      EventType
	Key       string
	PaymentID string
	ChargeID  string
	Err       error
	// Resubmission marks a submit outcome produced by reconciliation.
	Resubmission bool
}

// Snapshot is the observable state of the current intent.
type Snapshot struct {
	State     enums.PaymentState `json:"state"`
	Key       string             `json:"idempotencyKey,omitempty"`
	PaymentID string             `json:"paymentId,omitempty"`
	ChargeID  string             `json:"chargeId,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorCode pkgerrors.Code     `json:"errorCode,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Transition is delivered to listeners after every accepted dispatch.
type Transition struct {
	From     enums.PaymentState
	To       enums.PaymentState
	Event    Event
	Snapshot Snapshot
	At       time.Time
}

// Listener observes transitions. Listeners run on the dispatching goroutine
// and must not dispatch.
type Listener func(Transition)
