package payments

import (
	"context"

	"github.com/angelmondragon/momopay/internal/pending"
	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
	"github.com/angelmondragon/momopay/pkg/metrics"
)

// Outcome summarizes one reconciliation run.
type Outcome string

const (
	OutcomeNoop           Outcome = "noop"
	OutcomeSucceeded      Outcome = "succeeded"
	OutcomeResubmitted    Outcome = "resubmitted"
	OutcomeResubmitFailed Outcome = "resubmit_failed"
	OutcomeExpired        Outcome = "expired"
	OutcomeDeferred       Outcome = "deferred"
	OutcomeErrored        Outcome = "errored"
	OutcomeCorrupt        Outcome = "corrupt"
)

// Result describes what a reconciliation run found and did.
type Result struct {
	Outcome      Outcome            `json:"outcome"`
	Key          string             `json:"key,omitempty"`
	RemoteStatus enums.RemoteStatus `json:"remoteStatus,omitempty"`
	PaymentID    string             `json:"paymentId,omitempty"`
	AttemptCount int                `json:"attemptCount"`
}

// Reconciler resolves a pending record left behind by an earlier session.
type Reconciler struct {
	machine   *Machine
	store     pending.Store
	backend   Backend
	submitter *Submitter
	policy    RetryPolicy
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
}

// Run queries the backend for the stored key and acts on the answer. The
// returned error is set for the errored and resubmit_failed outcomes.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	result, err := r.run(ctx)
	r.metrics.IncReconciliation(string(result.Outcome))
	return result, err
}

func (r *Reconciler) run(ctx context.Context) (Result, error) {
	record, err := r.store.Read(ctx)
	if pkgerrors.Is(err, pkgerrors.CodeCorruptRecord) {
		return r.discardCorrupt(ctx, err)
	}
	if err != nil {
		return Result{Outcome: OutcomeErrored}, err
	}
	if record == nil {
		return Result{Outcome: OutcomeNoop}, nil
	}

	ctx = r.logg.WithIdempotencyKey(ctx, record.Key)
	result := Result{Key: record.Key, AttemptCount: record.AttemptCount}
	if _, err := r.machine.Dispatch(Event{Type: EventReconcileBegin, Key: record.Key}); err != nil {
		result.Outcome = OutcomeErrored
		return result, err
	}

	status, err := r.backend.Status(ctx, record.Key)
	if err != nil {
		// No answer is not an answer: keep the record and the counter as they are.
		r.deferRun(ctx, err)
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "status check failed; pending record kept")
		result.Outcome = OutcomeErrored
		return result, err
	}
	result.RemoteStatus = status.Status

	switch status.Status {
	case enums.RemoteStatusSuccess:
		result.PaymentID = status.PaymentID
		if err := r.store.Clear(ctx); err != nil {
			r.logg.Error(ctx, "clearing settled pending record", err)
		}
		if _, err := r.machine.Dispatch(Event{Type: EventReconcileSucceeded, PaymentID: status.PaymentID}); err != nil {
			result.Outcome = OutcomeErrored
			return result, err
		}
		r.logg.Info(r.logg.WithPaymentID(ctx, status.PaymentID), "pending intent already settled")
		result.Outcome = OutcomeSucceeded
		return result, nil

	case enums.RemoteStatusNotFound:
		return r.retryOrExpire(ctx, *record, result)

	default:
		r.deferRun(ctx, nil)
		r.logg.Info(r.logg.WithField(ctx, "remote_status", status.Status), "pending intent still processing")
		result.Outcome = OutcomeDeferred
		return result, nil
	}
}

func (r *Reconciler) retryOrExpire(ctx context.Context, record pending.Record, result Result) (Result, error) {
	if r.policy.Exhausted(record.AttemptCount) {
		if err := r.store.Clear(ctx); err != nil {
			r.deferRun(ctx, err)
			result.Outcome = OutcomeErrored
			return result, err
		}
		expired := pkgerrors.New(pkgerrors.CodeRetriesExhausted, "Transaction could not be completed. Please try again.").
			WithDetails(map[string]any{"attempts": record.AttemptCount})
		if _, err := r.machine.Dispatch(Event{Type: EventReconcileExpired, Err: expired}); err != nil {
			result.Outcome = OutcomeErrored
			return result, err
		}
		r.logg.Warn(ctx, "pending intent expired after bounded retries")
		result.Outcome = OutcomeExpired
		return result, nil
	}

	next := record.WithAttempt()
	// The counter is durable before the resend so a crash cannot grant an extra attempt.
	if err := r.store.Write(ctx, next); err != nil {
		r.deferRun(ctx, err)
		result.Outcome = OutcomeErrored
		return result, err
	}
	result.AttemptCount = next.AttemptCount

	if _, err := r.machine.Dispatch(Event{Type: EventSubmitRequest, Key: next.Key, Resubmission: true}); err != nil {
		result.Outcome = OutcomeErrored
		return result, err
	}
	r.logg.Info(r.logg.WithField(ctx, "attempt", next.AttemptCount), "resubmitting unknown intent")
	if err := r.submitter.send(ctx, next, true); err != nil {
		result.Outcome = OutcomeResubmitFailed
		return result, err
	}
	result.PaymentID = r.machine.Snapshot().PaymentID
	result.Outcome = OutcomeResubmitted
	return result, nil
}

func (r *Reconciler) discardCorrupt(ctx context.Context, cause error) (Result, error) {
	r.logg.Warn(r.logg.WithField(ctx, "error", cause.Error()), "discarding unreadable pending record")
	if _, err := r.machine.Dispatch(Event{Type: EventReconcileBegin}); err != nil {
		return Result{Outcome: OutcomeErrored}, err
	}
	if err := r.store.Clear(ctx); err != nil {
		r.deferRun(ctx, err)
		return Result{Outcome: OutcomeErrored}, err
	}
	if _, err := r.machine.Dispatch(Event{Type: EventReconcileFailed, Err: cause}); err != nil {
		return Result{Outcome: OutcomeErrored}, err
	}
	return Result{Outcome: OutcomeCorrupt}, nil
}

func (r *Reconciler) deferRun(ctx context.Context, cause error) {
	if _, err := r.machine.Dispatch(Event{Type: EventReconcileDeferred, Err: cause}); err != nil {
		r.logg.Error(ctx, "recording reconcile deferral", err)
	}
}
