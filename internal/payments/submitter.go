package payments

import (
	"context"
	"time"

	"github.com/angelmondragon/momopay/internal/intent"
	"github.com/angelmondragon/momopay/internal/pending"
	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
	"github.com/angelmondragon/momopay/pkg/metrics"
)

// Submitter turns payer input into exactly one logical charge request.
type Submitter struct {
	machine    *Machine
	store      pending.Store
	backend    Backend
	logg       *logger.Logger
	metrics    *metrics.PaymentMetrics
	now        func() time.Time
	onAccepted func(paymentID string)
}

// Submit validates in, persists the intent and sends it. An unresolved
// record is reused as-is, so a retry after a failure carries the same key and
// payload regardless of in.
func (s *Submitter) Submit(ctx context.Context, in intent.Input) (Snapshot, error) {
	if err := in.Validate(); err != nil {
		return s.machine.Snapshot(), err
	}

	current := s.machine.Snapshot()
	switch current.State {
	case enums.PaymentStateIdle, enums.PaymentStateCreatedLocal:
	case enums.PaymentStateFailed:
		// A terminal failure may have charged the payer; only a reset starts another intent.
		if pkgerrors.MetadataFor(current.ErrorCode).Terminal {
			return current, pkgerrors.New(pkgerrors.CodeStateConflict, "the last payment needs manual follow-up; reset before submitting again").
				WithDetails(map[string]any{"state": current.State, "errorCode": current.ErrorCode})
		}
	default:
		return current, pkgerrors.New(pkgerrors.CodeStateConflict, "a payment is already in progress or awaiting reset").
			WithDetails(map[string]any{"state": current.State})
	}

	record, err := s.store.Read(ctx)
	if pkgerrors.Is(err, pkgerrors.CodeCorruptRecord) {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "discarding unreadable pending record before submit")
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			return current, clearErr
		}
		record, err = nil, nil
	}
	if err != nil {
		return current, err
	}

	if record == nil {
		payload, err := intent.Build(in, intent.NewKey())
		if err != nil {
			return current, err
		}
		fresh := pending.NewRecord(payload, s.now())
		if err := s.store.Write(ctx, fresh); err != nil {
			return current, err
		}
		record = &fresh
	} else {
		s.logg.Info(s.logg.WithIdempotencyKey(ctx, record.Key), "reusing pending intent")
	}

	if current.State == enums.PaymentStateIdle {
		if _, err := s.machine.Dispatch(Event{Type: EventUserSubmit}); err != nil {
			return s.machine.Snapshot(), err
		}
	}
	if _, err := s.machine.Dispatch(Event{Type: EventSubmitRequest, Key: record.Key}); err != nil {
		return s.machine.Snapshot(), err
	}

	err = s.send(ctx, *record, false)
	return s.machine.Snapshot(), err
}

// send posts the record's payload and interprets the answer. On acceptance the
// record is cleared and confirmation polling starts; on any failure the record
// is kept for reconciliation.
func (s *Submitter) send(ctx context.Context, record pending.Record, resubmission bool) error {
	ctx = s.logg.WithIdempotencyKey(ctx, record.Key)

	result, err := s.backend.Pay(ctx, record.Payload)
	if err != nil {
		s.metrics.IncSubmission("failed")
		if _, dispatchErr := s.machine.Dispatch(Event{Type: EventSubmitFailed, Err: err, Resubmission: resubmission}); dispatchErr != nil {
			s.logg.Error(ctx, "recording submit failure", dispatchErr)
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "charge request failed; pending record kept")
		return err
	}

	s.metrics.IncSubmission("accepted")
	ctx = s.logg.WithPaymentID(ctx, result.PaymentID)
	if _, err := s.machine.Dispatch(Event{Type: EventSubmitSucceeded, PaymentID: result.PaymentID, Resubmission: resubmission}); err != nil {
		s.logg.Error(ctx, "recording submit success", err)
		return err
	}
	if err := s.store.Clear(ctx); err != nil {
		// A leftover record resolves to SUCCESS on the next reconciliation.
		s.logg.Error(ctx, "clearing pending record after acceptance", err)
	}
	s.logg.Info(ctx, "charge request accepted")
	if s.onAccepted != nil {
		s.onAccepted(result.PaymentID)
	}
	return nil
}
