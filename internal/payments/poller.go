package payments

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
	"github.com/angelmondragon/momopay/pkg/metrics"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 30 * time.Second
)

// Poller confirms settlement of an accepted charge.
type Poller struct {
	machine  *Machine
	backend  Backend
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
	interval time.Duration
	timeout  time.Duration
}

// PollTask is one running confirmation. It owns both the poll interval and
// the absolute deadline.
type PollTask struct {
	poller    *Poller
	paymentID string
	cancel    context.CancelFunc
	done      chan struct{}

	chargeID   string
	backupOnce sync.Once
	terminal   atomic.Bool
}

// Start launches a task for paymentID. The task stops when ctx is cancelled.
func (p *Poller) Start(ctx context.Context, paymentID string) *PollTask {
	ctx, cancel := context.WithCancel(ctx)
	task := &PollTask{
		poller:    p,
		paymentID: paymentID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go task.run(p.logg.WithPaymentID(ctx, paymentID))
	return task
}

// Cancel stops polling and the deadline, then waits for the task to exit.
// Safe to call more than once.
func (t *PollTask) Cancel() {
	t.cancel()
	<-t.done
}

// Done is closed once the task has exited.
func (t *PollTask) Done() <-chan struct{} {
	return t.done
}

// PaymentID returns the payment the task confirms.
func (t *PollTask) PaymentID() string {
	return t.paymentID
}

func (t *PollTask) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	ticker := time.NewTicker(t.poller.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(t.poller.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			t.backup(ctx)
			return
		case <-ticker.C:
			// The deadline wins a tie with the ticker.
			select {
			case <-deadline.C:
				t.backup(ctx)
				return
			default:
			}
			if t.poll(ctx) {
				return
			}
		}
	}
}

// poll reports whether the task reached a terminal result.
func (t *PollTask) poll(ctx context.Context) bool {
	details, err := t.poller.backend.PaymentDetails(ctx, t.paymentID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		t.poller.metrics.IncConfirmation("poll", "error")
		t.poller.logg.Warn(t.poller.logg.WithField(ctx, "error", err.Error()), "payment status poll failed")
		return false
	}
	if details.ChargeID != "" {
		t.chargeID = details.ChargeID
	}
	if !details.Status.IsSettled() {
		t.poller.metrics.IncConfirmation("poll", "pending")
		t.poller.logg.Debug(t.poller.logg.WithField(ctx, "status", details.Status), "payment not settled yet")
		return false
	}

	t.poller.metrics.IncConfirmation("poll", "settled")
	t.finish(ctx, Event{Type: EventSettlementConfirmed, ChargeID: t.chargeID})
	return true
}

// backup runs the one-shot verification once the deadline has passed.
func (t *PollTask) backup(ctx context.Context) {
	t.backupOnce.Do(func() {
		if t.terminal.Load() {
			return
		}
		if t.chargeID == "" {
			t.poller.metrics.IncConfirmation("backup", "no_charge")
			t.finish(ctx, Event{
				Type: EventBackupRejected,
				Err: pkgerrors.New(pkgerrors.CodeConfirmationTimeout,
					"Payment confirmation timed out; manual follow-up required").
					WithDetails(map[string]any{"paymentId": t.paymentID}),
			})
			return
		}

		ctx = t.poller.logg.WithField(ctx, "charge_id", t.chargeID)
		result, err := t.poller.backend.BackupConfirm(ctx, t.chargeID)
		if err != nil || !result.Settled() {
			t.poller.metrics.IncConfirmation("backup", "rejected")
			cause := err
			if cause == nil {
				cause = pkgerrors.New(pkgerrors.CodeServer, "backup confirmation did not report settlement").
					WithDetails(map[string]any{"verifiedStatus": result.VerifiedStatus})
			}
			t.finish(ctx, Event{
				Type:     EventBackupRejected,
				ChargeID: t.chargeID,
				Err: pkgerrors.Wrap(pkgerrors.CodeBackupVerificationFailed, cause,
					"Payment could not be verified; manual verification may be needed"),
			})
			return
		}

		t.poller.metrics.IncConfirmation("backup", "confirmed")
		t.finish(ctx, Event{Type: EventBackupConfirmed, ChargeID: t.chargeID})
	})
}

func (t *PollTask) finish(ctx context.Context, ev Event) {
	if !t.terminal.CompareAndSwap(false, true) {
		return
	}
	if _, err := t.poller.machine.Dispatch(ev); err != nil {
		t.poller.logg.Warn(t.poller.logg.WithField(ctx, "error", err.Error()), "confirmation result no longer applies")
		return
	}
	t.poller.logg.Info(t.poller.logg.WithField(ctx, "event", ev.Type), "payment confirmation finished")
}
