package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/momopay/internal/gateway"
	"github.com/angelmondragon/momopay/internal/intent"
	"github.com/angelmondragon/momopay/internal/pending"
	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
	"github.com/angelmondragon/momopay/pkg/metrics"
)

// ServiceParams wires a Service. Store, Backend and Logger are required.
type ServiceParams struct {
	Store        pending.Store
	Backend      Backend
	Logger       *logger.Logger
	Metrics      *metrics.PaymentMetrics
	Retry        RetryPolicy
	PollInterval time.Duration
	PollTimeout  time.Duration
	Clock        func() time.Time
}

// Service is one payment session: it owns the state machine, serializes
// submission and reconciliation, and runs the confirmation poller.
type Service struct {
	machine    *Machine
	store      pending.Store
	backend    Backend
	logg       *logger.Logger
	submitter  *Submitter
	reconciler *Reconciler
	poller     *Poller

	flight sync.Mutex

	mu      sync.Mutex
	started bool
	closed  bool
	task    *PollTask
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Store == nil {
		return nil, errors.New("pending store is required")
	}
	if p.Backend == nil {
		return nil, errors.New("payment backend is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if p.Retry.MaxAttempts <= 0 {
		p.Retry = DefaultRetryPolicy()
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.PollTimeout <= 0 {
		p.PollTimeout = DefaultPollTimeout
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	machine := NewMachine(p.Clock)
	s := &Service{
		machine: machine,
		store:   p.Store,
		backend: p.Backend,
		logg:    p.Logger,
		poller: &Poller{
			machine:  machine,
			backend:  p.Backend,
			logg:     p.Logger,
			metrics:  p.Metrics,
			interval: p.PollInterval,
			timeout:  p.PollTimeout,
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.submitter = &Submitter{
		machine:    machine,
		store:      p.Store,
		backend:    p.Backend,
		logg:       p.Logger,
		metrics:    p.Metrics,
		now:        p.Clock,
		onAccepted: s.startPoller,
	}
	s.reconciler = &Reconciler{
		machine:   machine,
		store:     p.Store,
		backend:   p.Backend,
		submitter: s.submitter,
		policy:    p.Retry,
		logg:      p.Logger,
		metrics:   p.Metrics,
	}
	return s, nil
}

// Start runs the startup reconciliation. Submissions are refused until Start
// has been called; a reconciliation error does not prevent later submissions.
func (s *Service) Start(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, errClosed()
	}
	if s.started {
		s.mu.Unlock()
		return Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment session already started")
	}
	s.started = true
	s.mu.Unlock()

	return s.Reconcile(ctx)
}

// Submit starts a payment for in, or retries the unresolved one.
func (s *Service) Submit(ctx context.Context, in intent.Input) (Snapshot, error) {
	if err := s.ready(); err != nil {
		return s.machine.Snapshot(), err
	}
	var snap Snapshot
	err := s.inFlight(ctx, func(ctx context.Context) error {
		var err error
		snap, err = s.submitter.Submit(ctx, in)
		return err
	})
	if snap.State == "" {
		snap = s.machine.Snapshot()
	}
	return snap, err
}

// Reconcile resolves a pending record left by an earlier session, if any.
func (s *Service) Reconcile(ctx context.Context) (Result, error) {
	var result Result
	err := s.inFlight(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.reconciler.Run(ctx)
		return err
	})
	return result, err
}

// Reset returns a finished intent to idle so a new payment can begin. A
// record left behind by an intent the backend already accepted is cleared
// first; if that fails the session stays where it is.
func (s *Service) Reset(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.inFlight(ctx, func(ctx context.Context) error {
		if err := s.clearResolved(ctx, s.machine.Snapshot()); err != nil {
			return err
		}
		var err error
		snap, err = s.machine.Dispatch(Event{Type: EventReset})
		return err
	})
	if err != nil {
		return s.machine.Snapshot(), err
	}
	s.stopPoller()
	s.logg.Info(ctx, "payment session reset")
	return snap, nil
}

// clearResolved removes the stored record when it belongs to the intent in
// snap and that intent no longer needs it.
func (s *Service) clearResolved(ctx context.Context, snap Snapshot) error {
	resolved := snap.PaymentID != "" ||
		snap.State == enums.PaymentStateSuccess ||
		snap.State == enums.PaymentStateExpired
	if snap.Key == "" || !resolved || !s.machine.CanDispatch(EventReset) {
		return nil
	}
	record, err := s.store.Read(ctx)
	if pkgerrors.Is(err, pkgerrors.CodeCorruptRecord) {
		return nil
	}
	if err != nil {
		return err
	}
	if record == nil || record.Key != snap.Key {
		return nil
	}
	ctx = s.logg.WithIdempotencyKey(ctx, record.Key)
	if err := s.store.Clear(ctx); err != nil {
		s.logg.Error(ctx, "clearing resolved pending record before reset", err)
		return err
	}
	s.logg.Info(ctx, "cleared resolved pending record left after acceptance")
	return nil
}

func (s *Service) Snapshot() Snapshot {
	return s.machine.Snapshot()
}

// Subscribe registers l for every transition and returns its remover.
func (s *Service) Subscribe(l Listener) func() {
	return s.machine.Subscribe(l)
}

// Pending returns the stored record, or nil when nothing is in flight.
func (s *Service) Pending(ctx context.Context) (*pending.Record, error) {
	return s.store.Read(ctx)
}

// Ping checks the pending store's backing dependency when it has one.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(pending.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Service) Transactions(ctx context.Context) ([]gateway.PaymentDetails, error) {
	return s.backend.Transactions(ctx)
}

func (s *Service) PaymentDetails(ctx context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentId is required")
	}
	return s.backend.PaymentDetails(ctx, paymentID)
}

// Wait blocks until the running confirmation finishes or ctx is done and
// returns the snapshot at that point.
func (s *Service) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	if task == nil {
		return s.machine.Snapshot(), nil
	}
	select {
	case <-task.Done():
		return s.machine.Snapshot(), nil
	case <-ctx.Done():
		return s.machine.Snapshot(), ctx.Err()
	}
}

// Close stops the poller. The Service cannot be used afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	task := s.task
	s.task = nil
	s.mu.Unlock()

	s.cancel()
	if task != nil {
		task.Cancel()
	}
}

func (s *Service) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}
	if !s.started {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment session not started; reconciliation must run first")
	}
	return nil
}

// inFlight runs fn as the only submission or reconciliation of this process,
// holding the store's cross-process lock when the store provides one.
func (s *Service) inFlight(ctx context.Context, fn func(context.Context) error) error {
	if !s.flight.TryLock() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "another payment operation is in flight").
			WithDetails(map[string]any{"state": s.machine.Snapshot().State})
	}
	defer s.flight.Unlock()

	locker, ok := s.store.(pending.Locker)
	if !ok {
		return fn(ctx)
	}
	release, err := locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logg.Error(ctx, "releasing pending slot lock", err)
		}
	}()
	return fn(ctx)
}

func (s *Service) startPoller(paymentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.task != nil {
		s.task.Cancel()
	}
	s.task = s.poller.Start(s.ctx, paymentID)
}

func (s *Service) stopPoller() {
	s.mu.Lock()
	task := s.task
	s.task = nil
	s.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

func errClosed() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment session closed")
}
