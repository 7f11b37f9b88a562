package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/momopay/internal/gateway"
	"github.com/angelmondragon/momopay/internal/intent"
	"github.com/angelmondragon/momopay/internal/pending"
	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
	"github.com/shopspring/decimal"
)

func startService(t *testing.T, svc *Service) Result {
	t.Helper()
	result, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return result
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	store := pending.NewMemoryStore()
	backend := &fakeBackend{}
	tests := map[string]ServiceParams{
		"store":   {Backend: backend, Logger: logger.Nop()},
		"backend": {Store: store, Logger: logger.Nop()},
		"logger":  {Store: store, Backend: backend},
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewService(params); err == nil {
				t.Fatalf("expected error without %s", name)
			}
		})
	}
}

func TestSubmitRequiresStart(t *testing.T) {
	svc := newTestService(t, pending.NewMemoryStore(), &fakeBackend{})
	if _, err := svc.Submit(context.Background(), validInput()); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT before Start, got %v", err)
	}
	startService(t, svc)
	if _, err := svc.Start(context.Background()); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second Start should conflict, got %v", err)
	}
}

func TestSubmitRejectsInvalidInputWithoutSideEffects(t *testing.T) {
	store := pending.NewMemoryStore()
	backend := &fakeBackend{}
	svc := newTestService(t, store, backend)
	startService(t, svc)

	in := validInput()
	in.Mobile = "12"
	snap, err := svc.Submit(context.Background(), in)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if snap.State != enums.PaymentStateIdle {
		t.Fatalf("validation failure must not transition, got %s", snap.State)
	}
	if store.Raw() != nil || backend.payCount() != 0 {
		t.Fatalf("validation failure must not touch the store or backend")
	}
}

func TestSubmitPersistsRecordBeforeSending(t *testing.T) {
	store := pending.NewMemoryStore()
	backend := &fakeBackend{}
	var seenDuringSend *pending.Record
	backend.payFn = func(ctx context.Context, payload intent.Payload) (gateway.PayResult, error) {
		record, err := store.Read(ctx)
		if err != nil {
			t.Errorf("read during send: %v", err)
		}
		seenDuringSend = record
		return gateway.PayResult{PaymentID: "pay-1"}, nil
	}
	svc := newTestService(t, store, backend)
	startService(t, svc)

	snap, err := svc.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if seenDuringSend == nil {
		t.Fatalf("record must be durable before the charge request is sent")
	}
	if seenDuringSend.Key != backend.pays[0].IdempotencyKey || seenDuringSend.AttemptCount != 0 {
		t.Fatalf("stored record does not match the sent payload: %+v", seenDuringSend)
	}
	if snap.State != enums.PaymentStateProcessing || snap.PaymentID != "pay-1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if store.Raw() != nil {
		t.Fatalf("accepted intent should clear the record")
	}
}

func TestSubmitFailureKeepsRecordAndReusesKey(t *testing.T) {
	store := pending.NewMemoryStore()
	backend := &fakeBackend{}
	backend.payFn = func(context.Context, intent.Payload) (gateway.PayResult, error) {
		return gateway.PayResult{}, networkError()
	}
	svc := newTestService(t, store, backend)
	startService(t, svc)

	snap, err := svc.Submit(context.Background(), validInput())
	if !pkgerrors.Is(err, pkgerrors.CodeNetwork) {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
	if snap.State != enums.PaymentStateFailed || snap.ErrorCode != pkgerrors.CodeNetwork {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	kept, err := store.Read(context.Background())
	if err != nil || kept == nil {
		t.Fatalf("record must survive a network failure: %+v err=%v", kept, err)
	}

	backend.mu.Lock()
	backend.payFn = nil
	backend.mu.Unlock()
	changed := validInput()
	changed.Mobile = "888777666"
	snap, err = svc.Submit(context.Background(), changed)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if snap.State != enums.PaymentStateProcessing {
		t.Fatalf("expected processing, got %s", snap.State)
	}
	if len(backend.pays) != 2 {
		t.Fatalf("expected 2 charge requests, got %d", len(backend.pays))
	}
	if backend.pays[0].IdempotencyKey != backend.pays[1].IdempotencyKey || !backend.pays[0].Equal(backend.pays[1]) {
		t.Fatalf("retry must resend the identical payload: %+v vs %+v", backend.pays[0], backend.pays[1])
	}
	if backend.pays[1].IdempotencyKey != kept.Key {
		t.Fatalf("retry used a different key")
	}
}

func TestSubmitRejectedWhileBusy(t *testing.T) {
	store := pending.NewMemoryStore()
	backend := &fakeBackend{}
	entered := make(chan struct{})
	release := make(chan struct{})
	backend.payFn = func(context.Context, intent.Payload) (gateway.PayResult, error) {
		close(entered)
		<-release
		return gateway.PayResult{PaymentID: "pay-1"}, nil
	}
	svc := newTestService(t, store, backend)
	startService(t, svc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.Submit(context.Background(), validInput()); err != nil {
			t.Errorf("first submit: %v", err)
		}
	}()
	<-entered

	if _, err := svc.Submit(context.Background(), validInput()); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT while submitting, got %v", err)
	}
	if _, err := svc.Reconcile(context.Background()); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT for reconcile while submitting, got %v", err)
	}
	close(release)
	wg.Wait()

	if _, err := svc.Submit(context.Background(), validInput()); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT while processing, got %v", err)
	}
	if backend.payCount() != 1 {
		t.Fatalf("only one charge request may be sent, got %d", backend.payCount())
	}
}

func TestStartWithoutRecordIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	svc := newTestService(t, pending.NewMemoryStore(), backend)
	result := startService(t, svc)
	if result.Outcome != OutcomeNoop {
		t.Fatalf("expected noop, got %s", result.Outcome)
	}
	if len(backend.statusKeys) != 0 || svc.Snapshot().State != enums.PaymentStateIdle {
		t.Fatalf("noop reconciliation must not query or transition")
	}
}

func TestReconcileSuccessClearsRecord(t *testing.T) {
	store := pending.NewMemoryStore()
	record := seedRecord(t, store, 1)
	backend := &fakeBackend{}
	backend.statusFn = func(string) (gateway.StatusResult, error) {
		return gateway.StatusResult{Status: enums.RemoteStatusSuccess, PaymentID: "pay-42"}, nil
	}
	svc := newTestService(t, store, backend)

	result := startService(t, svc)
	if result.Outcome != OutcomeSucceeded || result.PaymentID != "pay-42" || result.Key != record.Key {
		t.Fatalf("unexpected result %+v", result)
	}
	snap := svc.Snapshot()
	if snap.State != enums.PaymentStateSuccess || snap.PaymentID != "pay-42" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if store.Raw() != nil {
		t.Fatalf("SUCCESS must clear the record")
	}
	if backend.payCount() != 0 {
		t.Fatalf("settled intent must not be resent")
	}
}

func TestReconcileRetryBound(t *testing.T) {
	store := pending.NewMemoryStore()
	record := seedRecord(t, store, 0)
	backend := &fakeBackend{}
	backend.payFn = func(context.Context, intent.Payload) (gateway.PayResult, error) {
		return gateway.PayResult{}, networkError()
	}
	svc := newTestService(t, store, backend)

	result, err := svc.Start(context.Background())
	for run := 1; run <= 3; run++ {
		if run > 1 {
			result, err = svc.Reconcile(context.Background())
		}
		if result.Outcome != OutcomeResubmitFailed || !pkgerrors.Is(err, pkgerrors.CodeNetwork) {
			t.Fatalf("run %d: unexpected outcome %s err=%v", run, result.Outcome, err)
		}
		stored, readErr := store.Read(context.Background())
		if readErr != nil || stored == nil || stored.AttemptCount != run {
			t.Fatalf("run %d: expected attemptCount %d, got %+v err=%v", run, run, stored, readErr)
		}
	}

	result, err = svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("fourth run: %v", err)
	}
	if result.Outcome != OutcomeExpired {
		t.Fatalf("expected expired, got %s", result.Outcome)
	}
	snap := svc.Snapshot()
	if snap.State != enums.PaymentStateExpired || snap.ErrorCode != pkgerrors.CodeRetriesExhausted {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if store.Raw() != nil {
		t.Fatalf("expired intent must clear the record")
	}
	if backend.payCount() != 3 {
		t.Fatalf("expected exactly 3 resends, got %d", backend.payCount())
	}
	for i, payload := range backend.pays {
		if payload.IdempotencyKey != record.Key || !payload.Equal(record.Payload) {
			t.Fatalf("resend %d changed the payload", i)
		}
	}

	if _, err := svc.Submit(context.Background(), validInput()); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expired intent requires reset before a new submission, got %v", err)
	}
	if _, err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if svc.Snapshot().State != enums.PaymentStateIdle {
		t.Fatalf("reset should return to idle")
	}
}

func TestReconcileDefersWithoutTouchingRecord(t *testing.T) {
	tests := []struct {
		name    string
		status  gateway.StatusResult
		err     error
		outcome Outcome
	}{
		{"pending", gateway.StatusResult{Status: enums.RemoteStatusPending}, nil, OutcomeDeferred},
		{"processing", gateway.StatusResult{Status: enums.RemoteStatusProcessing}, nil, OutcomeDeferred},
		{"transport error", gateway.StatusResult{}, networkError(), OutcomeErrored},
		{"server error", gateway.StatusResult{}, pkgerrors.New(pkgerrors.CodeServer, "status endpoint returned 404"), OutcomeErrored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := pending.NewMemoryStore()
			seedRecord(t, store, 2)
			before := store.Raw()
			backend := &fakeBackend{}
			backend.statusFn = func(string) (gateway.StatusResult, error) { return tt.status, tt.err }
			svc := newTestService(t, store, backend)

			result, err := svc.Start(context.Background())
			if result.Outcome != tt.outcome {
				t.Fatalf("expected %s, got %s", tt.outcome, result.Outcome)
			}
			if (tt.err != nil) != (err != nil) {
				t.Fatalf("unexpected error %v", err)
			}
			if string(store.Raw()) != string(before) {
				t.Fatalf("deferral must leave the record untouched")
			}
			if backend.payCount() != 0 {
				t.Fatalf("deferral must not resend")
			}
			if svc.Snapshot().State != enums.PaymentStateReconcileProcessing {
				t.Fatalf("expected reconcile_processing, got %s", svc.Snapshot().State)
			}
			if _, err := svc.Submit(context.Background(), validInput()); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
				t.Fatalf("submission must wait for reconciliation, got %v", err)
			}
		})
	}
}

func TestReconcileDiscardsCorruptRecord(t *testing.T) {
	store := pending.NewMemoryStore()
	store.SetRaw([]byte(`{"version":9,"key":"nope"}`))
	backend := &fakeBackend{}
	svc := newTestService(t, store, backend)

	result := startService(t, svc)
	if result.Outcome != OutcomeCorrupt {
		t.Fatalf("expected corrupt, got %s", result.Outcome)
	}
	if store.Raw() != nil {
		t.Fatalf("corrupt record must be cleared")
	}
	snap := svc.Snapshot()
	if snap.State != enums.PaymentStateFailed || snap.ErrorCode != pkgerrors.CodeCorruptRecord {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(backend.statusKeys) != 0 {
		t.Fatalf("corrupt record must not be queried")
	}

	if _, err := svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("a fresh submission should be possible after a discarded record: %v", err)
	}
}

func TestRecordSurvivesCrashBetweenWriteAndSend(t *testing.T) {
	store := pending.NewMemoryStore()
	crashed := &fakeBackend{}
	crashed.payFn = func(context.Context, intent.Payload) (gateway.PayResult, error) {
		return gateway.PayResult{}, context.Canceled
	}
	first := newTestService(t, store, crashed)
	startService(t, first)
	_, _ = first.Submit(context.Background(), validInput())
	first.Close()

	orphan, err := store.Read(context.Background())
	if err != nil || orphan == nil {
		t.Fatalf("record lost across the send gap: %+v err=%v", orphan, err)
	}

	backend := &fakeBackend{}
	second := newTestService(t, store, backend)
	result := startService(t, second)
	if result.Key != orphan.Key || len(backend.statusKeys) != 1 || backend.statusKeys[0] != orphan.Key {
		t.Fatalf("restart did not reconcile the orphaned key: %+v", result)
	}
}

func TestRestartResubmitsUnknownIntent(t *testing.T) {
	store := pending.NewMemoryStore()

	offline := &fakeBackend{}
	offline.payFn = func(context.Context, intent.Payload) (gateway.PayResult, error) {
		return gateway.PayResult{}, networkError()
	}
	first := newTestService(t, store, offline)
	startService(t, first)
	snap, err := first.Submit(context.Background(), validInput())
	if !pkgerrors.Is(err, pkgerrors.CodeNetwork) || snap.State != enums.PaymentStateFailed {
		t.Fatalf("expected failed submission, got %s err=%v", snap.State, err)
	}
	first.Close()
	record, err := store.Read(context.Background())
	if err != nil || record == nil || record.AttemptCount != 0 {
		t.Fatalf("record should be retained with no attempts: %+v err=%v", record, err)
	}

	backend := &fakeBackend{}
	backend.payFn = func(context.Context, intent.Payload) (gateway.PayResult, error) {
		return gateway.PayResult{PaymentID: "pay-k1"}, nil
	}
	backend.detailsFn = func(paymentID string) (*gateway.PaymentDetails, error) {
		return &gateway.PaymentDetails{ID: paymentID, Status: enums.SettlementStatusCompleted, ChargeID: "CHG1"}, nil
	}
	second := newTestService(t, store, backend, withPolling(5*time.Millisecond, time.Second))
	var notices []Transition
	var mu sync.Mutex
	second.Subscribe(func(tr Transition) {
		mu.Lock()
		notices = append(notices, tr)
		mu.Unlock()
	})

	result := startService(t, second)
	if result.Outcome != OutcomeResubmitted || result.AttemptCount != 1 || result.PaymentID != "pay-k1" {
		t.Fatalf("unexpected result %+v", result)
	}
	if backend.statusKeys[0] != record.Key || backend.pays[0].IdempotencyKey != record.Key {
		t.Fatalf("reconciliation must reuse the stored key")
	}
	if store.Raw() != nil {
		t.Fatalf("accepted resubmission should clear the record")
	}

	final := waitForState(t, second, enums.PaymentStateSuccess)
	if final.PaymentID != "pay-k1" || final.ChargeID != "CHG1" {
		t.Fatalf("unexpected final snapshot %+v", final)
	}

	mu.Lock()
	defer mu.Unlock()
	var resubmitted bool
	for _, tr := range notices {
		if tr.Event.Type == EventSubmitSucceeded && tr.Event.Resubmission {
			resubmitted = true
		}
	}
	if !resubmitted {
		t.Fatalf("listeners should see the accepted resubmission")
	}
}

func TestServiceReadThroughHelpers(t *testing.T) {
	store := pending.NewMemoryStore()
	record := seedRecord(t, store, 0)
	backend := &fakeBackend{}
	svc := newTestService(t, store, backend)

	got, err := svc.Pending(context.Background())
	if err != nil || got == nil || got.Key != record.Key {
		t.Fatalf("Pending: %+v err=%v", got, err)
	}
	txs, err := svc.Transactions(context.Background())
	if err != nil || len(txs) != 1 {
		t.Fatalf("Transactions: %+v err=%v", txs, err)
	}
	if _, err := svc.PaymentDetails(context.Background(), "  "); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for blank id, got %v", err)
	}
	details, err := svc.PaymentDetails(context.Background(), "pay-7")
	if err != nil || details.ID != "pay-7" {
		t.Fatalf("PaymentDetails: %+v err=%v", details, err)
	}
	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("memory store has nothing to ping: %v", err)
	}
}

type lockingStore struct {
	*pending.MemoryStore
	mu       sync.Mutex
	locks    int
	releases int
}

func (s *lockingStore) Lock(context.Context) (func(context.Context) error, error) {
	s.mu.Lock()
	s.locks++
	s.mu.Unlock()
	return func(context.Context) error {
		s.mu.Lock()
		s.releases++
		s.mu.Unlock()
		return nil
	}, nil
}

func TestServiceLocksSharedStores(t *testing.T) {
	store := &lockingStore{MemoryStore: pending.NewMemoryStore()}
	svc := newTestService(t, store, &fakeBackend{})
	startService(t, svc)
	if _, err := svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.locks != 2 || store.releases != 2 {
		t.Fatalf("expected lock and release around start and submit, got %d/%d", store.locks, store.releases)
	}
}

// unverifiedBackend accepts charges but never sees them settle. With a charge id
// the backup confirmation is attempted and fails.
func unverifiedBackend(chargeID string) *fakeBackend {
	backend := &fakeBackend{}
	backend.detailsFn = func(paymentID string) (*gateway.PaymentDetails, error) {
		return &gateway.PaymentDetails{ID: paymentID, Status: enums.SettlementStatusPending, ChargeID: chargeID}, nil
	}
	backend.backupFn = func(string) (gateway.BackupResult, error) {
		return gateway.BackupResult{}, networkError()
	}
	return backend
}

func TestTerminalFailureBlocksSubmitUntilReset(t *testing.T) {
	tests := []struct {
		name     string
		chargeID string
		code     pkgerrors.Code
	}{
		{"backup verification failed", "CHG_A", pkgerrors.CodeBackupVerificationFailed},
		{"confirmation timeout", "", pkgerrors.CodeConfirmationTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := pending.NewMemoryStore()
			backend := unverifiedBackend(tt.chargeID)
			svc := newTestService(t, store, backend, withPolling(5*time.Millisecond, 30*time.Millisecond))
			startService(t, svc)

			if _, err := svc.Submit(context.Background(), validInput()); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			snap := waitForState(t, svc, enums.PaymentStateFailed)
			if snap.ErrorCode != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, snap.ErrorCode)
			}

			snap, err := svc.Submit(context.Background(), validInput())
			if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
				t.Fatalf("expected STATE_CONFLICT after %s, got %v", tt.code, err)
			}
			if snap.ErrorCode != tt.code || backend.payCount() != 1 {
				t.Fatalf("refused submission must not charge or touch the snapshot: %+v pays=%d", snap, backend.payCount())
			}

			if _, err := svc.Reset(context.Background()); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if _, err := svc.Submit(context.Background(), validInput()); err != nil {
				t.Fatalf("Submit after reset: %v", err)
			}
			backend.mu.Lock()
			defer backend.mu.Unlock()
			if len(backend.pays) != 2 || backend.pays[0].IdempotencyKey == backend.pays[1].IdempotencyKey {
				t.Fatalf("expected a second intent with its own key, got %+v", backend.pays)
			}
		})
	}
}

func TestFreshIntentDropsPreviousIdentifiers(t *testing.T) {
	store := pending.NewMemoryStore()
	backend := unverifiedBackend("CHG_A")
	svc := newTestService(t, store, backend, withPolling(5*time.Millisecond, 30*time.Millisecond))
	startService(t, svc)

	if _, err := svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	first := waitForState(t, svc, enums.PaymentStateFailed)
	if first.PaymentID != "pay-1" || first.ChargeID != "CHG_A" || first.Key == "" {
		t.Fatalf("failed intent should keep its identifiers: %+v", first)
	}

	// An unreadable record found afterwards moves the session to a retryable failure.
	store.SetRaw([]byte(`{"version":9,"key":"nope"}`))
	result, _ := svc.Reconcile(context.Background())
	if result.Outcome != OutcomeCorrupt {
		t.Fatalf("expected corrupt, got %s", result.Outcome)
	}

	backend.mu.Lock()
	backend.payFn = func(context.Context, intent.Payload) (gateway.PayResult, error) {
		return gateway.PayResult{}, networkError()
	}
	backend.mu.Unlock()

	snap, err := svc.Submit(context.Background(), validInput())
	if !pkgerrors.Is(err, pkgerrors.CodeNetwork) {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
	if snap.PaymentID != "" || snap.ChargeID != "" {
		t.Fatalf("new intent carries the previous identifiers: %+v", snap)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.pays) != 2 || snap.Key != backend.pays[1].IdempotencyKey || snap.Key == first.Key {
		t.Fatalf("snapshot should track the new key %q, got %+v", backend.pays[len(backend.pays)-1].IdempotencyKey, snap)
	}
}

type flakyClearStore struct {
	*pending.MemoryStore
	mu       sync.Mutex
	failures int
}

func (s *flakyClearStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeDependency, "store unavailable")
	}
	s.mu.Unlock()
	return s.MemoryStore.Clear(ctx)
}

func TestResetClearsRecordLeftAfterAcceptance(t *testing.T) {
	store := &flakyClearStore{MemoryStore: pending.NewMemoryStore(), failures: 2}
	backend := &fakeBackend{}
	backend.detailsFn = func(paymentID string) (*gateway.PaymentDetails, error) {
		return &gateway.PaymentDetails{ID: paymentID, Status: enums.SettlementStatusSuccess}, nil
	}
	svc := newTestService(t, store, backend, withPolling(5*time.Millisecond, time.Second))
	startService(t, svc)

	if _, err := svc.Submit(context.Background(), validInput()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForState(t, svc, enums.PaymentStateSuccess)
	if store.Raw() == nil {
		t.Fatalf("expected the record to survive the failed clear")
	}

	if _, err := svc.Reset(context.Background()); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR while the record cannot be cleared, got %v", err)
	}
	if svc.Snapshot().State != enums.PaymentStateSuccess {
		t.Fatalf("failed reset must leave the session in success, got %s", svc.Snapshot().State)
	}

	if _, err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if store.Raw() != nil {
		t.Fatalf("reset should clear the settled record")
	}

	changed := validInput()
	changed.Amount = decimal.NewFromInt(2500)
	if _, err := svc.Submit(context.Background(), changed); err != nil {
		t.Fatalf("Submit after reset: %v", err)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.pays) != 2 {
		t.Fatalf("expected 2 charge requests, got %d", len(backend.pays))
	}
	if backend.pays[1].IdempotencyKey == backend.pays[0].IdempotencyKey || !backend.pays[1].Amount.Equal(changed.Amount) {
		t.Fatalf("new payment reused the settled intent: %+v", backend.pays[1])
	}
}
