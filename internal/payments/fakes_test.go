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

type fakeBackend struct {
	mu sync.Mutex

	payFn     func(ctx context.Context, payload intent.Payload) (gateway.PayResult, error)
	statusFn  func(key string) (gateway.StatusResult, error)
	detailsFn func(paymentID string) (*gateway.PaymentDetails, error)
	backupFn  func(chargeID string) (gateway.BackupResult, error)

	pays         []intent.Payload
	statusKeys   []string
	detailsCalls int
	backups      []string
}

func (f *fakeBackend) Pay(ctx context.Context, payload intent.Payload) (gateway.PayResult, error) {
	f.mu.Lock()
	f.pays = append(f.pays, payload)
	fn := f.payFn
	f.mu.Unlock()
	if fn == nil {
		return gateway.PayResult{PaymentID: "pay-1"}, nil
	}
	return fn(ctx, payload)
}

func (f *fakeBackend) Status(_ context.Context, key string) (gateway.StatusResult, error) {
	f.mu.Lock()
	f.statusKeys = append(f.statusKeys, key)
	fn := f.statusFn
	f.mu.Unlock()
	if fn == nil {
		return gateway.StatusResult{Status: enums.RemoteStatusNotFound}, nil
	}
	return fn(key)
}

func (f *fakeBackend) PaymentDetails(_ context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	f.mu.Lock()
	f.detailsCalls++
	fn := f.detailsFn
	f.mu.Unlock()
	if fn == nil {
		return &gateway.PaymentDetails{ID: paymentID, Status: enums.SettlementStatusPending}, nil
	}
	return fn(paymentID)
}

func (f *fakeBackend) BackupConfirm(_ context.Context, chargeID string) (gateway.BackupResult, error) {
	f.mu.Lock()
	f.backups = append(f.backups, chargeID)
	fn := f.backupFn
	f.mu.Unlock()
	if fn == nil {
		return gateway.BackupResult{Success: true, VerifiedStatus: enums.SettlementStatusSuccess}, nil
	}
	return fn(chargeID)
}

func (f *fakeBackend) Transactions(context.Context) ([]gateway.PaymentDetails, error) {
	return []gateway.PaymentDetails{{ID: "pay-1", Status: enums.SettlementStatusCompleted}}, nil
}

func (f *fakeBackend) payCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pays)
}

func (f *fakeBackend) backupCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.backups...)
}

func networkError() error {
	return pkgerrors.New(pkgerrors.CodeNetwork, "payment backend unreachable")
}

func validInput() intent.Input {
	return intent.Input{
		UserID:   "u-1",
		Email:    "payer@example.com",
		Name:     "Chikondi Banda",
		Amount:   decimal.NewFromInt(1000),
		Currency: enums.CurrencyMWK,
		Mobile:   "999000111",
		Provider: enums.ProviderAirtel,
	}
}

type serviceOption func(*ServiceParams)

func withPolling(interval, timeout time.Duration) serviceOption {
	return func(p *ServiceParams) {
		p.PollInterval = interval
		p.PollTimeout = timeout
	}
}

func newTestService(t *testing.T, store pending.Store, backend Backend, opts ...serviceOption) *Service {
	t.Helper()
	params := ServiceParams{
		Store:        store,
		Backend:      backend,
		Logger:       logger.Nop(),
		PollInterval: time.Hour,
		PollTimeout:  time.Hour,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// seedRecord stores a record as an earlier session would have left it.
func seedRecord(t *testing.T, store pending.Store, attempts int) pending.Record {
	t.Helper()
	payload, err := intent.Build(validInput(), intent.NewKey())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	record := pending.NewRecord(payload, time.Now())
	for i := 0; i < attempts; i++ {
		record = record.WithAttempt()
	}
	if err := store.Write(context.Background(), record); err != nil {
		t.Fatalf("seed write: %v", err)
	}
	return record
}

func waitForState(t *testing.T, svc *Service, want enums.PaymentState) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := svc.Wait(ctx)
	if err != nil {
		t.Fatalf("waiting for %s: %v (state %s)", want, err, snap.State)
	}
	if snap.State != want {
		t.Fatalf("expected state %s, got %s (error %q)", want, snap.State, snap.Error)
	}
	return snap
}
