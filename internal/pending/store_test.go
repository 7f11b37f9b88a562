package pending

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/momopay/pkg/config"
	"github.com/angelmondragon/momopay/pkg/db"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/migrate"
)

// exerciseStore checks the single-slot contract every backend must honour.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	record, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("empty read: %v", err)
	}
	if record != nil {
		t.Fatalf("expected empty slot, got %+v", record)
	}

	first := NewRecord(testPayload(testKey), time.UnixMilli(1_767_225_600_000))
	if err := store.Write(ctx, first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write(ctx, first.WithAttempt()); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	record, err = store.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if record == nil || record.Key != testKey || record.AttemptCount != 1 {
		t.Fatalf("unexpected record %+v", record)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clearing an empty slot should succeed: %v", err)
	}
	record, err = store.Read(ctx)
	if err != nil || record != nil {
		t.Fatalf("expected empty slot after clear, got %+v err=%v", record, err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)

	store.SetRaw([]byte(`{"key":"broken"}`))
	if _, err := store.Read(context.Background()); !pkgerrors.Is(err, pkgerrors.CodeCorruptRecord) {
		t.Fatalf("expected CORRUPT_RECORD, got %v", err)
	}
}

func newSQLStore(t *testing.T, clientID string, client *db.Client) *SQLStore {
	t.Helper()
	store, err := NewSQLStore(client.DB(), clientID)
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	return store
}

func openMigratedDB(t *testing.T) *db.Client {
	t.Helper()
	ctx := context.Background()
	storeCfg := config.StoreConfig{Driver: config.StoreDriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "pending.db")}
	client, err := db.New(ctx, storeCfg, config.DBConfig{}, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if err := migrate.Run(ctx, sqlDB, client.Dialect(), "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}

func TestSQLStore(t *testing.T) {
	client := openMigratedDB(t)
	exerciseStore(t, newSQLStore(t, "tab-1", client))
}

func TestSQLStoreScopesSlotByClient(t *testing.T) {
	ctx := context.Background()
	client := openMigratedDB(t)
	a := newSQLStore(t, "tab-a", client)
	b := newSQLStore(t, "tab-b", client)

	if err := a.Write(ctx, NewRecord(testPayload(testKey), time.Now())); err != nil {
		t.Fatalf("write: %v", err)
	}
	record, err := b.Read(ctx)
	if err != nil || record != nil {
		t.Fatalf("client b must not see client a's slot, got %+v err=%v", record, err)
	}
	if err := a.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSQLStoreRequiresClientID(t *testing.T) {
	client := openMigratedDB(t)
	if _, err := NewSQLStore(client.DB(), " "); err == nil {
		t.Fatal("expected error for blank client id")
	}
	if _, err := NewSQLStore(nil, "tab"); err == nil {
		t.Fatal("expected error for nil db")
	}
}
