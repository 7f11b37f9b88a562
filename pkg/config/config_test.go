package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != AppEnvDev {
		t.Fatalf("expected App.Env to default to dev, got %q", cfg.App.Env)
	}
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Fatalf("unexpected backend url %q", cfg.Backend.BaseURL)
	}
	if cfg.Store.NormalizedDriver() != StoreDriverSQLite {
		t.Fatalf("expected sqlite store by default, got %q", cfg.Store.Driver)
	}
	if cfg.Payments.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Payments.MaxAttempts)
	}
	if cfg.Payments.PollInterval != 3*time.Second || cfg.Payments.PollTimeout != 30*time.Second {
		t.Fatalf("unexpected poll timings %v/%v", cfg.Payments.PollInterval, cfg.Payments.PollTimeout)
	}
	if len(cfg.Server.CORSOrigins) != 1 {
		t.Fatalf("unexpected cors origins %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvBackendURL, "https://pay.example.mw")
	t.Setenv(EnvStoreDriver, "REDIS")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvPaymentsPollEvery, "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Store.NormalizedDriver() != StoreDriverRedis {
		t.Fatalf("expected redis driver, got %q", cfg.Store.Driver)
	}
	if cfg.Store.LockTTL != 45*time.Second {
		t.Fatalf("unexpected lock ttl %v", cfg.Store.LockTTL)
	}
	if cfg.Payments.PollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval %v", cfg.Payments.PollInterval)
	}
}

func TestLoad_StoreRequirements(t *testing.T) {
	tests := []struct {
		name   string
		driver string
	}{
		{name: "postgres without dsn", driver: StoreDriverPostgres},
		{name: "redis without url", driver: StoreDriverRedis},
		{name: "unknown driver", driver: "etcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvStoreDriver, tt.driver)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for driver %q", tt.driver)
			}
		})
	}
}

func TestLoad_LockTTLMustOutlastResubmission(t *testing.T) {
	t.Setenv(EnvStoreDriver, StoreDriverRedis)
	t.Setenv(EnvRedisAddr, "localhost:6379")
	t.Setenv(EnvBackendTimeout, "15s")

	t.Setenv(EnvStoreLockTTL, "30s")
	if _, err := Load(); err == nil {
		t.Fatal("expected a lock ttl of twice the backend timeout to be rejected")
	}

	t.Setenv(EnvStoreLockTTL, "31s")
	if _, err := Load(); err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
}

func TestLoad_RejectsInvalidBackendURL(t *testing.T) {
	t.Setenv(EnvBackendURL, "localhost:5000")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid backend url to return an error")
	}
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}
