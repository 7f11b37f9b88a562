package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Store    StoreConfig
	DB       DBConfig
	Redis    RedisConfig
	Payments PaymentsConfig
	Server   ServerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.ensureStore(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MOMOPAY_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"MOMOPAY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MOMOPAY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MOMOPAY_LOG_WARN_STACK" default:"false"`
	ClientID     string `envconfig:"MOMOPAY_CLIENT_ID" default:"default"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type BackendConfig struct {
	BaseURL string        `envconfig:"MOMOPAY_BACKEND_URL" default:"http://localhost:5000"`
	Timeout time.Duration `envconfig:"MOMOPAY_BACKEND_TIMEOUT" default:"15s"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", EnvBackendURL, b.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host", EnvBackendURL)
	}
	return nil
}

type StoreConfig struct {
	Driver     string        `envconfig:"MOMOPAY_STORE_DRIVER" default:"sqlite"`
	SQLitePath string        `envconfig:"MOMOPAY_STORE_SQLITE_PATH" default:"momopay.db"`
	LockTTL    time.Duration `envconfig:"MOMOPAY_STORE_LOCK_TTL" default:"45s"`
}

// NormalizedDriver returns the lower-cased driver name.
func (s StoreConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

type DBConfig struct {
	DSN             string        `envconfig:"MOMOPAY_DB_DSN"`
	MaxOpenConns    int           `envconfig:"MOMOPAY_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"MOMOPAY_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"MOMOPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"MOMOPAY_DB_AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MOMOPAY_REDIS_URL"`
	Address      string        `envconfig:"MOMOPAY_REDIS_ADDR"`
	Password     string        `envconfig:"MOMOPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"MOMOPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MOMOPAY_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"MOMOPAY_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"MOMOPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MOMOPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MOMOPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PaymentsConfig struct {
	MaxAttempts  int           `envconfig:"MOMOPAY_PAYMENTS_MAX_ATTEMPTS" default:"3"`
	PollInterval time.Duration `envconfig:"MOMOPAY_PAYMENTS_POLL_INTERVAL" default:"3s"`
	PollTimeout  time.Duration `envconfig:"MOMOPAY_PAYMENTS_POLL_TIMEOUT" default:"30s"`
}

type ServerConfig struct {
	Port        string   `envconfig:"MOMOPAY_SERVER_PORT" default:"8085"`
	CORSOrigins []string `envconfig:"MOMOPAY_SERVER_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (c *Config) ensureStore() error {
	switch c.Store.NormalizedDriver() {
	case StoreDriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return fmt.Errorf("%s is required for the sqlite store", EnvStoreSQLitePath)
		}
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s is required for the postgres store", EnvDBDSN)
		}
	case StoreDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis store", EnvRedisURL, EnvRedisAddr)
		}
		// A resubmission holds the lease across a status call and a charge request.
		if c.Store.LockTTL <= 2*c.Backend.Timeout {
			return fmt.Errorf("%s (%s) must exceed twice %s (%s)", EnvStoreLockTTL, c.Store.LockTTL, EnvBackendTimeout, c.Backend.Timeout)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("%s must be one of %s, got %q", EnvStoreDriver, strings.Join(storeDrivers, ", "), c.Store.Driver)
	}
	return nil
}
