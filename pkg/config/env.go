package config

const EnvPrefix = "MOMOPAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

var storeDrivers = []string{StoreDriverSQLite, StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory}

const (
	EnvAppEnv             = "MOMOPAY_APP_ENV"
	EnvLogLevel           = "MOMOPAY_LOG_LEVEL"
	EnvLogFormat          = "MOMOPAY_LOG_FORMAT"
	EnvClientID           = "MOMOPAY_CLIENT_ID"
	EnvBackendURL         = "MOMOPAY_BACKEND_URL"
	EnvBackendTimeout     = "MOMOPAY_BACKEND_TIMEOUT"
	EnvStoreDriver        = "MOMOPAY_STORE_DRIVER"
	EnvStoreSQLitePath    = "MOMOPAY_STORE_SQLITE_PATH"
	EnvStoreLockTTL       = "MOMOPAY_STORE_LOCK_TTL"
	EnvDBDSN              = "MOMOPAY_DB_DSN"
	EnvRedisURL           = "MOMOPAY_REDIS_URL"
	EnvRedisAddr          = "MOMOPAY_REDIS_ADDR"
	EnvPaymentsMaxAttempt = "MOMOPAY_PAYMENTS_MAX_ATTEMPTS"
	EnvPaymentsPollEvery  = "MOMOPAY_PAYMENTS_POLL_INTERVAL"
	EnvPaymentsPollTimout = "MOMOPAY_PAYMENTS_POLL_TIMEOUT"
	EnvServerPort         = "MOMOPAY_SERVER_PORT"
	EnvServerCORSOrigins  = "MOMOPAY_SERVER_CORS_ORIGINS"
)
