package main

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/momopay/internal/gateway"
	"github.com/angelmondragon/momopay/internal/notifications"
	"github.com/angelmondragon/momopay/internal/payments"
	"github.com/angelmondragon/momopay/internal/pending"
	"github.com/angelmondragon/momopay/pkg/config"
	"github.com/angelmondragon/momopay/pkg/db"
	"github.com/angelmondragon/momopay/pkg/logger"
	"github.com/angelmondragon/momopay/pkg/metrics"
	"github.com/angelmondragon/momopay/pkg/migrate"
	"github.com/angelmondragon/momopay/pkg/redis"
)

const serviceName = "momopay"

type globalOptions struct {
	envFile   string
	logFormat string
}

// app holds everything a command needs once configuration is resolved.
type app struct {
	cfg      *config.Config
	logg     *logger.Logger
	registry *prometheus.Registry
	store    pending.Store
	service  *payments.Service
	bridge   *notifications.LogBridge
	closers  []io.Closer
}

// loadConfig reads the optional env file and the environment, then builds the
// configured logger.
func loadConfig(opts globalOptions) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: serviceName, Format: opts.logFormat})

	envFiles := []string{}
	if opts.envFile != "" {
		envFiles = append(envFiles, opts.envFile)
	}
	if err := godotenv.Load(envFiles...); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, fmt.Errorf("load config: %w", err)
	}

	format := cfg.App.LogFormat
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      format,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return cfg, logg, nil
}

// newApp wires the pending store, the backend gateway and the payment
// session. It does not run the startup reconciliation.
func newApp(ctx context.Context, opts globalOptions) (*app, error) {
	cfg, logg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logg: logg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openStore(ctx); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	m := metrics.NewPaymentMetrics(a.registry)
	client, err := gateway.NewClient(cfg.Backend, logg, m)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("build gateway: %w", err), a.Close())
	}

	a.service, err = payments.NewService(payments.ServiceParams{
		Store:        a.store,
		Backend:      client,
		Logger:       logg,
		Metrics:      m,
		Retry:        payments.RetryPolicy{MaxAttempts: cfg.Payments.MaxAttempts},
		PollInterval: cfg.Payments.PollInterval,
		PollTimeout:  cfg.Payments.PollTimeout,
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("build payment service: %w", err), a.Close())
	}

	a.bridge = notifications.NewLogBridge(logg, 0)
	a.bridge.Attach(a.service)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	clientID := a.cfg.App.ClientID
	ctx = a.logg.WithFields(ctx, map[string]any{"driver": a.cfg.Store.NormalizedDriver(), "client_id": clientID})

	switch a.cfg.Store.NormalizedDriver() {
	case config.StoreDriverMemory:
		a.logg.Warn(ctx, "memory store selected; pending intents will not survive a restart")
		a.store = pending.NewMemoryStore()
		return nil

	case config.StoreDriverRedis:
		client, err := redis.New(ctx, a.cfg.Redis, a.logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		a.closers = append(a.closers, client)
		store, err := pending.NewRedisStore(client, clientID, a.cfg.Store.LockTTL)
		if err != nil {
			return err
		}
		a.store = store
		return nil

	default:
		client, err := db.New(ctx, a.cfg.Store, a.cfg.DB, a.logg)
		if err != nil {
			return fmt.Errorf("bootstrap database: %w", err)
		}
		a.closers = append(a.closers, client)
		if err := migrate.MaybeRun(ctx, a.cfg, a.logg, client); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		store, err := pending.NewSQLStore(client.DB(), clientID)
		if err != nil {
			return err
		}
		a.store = store
		return nil
	}
}

// start runs the startup reconciliation. A failed status check is logged and
// left for a later reconcile; the session stays usable.
func (a *app) start(ctx context.Context) payments.Result {
	result, err := a.service.Start(ctx)
	ctx = a.logg.WithField(ctx, "outcome", result.Outcome)
	if err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "startup reconciliation did not resolve the pending intent")
		return result
	}
	a.logg.Info(ctx, "startup reconciliation finished")
	return result
}

// Close stops the session and releases store connections.
func (a *app) Close() error {
	if a.service != nil {
		a.service.Close()
	}
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	a.closers = nil
	return err
}
