package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/momopay/api/responses"
	"github.com/angelmondragon/momopay/pkg/config"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Momopay-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the pending store so a lost database or redis shows up
// before a payer tries to pay.
func HealthReady(cfg *config.Config, logg *logger.Logger, store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Momopay-Env", cfg.App.Env)
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pending store unavailable").
					WithDetails(map[string]any{"driver": cfg.Store.NormalizedDriver()}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready", "store": cfg.Store.NormalizedDriver()})
	}
}
