package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/momopay/api/controllers"
	"github.com/angelmondragon/momopay/api/middleware"
	"github.com/angelmondragon/momopay/pkg/config"
	"github.com/angelmondragon/momopay/pkg/logger"
)

// Deps are the collaborators the agent API serves.
type Deps struct {
	Payments controllers.PaymentService
	Store    controllers.Pinger
	Notices  controllers.NoticeFeed
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Server.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Store))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/payment", func(r chi.Router) {
		r.Get("/state", controllers.PaymentState(deps.Payments))
		r.Get("/notices", controllers.PaymentNotices(deps.Notices))
		r.Post("/submit", controllers.PaymentSubmit(deps.Payments, logg))
		r.Post("/reconcile", controllers.PaymentReconcile(deps.Payments, logg))
		r.Post("/reset", controllers.PaymentReset(deps.Payments, logg))
		r.Get("/pending", controllers.PaymentPending(deps.Payments, logg))
		r.Get("/transactions", controllers.PaymentTransactions(deps.Payments, logg))
		r.Get("/details/{paymentId}", controllers.PaymentDetails(deps.Payments, logg))
	})

	return r
}
