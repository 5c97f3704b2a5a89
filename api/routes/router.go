package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Dependencies are the collaborators the HTTP surface is built from.
// IdempotencyStore and Gatherer are optional.
type Dependencies struct {
	Config           *config.Config
	Logger           *logger.Logger
	Checkout         checkout.Service
	Orders           orders.Service
	IdempotencyStore redis.IdempotencyStore
	Gatherer         prometheus.Gatherer
	// Ready lists the dependencies probed by /health/ready.
	Ready map[string]controllers.Pinger
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idempotent := middleware.Idempotency(deps.IdempotencyStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(deps.Orders, cfg.Webhooks.PaymentSecret, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.With(idempotent).Post("/", ordercontrollers.Create(deps.Checkout, logg))
		r.Get("/", ordercontrollers.List(deps.Orders, logg))
		r.Get("/lookup/{orderNumber}", ordercontrollers.Lookup(deps.Orders, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		r.Get("/{orderId}/events", ordercontrollers.Events(deps.Orders, logg))
		r.With(idempotent).Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
	})

	r.Route("/api/v1/admin/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, string(enums.RoleAdmin)))

		r.With(idempotent).Post("/{orderId}/status", ordercontrollers.AdminUpdateStatus(deps.Orders, logg))
	})

	return r
}
