package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/staybook-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/staybook-backend/api/controllers/webhooks"
	"github.com/angelmondragon/staybook-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/staybook-backend/internal/checkout"
	stripewebhook "github.com/angelmondragon/staybook-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/staybook-backend/pkg/config"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
	"github.com/angelmondragon/staybook-backend/pkg/redis"
)

// OrdersService is the reconciler surface the HTTP layer needs.
type OrdersService interface {
	controllers.OrderConfirmer
	controllers.OrderLister
}

type signingSecretSource interface {
	SigningSecret() string
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	redisClient redis.IdempotencyStore,
	redisPinger controllers.Pinger,
	gatherer prometheus.Gatherer,
	payoutsService controllers.PayoutsService,
	checkoutService checkoutsvc.Service,
	ordersService OrdersService,
	stripeClient signingSecretSource,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbPinger,
			"redis": redisPinger,
		}))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			// Flat registration keeps the full route pattern visible to the idempotency rules.
			r.Post("/payouts/onboard", controllers.PayoutsOnboard(payoutsService, logg))
			r.Get("/payouts/status", controllers.PayoutsStatus(payoutsService, logg))
			r.Get("/payouts/balance", controllers.PayoutsBalance(payoutsService, logg))
			r.Get("/payouts/settings-link", controllers.PayoutsSettingsLink(payoutsService, logg))

			r.Post("/checkout/sessions", controllers.CheckoutCreateSession(checkoutService, logg))
			r.Post("/checkout/confirm", controllers.CheckoutConfirm(ordersService, logg))

			r.Get("/orders", controllers.OrdersList(ordersService, logg))
		})
	})

	return r
}
