package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/introspect-labs/introspect-backend/api/controllers"
	billingcontrollers "github.com/introspect-labs/introspect-backend/api/controllers/billing"
	webhookcontrollers "github.com/introspect-labs/introspect-backend/api/controllers/webhooks"
	"github.com/introspect-labs/introspect-backend/api/middleware"
	checkoutsvc "github.com/introspect-labs/introspect-backend/internal/checkout"
	"github.com/introspect-labs/introspect-backend/internal/entitlements"
	"github.com/introspect-labs/introspect-backend/internal/plans"
	stripewebhook "github.com/introspect-labs/introspect-backend/internal/webhooks/stripe"
	"github.com/introspect-labs/introspect-backend/pkg/config"
	"github.com/introspect-labs/introspect-backend/pkg/db"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
	"github.com/introspect-labs/introspect-backend/pkg/metrics"
	"github.com/introspect-labs/introspect-backend/pkg/redis"
	pkgstripe "github.com/introspect-labs/introspect-backend/pkg/stripe"
)

type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          redis.Pinger
	Gate           *entitlements.Service
	Registry       *plans.Registry
	BillingMetrics *metrics.BillingMetrics
	Gatherer       prometheus.Gatherer
	Checkout       *checkoutsvc.Service
	Analyzer       controllers.EntryAnalyzer
	StripeClient   *pkgstripe.Client
	WebhookService *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Redis, logg))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.WebhookService, p.StripeClient, p.WebhookGuard, logg))
	})

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Get("/plans", billingcontrollers.ListPlans())

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/checkout", billingcontrollers.CreateCheckout(p.Checkout, logg))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Entitlement(p.Gate, logg),
		)

		r.Get("/api/v1/me/entitlements", controllers.MyEntitlements(p.Gate, p.Registry, logg))

		r.With(middleware.RequireCapability(p.Gate, p.Registry, plans.CapabilityAIAnalysis, p.BillingMetrics, logg)).
			Post("/api/v1/entries/analyze", controllers.AnalyzeEntry(p.Analyzer, logg))
	})

	return r
}
