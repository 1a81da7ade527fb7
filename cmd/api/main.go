package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/introspect-labs/introspect-backend/api/routes"
	"github.com/introspect-labs/introspect-backend/internal/accounts"
	checkoutsvc "github.com/introspect-labs/introspect-backend/internal/checkout"
	"github.com/introspect-labs/introspect-backend/internal/entitlements"
	"github.com/introspect-labs/introspect-backend/internal/entries"
	"github.com/introspect-labs/introspect-backend/internal/identity"
	"github.com/introspect-labs/introspect-backend/internal/plans"
	stripewebhook "github.com/introspect-labs/introspect-backend/internal/webhooks/stripe"
	"github.com/introspect-labs/introspect-backend/pkg/config"
	"github.com/introspect-labs/introspect-backend/pkg/db"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
	"github.com/introspect-labs/introspect-backend/pkg/metrics"
	"github.com/introspect-labs/introspect-backend/pkg/migrate"
	"github.com/introspect-labs/introspect-backend/pkg/redis"
	pkgstripe "github.com/introspect-labs/introspect-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	tierByPrice, err := cfg.Billing.TierByPrice()
	if err != nil {
		logg.Error(context.Background(), "invalid price tier mapping", err)
		os.Exit(1)
	}
	registry, err := plans.NewRegistry(tierByPrice)
	if err != nil {
		logg.Error(context.Background(), "failed to build plan registry", err)
		os.Exit(1)
	}

	accountsRepo := accounts.NewRepository(dbClient.DB())

	gate, err := entitlements.NewService(entitlements.ServiceParams{Repo: accountsRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create authorization gate", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(promRegistry)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Accounts:          accountsRepo,
		Linker:            identity.NewLinker(stripewebhook.NewCustomerClient(stripeClient)),
		Registry:          registry,
		StripeClient:      stripewebhook.NewSubscriptionClient(stripeClient),
		TransactionRunner: dbClient,
		Metrics:           billingMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Registry:   registry,
		Sessions:   checkoutsvc.NewSessionClient(stripeClient),
		SuccessURL: cfg.Stripe.CheckoutSuccessURL,
		CancelURL:  cfg.Stripe.CheckoutCancelURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Gate:           gate,
			Registry:       registry,
			BillingMetrics: billingMetrics,
			Gatherer:       promRegistry,
			Checkout:       checkoutService,
			Analyzer:       entries.NewAnalyzer(),
			StripeClient:   stripeClient,
			WebhookService: webhookService,
			WebhookGuard:   webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
