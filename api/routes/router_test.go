package routes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/introspect-labs/introspect-backend/internal/accounts"
	checkoutsvc "github.com/introspect-labs/introspect-backend/internal/checkout"
	"github.com/introspect-labs/introspect-backend/internal/entitlements"
	"github.com/introspect-labs/introspect-backend/internal/entries"
	"github.com/introspect-labs/introspect-backend/internal/identity"
	"github.com/introspect-labs/introspect-backend/internal/plans"
	stripewebhook "github.com/introspect-labs/introspect-backend/internal/webhooks/stripe"
	pkgauth "github.com/introspect-labs/introspect-backend/pkg/auth"
	"github.com/introspect-labs/introspect-backend/pkg/config"
	"github.com/introspect-labs/introspect-backend/pkg/db/models"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
	"github.com/introspect-labs/introspect-backend/pkg/metrics"
	pkgstripe "github.com/introspect-labs/introspect-backend/pkg/stripe"
)

const webhookSecret = "whsec_router_test"

type routerFixture struct {
	handler http.Handler
	db      *gorm.DB
	repo    accounts.Repository
	cfg     *config.Config
}

type passthroughTx struct {
	db *gorm.DB
}

func (p passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(p.db)
}

type fakeSubscriptionFetcher struct{}

func (f *fakeSubscriptionFetcher) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return nil, fmt.Errorf("subscription %s not found", id)
}

type fakeSessions struct{}

func (f *fakeSessions) New(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{URL: "https://checkout.stripe.com/c/pay/cs_router"}, nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("introspect:idempotency:%s:%s", scope, id)
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func setupRouter(t *testing.T) *routerFixture {
	t.Helper()

	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.Exec(`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  is_admin INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, gdb.Exec(`
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  plan TEXT NOT NULL DEFAULT 'free',
  status TEXT NOT NULL DEFAULT 'inactive',
  stripe_customer_id TEXT,
  stripe_subscription_id TEXT UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)

	cfg := &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "introspect-test",
			ExpirationMinutes: 10,
		},
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	registry, err := plans.NewRegistry(map[string]enums.PlanTier{
		"price_plus":    enums.PlanTierPlus,
		"price_premium": enums.PlanTierPremium,
	})
	require.NoError(t, err)

	repo := accounts.NewRepository(gdb)

	gate, err := entitlements.NewService(entitlements.ServiceParams{Repo: repo})
	require.NoError(t, err)

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Accounts:          repo,
		Linker:            identity.NewLinker(nil),
		Registry:          registry,
		StripeClient:      &fakeSubscriptionFetcher{},
		TransactionRunner: passthroughTx{db: gdb},
		Logger:            logg,
	})
	require.NoError(t, err)

	guard, err := stripewebhook.NewIdempotencyGuard(&memoryStore{data: map[string]string{}}, time.Minute, "stripe-webhook")
	require.NoError(t, err)

	stripeClient, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_router",
		Secret: webhookSecret,
		Env:    "test",
	}, nil)
	require.NoError(t, err)

	checkoutSvc, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Registry:   registry,
		Sessions:   &fakeSessions{},
		SuccessURL: "https://app.example.com/billing/success",
		CancelURL:  "https://app.example.com/billing/cancel",
	})
	require.NoError(t, err)

	promRegistry := prometheus.NewRegistry()

	handler := NewRouter(RouterParams{
		Config:         cfg,
		Logger:         logg,
		Gate:           gate,
		Registry:       registry,
		BillingMetrics: metrics.NewBillingMetrics(promRegistry),
		Gatherer:       promRegistry,
		Checkout:       checkoutSvc,
		Analyzer:       entries.NewAnalyzer(),
		StripeClient:   stripeClient,
		WebhookService: webhookSvc,
		WebhookGuard:   guard,
	})

	return &routerFixture{handler: handler, db: gdb, repo: repo, cfg: cfg}
}

func (fx *routerFixture) seedUser(t *testing.T, isAdmin bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:      uuid.New(),
		Email:   uuid.NewString() + "@example.com",
		IsAdmin: isAdmin,
	}
	require.NoError(t, fx.db.Create(user).Error)
	return user
}

func (fx *routerFixture) tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(fx.cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)
	return token
}

func (fx *routerFixture) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

func TestPlansEndpointIsPublic(t *testing.T) {
	fx := setupRouter(t)

	rec := fx.do(t, http.MethodGet, "/api/v1/billing/plans", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "premium")
}

func TestEntitlementsRequireAuth(t *testing.T) {
	fx := setupRouter(t)

	rec := fx.do(t, http.MethodGet, "/api/v1/me/entitlements", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEntitlementsForActiveSubscriber(t *testing.T) {
	fx := setupRouter(t)
	user := fx.seedUser(t, false)
	sub := "sub_router_1"
	require.NoError(t, fx.repo.UpsertSubscription(context.Background(), &models.Subscription{
		ID:                   uuid.New(),
		UserID:               user.ID,
		Plan:                 enums.PlanTierPremium,
		Status:               enums.SubscriptionStatusActive,
		StripeSubscriptionID: &sub,
	}))

	rec := fx.do(t, http.MethodGet, "/api/v1/me/entitlements", fx.tokenFor(t, user.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data struct {
			Tier         string   `json:"tier"`
			Capabilities []string `json:"capabilities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "premium", payload.Data.Tier)
	require.Contains(t, payload.Data.Capabilities, "ai_analysis")
}

func TestAnalyzeDeniedForFreeUser(t *testing.T) {
	fx := setupRouter(t)
	user := fx.seedUser(t, false)

	rec := fx.do(t, http.MethodPost, "/api/v1/entries/analyze", fx.tokenFor(t, user.ID), `{"text":"today was calm"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "required_tier")
}

func TestAnalyzeAllowedForAdmin(t *testing.T) {
	fx := setupRouter(t)
	admin := fx.seedUser(t, true)

	rec := fx.do(t, http.MethodPost, "/api/v1/entries/analyze", fx.tokenFor(t, admin.ID), `{"text":"I feel grateful and calm today"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "summary")
}

func TestCheckoutReturnsRedirectURL(t *testing.T) {
	fx := setupRouter(t)
	user := fx.seedUser(t, false)

	rec := fx.do(t, http.MethodPost, "/api/v1/billing/checkout", fx.tokenFor(t, user.ID), `{"tier":"plus"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://checkout.stripe.com/c/pay/cs_router")
}

// A signed lifecycle event flips the gate: the same user who was denied
// before the webhook gets through afterwards.
func TestWebhookUpgradeUnlocksGatedRoute(t *testing.T) {
	fx := setupRouter(t)
	user := fx.seedUser(t, false)
	token := fx.tokenFor(t, user.ID)

	denied := fx.do(t, http.MethodPost, "/api/v1/entries/analyze", token, `{"text":"hello"}`)
	require.Equal(t, http.StatusForbidden, denied.Code)

	payload := signedSubscriptionEvent(t, user.ID, "price_premium")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signatureHeader(payload, webhookSecret, time.Now().Unix()))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	allowed := fx.do(t, http.MethodPost, "/api/v1/entries/analyze", token, `{"text":"I feel grateful"}`)
	require.Equal(t, http.StatusOK, allowed.Code, allowed.Body.String())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	fx := setupRouter(t)

	payload := signedSubscriptionEvent(t, uuid.New(), "price_plus")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, fx.db.Model(&models.Subscription{}).Count(&count).Error)
	require.Equal(t, int64(0), count, "rejected event must not write subscription state")
}

func signedSubscriptionEvent(t *testing.T, accountID uuid.UUID, priceID string) []byte {
	t.Helper()
	sub := &stripe.Subscription{
		ID:       "sub_" + uuid.NewString(),
		Status:   stripe.SubscriptionStatusActive,
		Metadata: map[string]string{"account_id": accountID.String()},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: priceID}}},
		},
	}
	rawSub, err := json.Marshal(sub)
	require.NoError(t, err)

	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCustomerSubscriptionCreated,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: rawSub},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func signatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
