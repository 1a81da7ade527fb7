package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/introspect-labs/introspect-backend/pkg/enums"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "introspect"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Billing      BillingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.Billing.TierByPrice(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"INTROSPECT_APP_ENV" required:"true"`
	Port         string `envconfig:"INTROSPECT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"INTROSPECT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INTROSPECT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"INTROSPECT_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"INTROSPECT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INTROSPECT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INTROSPECT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INTROSPECT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INTROSPECT_REDIS_URL"`
	Address      string        `envconfig:"INTROSPECT_REDIS_ADDR"`
	Password     string        `envconfig:"INTROSPECT_REDIS_PASSWORD"`
	DB           int           `envconfig:"INTROSPECT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INTROSPECT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INTROSPECT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INTROSPECT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INTROSPECT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INTROSPECT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"INTROSPECT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"INTROSPECT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"INTROSPECT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"INTROSPECT_STRIPE_API_KEY"`
	Secret string `envconfig:"INTROSPECT_STRIPE_SECRET"`
	Env    string `envconfig:"INTROSPECT_STRIPE_ENV" default:"test"`

	CheckoutSuccessURL string `envconfig:"INTROSPECT_STRIPE_CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `envconfig:"INTROSPECT_STRIPE_CHECKOUT_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// BillingConfig carries the deploy-time price-to-tier mapping. The mapping is
// static for the lifetime of the process; changing it means redeploying.
type BillingConfig struct {
	// PriceTierMap maps provider price ids to tier names, e.g.
	// "price_123:plus,price_456:premium".
	PriceTierMap map[string]string `envconfig:"INTROSPECT_STRIPE_PRICE_TIER_MAP"`
}

// TierByPrice validates and converts the configured mapping into typed tiers.
func (b BillingConfig) TierByPrice() (map[string]enums.PlanTier, error) {
	out := make(map[string]enums.PlanTier, len(b.PriceTierMap))
	for priceID, rawTier := range b.PriceTierMap {
		priceID = strings.TrimSpace(priceID)
		if priceID == "" {
			return nil, fmt.Errorf("price tier map contains an empty price id")
		}
		tier, err := enums.ParsePlanTier(strings.TrimSpace(rawTier))
		if err != nil {
			return nil, fmt.Errorf("price tier map entry %q: %w", priceID, err)
		}
		out[priceID] = tier
	}
	return out, nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"INTROSPECT_FEATURE_AUTO_MIGRATE" default:"false"`
}
