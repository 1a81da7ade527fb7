package config

import (
	"testing"

	"github.com/introspect-labs/introspect-backend/pkg/enums"
)

func TestTierByPriceParsesConfiguredMapping(t *testing.T) {
	cfg := BillingConfig{
		PriceTierMap: map[string]string{
			"price_plus":    "plus",
			"price_premium": "premium",
		},
	}

	mapping, err := cfg.TierByPrice()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mapping["price_plus"] != enums.PlanTierPlus {
		t.Fatalf("expected plus for price_plus, got %s", mapping["price_plus"])
	}
	if mapping["price_premium"] != enums.PlanTierPremium {
		t.Fatalf("expected premium for price_premium, got %s", mapping["price_premium"])
	}
}

func TestTierByPriceRejectsUnknownTier(t *testing.T) {
	cfg := BillingConfig{
		PriceTierMap: map[string]string{"price_x": "platinum"},
	}
	if _, err := cfg.TierByPrice(); err == nil {
		t.Fatalf("expected error for unknown tier name")
	}
}

func TestStripeEnvironmentNormalization(t *testing.T) {
	if (StripeConfig{Env: " LIVE "}).Environment() != "live" {
		t.Fatalf("expected normalized live env")
	}
	if (StripeConfig{}).Environment() != "test" {
		t.Fatalf("expected test default")
	}
}
