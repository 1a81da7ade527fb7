package plans

import (
	"github.com/shopspring/decimal"

	"github.com/introspect-labs/introspect-backend/pkg/enums"
)

// Plan describes one catalog entry shown on the upgrade page.
type Plan struct {
	Tier         enums.PlanTier  `json:"tier"`
	Name         string          `json:"name"`
	PriceMonthly decimal.Decimal `json:"price_monthly"`
	CurrencyCode string          `json:"currency_code"`
	Features     []string        `json:"features"`
}

var catalog = []Plan{
	{
		Tier:         enums.PlanTierFree,
		Name:         "Free",
		PriceMonthly: decimal.Zero,
		CurrencyCode: "USD",
		Features: []string{
			"Unlimited journal entries",
		},
	},
	{
		Tier:         enums.PlanTierPlus,
		Name:         "Plus",
		PriceMonthly: decimal.NewFromFloat(4.99),
		CurrencyCode: "USD",
		Features: []string{
			"Unlimited journal entries",
			"Guided prompt library",
			"Mood trends",
		},
	},
	{
		Tier:         enums.PlanTierPremium,
		Name:         "Premium",
		PriceMonthly: decimal.NewFromFloat(9.99),
		CurrencyCode: "USD",
		Features: []string{
			"Everything in Plus",
			"AI reflection analysis",
			"Entry export",
		},
	},
}

// Catalog returns the static plan catalog ordered from least to most capable.
func Catalog() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}
