package plans

import (
	"fmt"

	"github.com/introspect-labs/introspect-backend/pkg/enums"
)

// Capability is a feature key gated by plan tier.
type Capability string

const (
	CapabilityJournalEntries Capability = "journal_entries"
	CapabilityPromptLibrary  Capability = "prompt_library"
	CapabilityMoodTrends     Capability = "mood_trends"
	CapabilityAIAnalysis     Capability = "ai_analysis"
	CapabilityExport         Capability = "export"
)

// requiredTierByCapability enumerates every gated capability exactly once.
// Capabilities missing from this table resolve to the highest tier so an
// unmapped key can never grant access by accident.
var requiredTierByCapability = map[Capability]enums.PlanTier{
	CapabilityJournalEntries: enums.PlanTierFree,
	CapabilityPromptLibrary:  enums.PlanTierPlus,
	CapabilityMoodTrends:     enums.PlanTierPlus,
	CapabilityAIAnalysis:     enums.PlanTierPremium,
	CapabilityExport:         enums.PlanTierPremium,
}

// Registry answers tier ordering, capability, and price-mapping questions.
// It is immutable after construction; the price mapping comes from deploy-time
// configuration.
type Registry struct {
	tierByPrice map[string]enums.PlanTier
}

// NewRegistry builds a registry from the configured price-to-tier mapping.
func NewRegistry(tierByPrice map[string]enums.PlanTier) (*Registry, error) {
	for priceID, tier := range tierByPrice {
		if !tier.IsValid() {
			return nil, fmt.Errorf("price %q maps to unknown tier %q", priceID, tier)
		}
	}
	copied := make(map[string]enums.PlanTier, len(tierByPrice))
	for k, v := range tierByPrice {
		copied[k] = v
	}
	return &Registry{tierByPrice: copied}, nil
}

// Rank returns the total-order rank of a tier; higher means more capable.
func (r *Registry) Rank(tier enums.PlanTier) int {
	return tier.Rank()
}

// Capabilities returns every capability enabled at the given tier.
func (r *Registry) Capabilities(tier enums.PlanTier) []Capability {
	var caps []Capability
	for capability, required := range requiredTierByCapability {
		if tier.AtLeast(required) {
			caps = append(caps, capability)
		}
	}
	return caps
}

// RequiredTierFor returns the tier needed to use a capability. Unmapped
// capabilities require the highest tier (fail closed).
func (r *Registry) RequiredTierFor(capability Capability) enums.PlanTier {
	if tier, ok := requiredTierByCapability[capability]; ok {
		return tier
	}
	return enums.HighestPlanTier()
}

// TierForPrice resolves a provider price id to a tier. The boolean reports
// whether the price is configured; callers must not guess a tier when it is
// not.
func (r *Registry) TierForPrice(priceID string) (enums.PlanTier, bool) {
	tier, ok := r.tierByPrice[priceID]
	return tier, ok
}

// PriceForTier returns the configured provider price id for a paid tier.
func (r *Registry) PriceForTier(tier enums.PlanTier) (string, bool) {
	for priceID, mapped := range r.tierByPrice {
		if mapped == tier {
			return priceID, true
		}
	}
	return "", false
}
