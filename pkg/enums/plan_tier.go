package enums

import "fmt"

// PlanTier is the ordered entitlement level an account is subscribed to.
type PlanTier string

const (
	PlanTierFree    PlanTier = "free"
	PlanTierPlus    PlanTier = "plus"
	PlanTierPremium PlanTier = "premium"
)

// orderedPlanTiers holds every tier from least to most capable. The rank of a
// tier is its index here.
var orderedPlanTiers = []PlanTier{
	PlanTierFree,
	PlanTierPlus,
	PlanTierPremium,
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanTier.
func (p PlanTier) IsValid() bool {
	for _, candidate := range orderedPlanTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// Rank returns the position of the tier in the capability order. Higher means
// more capable. Unknown tiers rank below free so a corrupted value never
// grants access.
func (p PlanTier) Rank() int {
	for i, candidate := range orderedPlanTiers {
		if candidate == p {
			return i
		}
	}
	return -1
}

// AtLeast reports whether the tier satisfies the required tier.
func (p PlanTier) AtLeast(required PlanTier) bool {
	return p.Rank() >= required.Rank()
}

// LowestPlanTier returns the default tier for accounts without an active
// subscription.
func LowestPlanTier() PlanTier {
	return orderedPlanTiers[0]
}

// HighestPlanTier returns the most capable defined tier.
func HighestPlanTier() PlanTier {
	return orderedPlanTiers[len(orderedPlanTiers)-1]
}

// PlanTiers returns every defined tier from least to most capable.
func PlanTiers() []PlanTier {
	tiers := make([]PlanTier, len(orderedPlanTiers))
	copy(tiers, orderedPlanTiers)
	return tiers
}

// ParsePlanTier converts raw input into a PlanTier.
func ParsePlanTier(value string) (PlanTier, error) {
	for _, candidate := range orderedPlanTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}
