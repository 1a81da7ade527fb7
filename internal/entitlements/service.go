package entitlements

import (
	"context"

	"github.com/google/uuid"

	"github.com/introspect-labs/introspect-backend/internal/accounts"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
)

// Resolution is the effective tier used for every authorization decision in
// one request.
type Resolution struct {
	Tier    enums.PlanTier `json:"tier"`
	IsAdmin bool           `json:"is_admin"`
}

// ServiceParams groups dependencies for the authorization gate.
type ServiceParams struct {
	Repo accounts.Repository
}

// Service is the authorization gate. All plan checks flow through
// ResolveEffectiveTier; there is no path that reads the stored plan without
// first applying the admin override and the status rule.
type Service struct {
	repo accounts.Repository
}

// NewService builds the gate.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	}
	return &Service{repo: params.Repo}, nil
}

// ResolveEffectiveTier computes the tier an account is entitled to right now.
// Admins get the highest tier unconditionally. A missing subscription record,
// or one whose status is not active, resolves to the lowest tier regardless
// of the stored plan value. Storage failures propagate as errors; the caller
// must deny, never default to allow.
func (s *Service) ResolveEffectiveTier(ctx context.Context, accountID uuid.UUID) (Resolution, error) {
	if cached, ok := ResolutionFromContext(ctx); ok {
		return cached, nil
	}

	if accountID == uuid.Nil {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "account identity required")
	}

	user, err := s.repo.FindUserByID(ctx, accountID)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if user == nil {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown account")
	}

	if user.IsAdmin {
		return Resolution{Tier: enums.HighestPlanTier(), IsAdmin: true}, nil
	}

	sub, err := s.repo.FindSubscriptionByUser(ctx, accountID)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription record")
	}
	if sub == nil || sub.Status != enums.SubscriptionStatusActive {
		return Resolution{Tier: enums.LowestPlanTier()}, nil
	}
	return Resolution{Tier: sub.Plan}, nil
}

// Authorize allows the request iff the effective tier ranks at least as high
// as the required tier. A denial always reports the caller's current tier so
// the client can render an upgrade prompt.
func (s *Service) Authorize(ctx context.Context, accountID uuid.UUID, required enums.PlanTier) (Resolution, error) {
	res, err := s.ResolveEffectiveTier(ctx, accountID)
	if err != nil {
		return Resolution{}, err
	}
	if !res.Tier.AtLeast(required) {
		return res, pkgerrors.New(pkgerrors.CodeForbidden, "plan upgrade required").
			WithDetails(map[string]any{
				"current_tier":  res.Tier.String(),
				"required_tier": required.String(),
			})
	}
	return res, nil
}
