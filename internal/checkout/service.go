package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/introspect-labs/introspect-backend/internal/plans"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
)

// SessionCreator is the subset of the Stripe checkout API the service needs.
type SessionCreator interface {
	New(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type ServiceParams struct {
	Registry   *plans.Registry
	Sessions   SessionCreator
	SuccessURL string
	CancelURL  string
}

// Service starts hosted checkout sessions for paid tiers. The account id is
// stamped into both the session metadata and the subscription metadata, which
// is what lets webhook events find their way back to the account later.
type Service struct {
	registry   *plans.Registry
	sessions   SessionCreator
	successURL string
	cancelURL  string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan registry required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session creator required")
	}
	if params.SuccessURL == "" || params.CancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout redirect urls required")
	}
	return &Service{
		registry:   params.Registry,
		sessions:   params.Sessions,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
	}, nil
}

// CreateSession returns the hosted checkout URL for upgrading to the given
// tier.
func (s *Service) CreateSession(ctx context.Context, accountID uuid.UUID, tier enums.PlanTier) (string, error) {
	if accountID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "account identity required")
	}
	priceID, ok := s.registry.PriceForTier(tier)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "tier has no checkout price").
			WithDetails(map[string]any{"tier": tier.String()})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"account_id": accountID.String()},
		},
		ClientReferenceID: stripe.String(accountID.String()),
	}
	params.AddMetadata("account_id", accountID.String())

	session, err := s.sessions.New(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if session == nil || session.URL == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "checkout session missing redirect url")
	}
	return session.URL, nil
}
