package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/subscription"

	"github.com/introspect-labs/introspect-backend/internal/identity"
	pkgstripe "github.com/introspect-labs/introspect-backend/pkg/stripe"
)

type subscriptionClientWrapper struct{}

// NewSubscriptionClient wraps the Stripe subscription API so checkout
// completions can pull the full subscription object.
func NewSubscriptionClient(api *pkgstripe.Client) subscriptionFetcher {
	if api == nil {
		return nil
	}
	return &subscriptionClientWrapper{}
}

func (w *subscriptionClientWrapper) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.Get(id, params)
}

type customerClientWrapper struct{}

// NewCustomerClient wraps the Stripe customer API for the identity fallback
// lookup.
func NewCustomerClient(api *pkgstripe.Client) identity.CustomerFetcher {
	if api == nil {
		return nil
	}
	return &customerClientWrapper{}
}

func (w *customerClientWrapper) Get(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Get(id, params)
}
