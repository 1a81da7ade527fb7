package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/introspect-labs/introspect-backend/pkg/stripe"
)

type sessionClientWrapper struct{}

// NewSessionClient wraps the Stripe checkout session API so the service can
// be tested against a fake.
func NewSessionClient(api *pkgstripe.Client) SessionCreator {
	if api == nil {
		return nil
	}
	return &sessionClientWrapper{}
}

func (w *sessionClientWrapper) New(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
