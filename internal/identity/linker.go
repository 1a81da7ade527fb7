package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
)

// metadataKey is the key checkout attaches to every Stripe object it creates.
// Webhook payloads echo it back, which is how provider objects map onto
// internal accounts.
const metadataKey = "account_id"

// AccountIDFromMetadata extracts the internal account id attached to a Stripe
// object's metadata.
func AccountIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "metadata is required")
	}
	raw, ok := metadata[metadataKey]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "account_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account_id metadata")
	}
	return id, nil
}

// CustomerFetcher is the subset of the Stripe customer API the linker needs
// for its fallback lookup.
type CustomerFetcher interface {
	Get(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

// Linker resolves which internal account a webhook payload belongs to. The
// primary source is the object's own metadata; when an event arrives without
// it (older subscriptions, dashboard-created objects) the linker falls back
// to the customer record, whose metadata checkout also stamps.
type Linker struct {
	customers CustomerFetcher
}

// NewLinker builds a linker. The customer fetcher may be nil, in which case
// only metadata resolution is available.
func NewLinker(customers CustomerFetcher) *Linker {
	return &Linker{customers: customers}
}

// Resolve returns the account id for a payload given its metadata and the
// customer id it references. Resolution failures are validation errors; the
// caller decides whether to skip or reject the event.
func (l *Linker) Resolve(ctx context.Context, metadata map[string]string, customerID string) (uuid.UUID, error) {
	id, err := AccountIDFromMetadata(metadata)
	if err == nil {
		return id, nil
	}

	if l.customers == nil || strings.TrimSpace(customerID) == "" {
		return uuid.Nil, err
	}

	customer, fetchErr := l.customers.Get(ctx, customerID, &stripe.CustomerParams{})
	if fetchErr != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fetchErr, "fetch stripe customer")
	}
	if customer == nil {
		return uuid.Nil, err
	}
	return AccountIDFromMetadata(customer.Metadata)
}
