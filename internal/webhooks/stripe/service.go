package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/introspect-labs/introspect-backend/internal/accounts"
	"github.com/introspect-labs/introspect-backend/internal/identity"
	"github.com/introspect-labs/introspect-backend/internal/plans"
	"github.com/introspect-labs/introspect-backend/pkg/db/models"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
	"github.com/introspect-labs/introspect-backend/pkg/metrics"
)

type subscriptionFetcher interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type accountLinker interface {
	Resolve(ctx context.Context, metadata map[string]string, customerID string) (uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Accounts          accounts.Repository
	Linker            accountLinker
	Registry          *plans.Registry
	StripeClient      subscriptionFetcher
	TransactionRunner txRunner
	Metrics           *metrics.BillingMetrics
	Logger            *logger.Logger
}

// Service reconciles provider webhook events into the local subscription
// mirror. Every lifecycle event carries the complete desired state, so the
// sync path overwrites rather than merges; applying the same event twice, or
// applying events out of order within the same state, converges on the same
// row.
type Service struct {
	accounts accounts.Repository
	linker   accountLinker
	registry *plans.Registry
	stripe   subscriptionFetcher
	txRunner txRunner
	metrics  *metrics.BillingMetrics
	logger   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	}
	if params.Linker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity linker required")
	}
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan registry required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		accounts: params.Accounts,
		linker:   params.Linker,
		registry: params.Registry,
		stripe:   params.StripeClient,
		txRunner: params.TransactionRunner,
		metrics:  params.Metrics,
		logger:   params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	ctx = s.logger.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": eventType,
	})

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			s.metrics.ObserveEvent(eventType, metrics.OutcomeRejected)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, eventType, &stripeSub, nil)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			s.metrics.ObserveEvent(eventType, metrics.OutcomeRejected)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.cancelSubscription(ctx, eventType, &stripeSub)

	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.metrics.ObserveEvent(eventType, metrics.OutcomeRejected)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		if session.Subscription == nil || session.Subscription.ID == "" {
			// One-time payment sessions carry no subscription.
			s.logger.Info(ctx, "checkout session without subscription, nothing to sync")
			s.metrics.ObserveEvent(eventType, metrics.OutcomeNoop)
			return nil
		}
		stripeSub, err := s.stripe.Get(ctx, session.Subscription.ID, &stripe.SubscriptionParams{})
		if err != nil {
			s.metrics.ObserveEvent(eventType, metrics.OutcomeFailed)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.syncSubscription(ctx, eventType, stripeSub, session.Metadata)

	case stripe.EventTypeInvoicePaymentFailed:
		// Observability only. Stripe follows up with a subscription.updated
		// event when a failed payment actually changes the subscription state.
		s.logger.Warn(ctx, "invoice payment failed")
		s.metrics.ObserveEvent(eventType, metrics.OutcomeNoop)
		return nil

	default:
		s.metrics.ObserveEvent(eventType, metrics.OutcomeNoop)
		return nil
	}
}

// syncSubscription overwrites the mirrored record for the owning account with
// the state carried by the payload. Payloads that cannot be mapped to a plan
// or linked to an account are skipped without a write: returning an error
// would make Stripe retry a payload that will never become applicable, and
// writing a guess would grant entitlements nobody paid for.
func (s *Service) syncSubscription(ctx context.Context, eventType string, stripeSub *stripe.Subscription, fallbackMetadata map[string]string) error {
	if stripeSub == nil || stripeSub.ID == "" {
		s.metrics.ObserveEvent(eventType, metrics.OutcomeRejected)
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload required")
	}
	ctx = s.logger.WithField(ctx, "stripe_subscription_id", stripeSub.ID)

	priceID := determinePriceID(stripeSub)
	tier, ok := s.registry.TierForPrice(priceID)
	if !ok {
		ctx = s.logger.WithField(ctx, "price_id", priceID)
		s.logger.Warn(ctx, "subscription price not mapped to a plan, skipping event")
		s.metrics.ObserveEvent(eventType, metrics.OutcomeSkipped)
		return nil
	}

	accountID, err := s.resolveAccount(ctx, stripeSub, fallbackMetadata)
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeValidation {
			s.logger.Warn(ctx, "subscription not linked to an account, skipping event")
			s.metrics.ObserveEvent(eventType, metrics.OutcomeSkipped)
			return nil
		}
		s.metrics.ObserveEvent(eventType, metrics.OutcomeFailed)
		return err
	}
	ctx = s.logger.WithAccountID(ctx, accountID.String())

	record := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               accountID,
		Plan:                 tier,
		Status:               mapStatus(stripeSub.Status),
		StripeSubscriptionID: &stripeSub.ID,
	}
	if stripeSub.Customer != nil && stripeSub.Customer.ID != "" {
		record.StripeCustomerID = &stripeSub.Customer.ID
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.accounts.WithTx(tx).UpsertSubscription(ctx, record)
	})
	if err != nil {
		s.metrics.ObserveEvent(eventType, metrics.OutcomeFailed)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription state")
	}

	s.logger.Info(ctx, "subscription state applied")
	s.metrics.ObserveEvent(eventType, metrics.OutcomeApplied)
	return nil
}

func (s *Service) cancelSubscription(ctx context.Context, eventType string, stripeSub *stripe.Subscription) error {
	if stripeSub == nil || stripeSub.ID == "" {
		s.metrics.ObserveEvent(eventType, metrics.OutcomeRejected)
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload required")
	}
	ctx = s.logger.WithField(ctx, "stripe_subscription_id", stripeSub.ID)

	var matched bool
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		matched, txErr = s.accounts.WithTx(tx).CancelSubscriptionByStripeID(ctx, stripeSub.ID)
		return txErr
	})
	if err != nil {
		s.metrics.ObserveEvent(eventType, metrics.OutcomeFailed)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription state")
	}
	if !matched {
		// Deletion can arrive before the create it belongs to, or for a
		// subscription that was never mirrored. Either way there is nothing
		// to cancel.
		s.logger.Info(ctx, "deletion for unknown subscription, nothing to cancel")
		s.metrics.ObserveEvent(eventType, metrics.OutcomeNoop)
		return nil
	}

	s.logger.Info(ctx, "subscription cancelled")
	s.metrics.ObserveEvent(eventType, metrics.OutcomeApplied)
	return nil
}

// resolveAccount tries the payload's own metadata first, then metadata from
// the surrounding checkout session, then the customer record.
func (s *Service) resolveAccount(ctx context.Context, stripeSub *stripe.Subscription, fallbackMetadata map[string]string) (uuid.UUID, error) {
	if id, err := identity.AccountIDFromMetadata(stripeSub.Metadata); err == nil {
		return id, nil
	}
	if len(fallbackMetadata) > 0 {
		if id, err := identity.AccountIDFromMetadata(fallbackMetadata); err == nil {
			return id, nil
		}
	}
	customerID := ""
	if stripeSub.Customer != nil {
		customerID = stripeSub.Customer.ID
	}
	return s.linker.Resolve(ctx, stripeSub.Metadata, customerID)
}

func mapStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	default:
		return enums.SubscriptionStatusInactive
	}
}

func determinePriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}
