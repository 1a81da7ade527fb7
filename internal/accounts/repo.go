package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/introspect-labs/introspect-backend/pkg/db/models"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
)

// Repository is the account directory: user reads for the gate, subscription
// reads and writes for the reconciler.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, subscription *models.Subscription) error
	CancelSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an account directory bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	err := r.db.WithContext(ctx).First(&sub, "stripe_subscription_id = ?", stripeSubscriptionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription writes the full mirrored state in one statement keyed by
// user id. Every column the provider owns is overwritten, which is what makes
// replayed and duplicated events safe to apply.
func (r *repository) UpsertSubscription(ctx context.Context, subscription *models.Subscription) error {
	subscription.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan", "status", "stripe_customer_id", "stripe_subscription_id", "updated_at",
			}),
		}).
		Create(subscription).Error
}

// CancelSubscriptionByStripeID marks the matching record cancelled and resets
// the plan to the default tier. It reports whether a record matched; a missing
// record is the caller's no-op case, not an error.
func (r *repository) CancelSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (bool, error) {
	if stripeSubscriptionID == "" {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(map[string]any{
			"plan":       enums.LowestPlanTier(),
			"status":     enums.SubscriptionStatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
