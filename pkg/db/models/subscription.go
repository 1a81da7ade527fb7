package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/introspect-labs/introspect-backend/pkg/enums"
)

// Subscription mirrors the billing provider's subscription state for one
// account. At most one row exists per user; cancellation flips the status and
// resets the plan, it never deletes the row. The plan column is only
// authoritative while status is active; it is retained on cancelled and
// inactive rows for audit.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Plan                 enums.PlanTier           `gorm:"column:plan;type:plan_tier;not null;default:'free'"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'inactive'"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
