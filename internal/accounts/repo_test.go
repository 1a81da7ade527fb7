package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/introspect-labs/introspect-backend/pkg/db/models"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
)

func setupAccountsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:accounts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  is_admin INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  plan TEXT NOT NULL DEFAULT 'free',
  status TEXT NOT NULL DEFAULT 'inactive',
  stripe_customer_id TEXT,
  stripe_subscription_id TEXT UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(subscriptions).Error)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, isAdmin bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:      uuid.New(),
		Email:   uuid.NewString() + "@example.com",
		IsAdmin: isAdmin,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func strPtr(s string) *string { return &s }

func TestFindUserByIDMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupAccountsTestDB(t))

	user, err := repo.FindUserByID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestUpsertSubscriptionInsertsThenOverwrites(t *testing.T) {
	db := setupAccountsTestDB(t)
	repo := NewRepository(db)
	user := seedUser(t, db, false)
	ctx := context.Background()

	first := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               user.ID,
		Plan:                 enums.PlanTierPlus,
		Status:               enums.SubscriptionStatusActive,
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
	}
	require.NoError(t, repo.UpsertSubscription(ctx, first))

	// Second write for the same user fully overwrites the mirrored state.
	second := &models.Subscription{
		ID:                   uuid.New(),
		UserID:               user.ID,
		Plan:                 enums.PlanTierPremium,
		Status:               enums.SubscriptionStatusInactive,
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
	}
	require.NoError(t, repo.UpsertSubscription(ctx, second))

	stored, err := repo.FindSubscriptionByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, enums.PlanTierPremium, stored.Plan)
	require.Equal(t, enums.SubscriptionStatusInactive, stored.Status)

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Equal(t, int64(1), count, "upsert must not create a second row per account")
}

func TestUpsertSubscriptionIsIdempotent(t *testing.T) {
	db := setupAccountsTestDB(t)
	repo := NewRepository(db)
	user := seedUser(t, db, false)
	ctx := context.Background()

	sub := func() *models.Subscription {
		return &models.Subscription{
			ID:                   uuid.New(),
			UserID:               user.ID,
			Plan:                 enums.PlanTierPremium,
			Status:               enums.SubscriptionStatusActive,
			StripeCustomerID:     strPtr("cus_9"),
			StripeSubscriptionID: strPtr("sub_9"),
		}
	}
	require.NoError(t, repo.UpsertSubscription(ctx, sub()))
	require.NoError(t, repo.UpsertSubscription(ctx, sub()))

	stored, err := repo.FindSubscriptionByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PlanTierPremium, stored.Plan)
	require.Equal(t, enums.SubscriptionStatusActive, stored.Status)
}

func TestCancelSubscriptionByStripeID(t *testing.T) {
	db := setupAccountsTestDB(t)
	repo := NewRepository(db)
	user := seedUser(t, db, false)
	ctx := context.Background()

	require.NoError(t, repo.UpsertSubscription(ctx, &models.Subscription{
		ID:                   uuid.New(),
		UserID:               user.ID,
		Plan:                 enums.PlanTierPremium,
		Status:               enums.SubscriptionStatusActive,
		StripeSubscriptionID: strPtr("sub_cancel"),
	}))

	matched, err := repo.CancelSubscriptionByStripeID(ctx, "sub_cancel")
	require.NoError(t, err)
	require.True(t, matched)

	stored, err := repo.FindSubscriptionByStripeID(ctx, "sub_cancel")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, enums.LowestPlanTier(), stored.Plan)
	require.Equal(t, enums.SubscriptionStatusCancelled, stored.Status)
}

func TestCancelSubscriptionMissingRecordIsNoop(t *testing.T) {
	repo := NewRepository(setupAccountsTestDB(t))

	matched, err := repo.CancelSubscriptionByStripeID(context.Background(), "sub_ghost")
	require.NoError(t, err)
	require.False(t, matched)
}
