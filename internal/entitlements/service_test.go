package entitlements

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/introspect-labs/introspect-backend/internal/accounts"
	"github.com/introspect-labs/introspect-backend/pkg/db/models"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
)

func TestAuthorizeDecisionTable(t *testing.T) {
	userID := uuid.New()

	activeSub := func(plan enums.PlanTier) *models.Subscription {
		return &models.Subscription{UserID: userID, Plan: plan, Status: enums.SubscriptionStatusActive}
	}

	cases := []struct {
		name     string
		isAdmin  bool
		sub      *models.Subscription
		required enums.PlanTier
		wantTier enums.PlanTier
		allow    bool
	}{
		{"admin no record premium feature", true, nil, enums.PlanTierPremium, enums.PlanTierPremium, true},
		{"admin ignores cancelled record", true, &models.Subscription{UserID: userID, Plan: enums.PlanTierPlus, Status: enums.SubscriptionStatusCancelled}, enums.PlanTierPremium, enums.PlanTierPremium, true},
		{"no record free feature", false, nil, enums.PlanTierFree, enums.PlanTierFree, true},
		{"no record plus feature", false, nil, enums.PlanTierPlus, enums.PlanTierFree, false},
		{"inactive premium record treated as free", false, &models.Subscription{UserID: userID, Plan: enums.PlanTierPremium, Status: enums.SubscriptionStatusInactive}, enums.PlanTierPlus, enums.PlanTierFree, false},
		{"cancelled record overrides stored plan", false, &models.Subscription{UserID: userID, Plan: enums.PlanTierPremium, Status: enums.SubscriptionStatusCancelled}, enums.PlanTierPlus, enums.PlanTierFree, false},
		{"active plus allows plus", false, activeSub(enums.PlanTierPlus), enums.PlanTierPlus, enums.PlanTierPlus, true},
		{"active plus denies premium", false, activeSub(enums.PlanTierPlus), enums.PlanTierPremium, enums.PlanTierPlus, false},
		{"active premium allows everything", false, activeSub(enums.PlanTierPremium), enums.PlanTierPremium, enums.PlanTierPremium, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, &fakeRepo{
				user: &models.User{ID: userID, IsAdmin: tc.isAdmin},
				sub:  tc.sub,
			})

			res, err := svc.Authorize(context.Background(), userID, tc.required)
			if tc.allow {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}
			} else {
				if err == nil {
					t.Fatalf("expected denial")
				}
				appErr := pkgerrors.As(err)
				if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
					t.Fatalf("denial must be forbidden, got %v", err)
				}
				details, ok := appErr.Details().(map[string]any)
				if !ok {
					t.Fatalf("denial must carry tier details, got %T", appErr.Details())
				}
				if details["current_tier"] != tc.wantTier.String() {
					t.Fatalf("denial must carry current tier %s, got %v", tc.wantTier, details["current_tier"])
				}
				if details["required_tier"] != tc.required.String() {
					t.Fatalf("denial must carry required tier %s, got %v", tc.required, details["required_tier"])
				}
			}
			if res.Tier != tc.wantTier {
				t.Fatalf("effective tier = %s, want %s", res.Tier, tc.wantTier)
			}
		})
	}
}

func TestResolveUnknownAccountIsUnauthorized(t *testing.T) {
	svc := newTestService(t, &fakeRepo{})

	_, err := svc.ResolveEffectiveTier(context.Background(), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("unknown account must be unauthorized, got %v", err)
	}
}

func TestResolveStorageErrorFailsClosed(t *testing.T) {
	svc := newTestService(t, &fakeRepo{userErr: errors.New("connection reset")})

	_, err := svc.ResolveEffectiveTier(context.Background(), uuid.New())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("storage failure must propagate as dependency error, got %v", err)
	}
}

func TestResolveUsesCachedResolution(t *testing.T) {
	repo := &fakeRepo{user: &models.User{ID: uuid.New(), IsAdmin: false}}
	svc := newTestService(t, repo)

	ctx := WithResolution(context.Background(), Resolution{Tier: enums.PlanTierPremium})
	res, err := svc.ResolveEffectiveTier(ctx, repo.user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Tier != enums.PlanTierPremium {
		t.Fatalf("expected cached tier, got %s", res.Tier)
	}
	if repo.userLookups != 0 {
		t.Fatalf("cached resolution must not hit the directory, got %d lookups", repo.userLookups)
	}
}

func newTestService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

type fakeRepo struct {
	user    *models.User
	userErr error
	sub     *models.Subscription
	subErr  error

	userLookups int
}

func (f *fakeRepo) WithTx(tx *gorm.DB) accounts.Repository { return f }

func (f *fakeRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.userLookups++
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.user == nil || f.user.ID != id {
		return nil, nil
	}
	return f.user, nil
}

func (f *fakeRepo) FindSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.sub, nil
}

func (f *fakeRepo) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertSubscription(ctx context.Context, subscription *models.Subscription) error {
	return nil
}

func (f *fakeRepo) CancelSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (bool, error) {
	return false, nil
}
