package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/introspect-labs/introspect-backend/api/responses"
	"github.com/introspect-labs/introspect-backend/internal/entitlements"
	"github.com/introspect-labs/introspect-backend/internal/plans"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
	"github.com/introspect-labs/introspect-backend/pkg/metrics"
)

// Entitlement resolves the caller's effective tier once and caches it on the
// request context, so stacked capability checks don't repeat the lookup.
func Entitlement(gate *entitlements.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			accountID, err := uuid.Parse(UserIDFromContext(ctx))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			res, err := gate.ResolveEffectiveTier(ctx, accountID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(entitlements.WithResolution(ctx, res)))
		})
	}
}

// RequireCapability gates a route on the tier that unlocks the capability.
func RequireCapability(gate *entitlements.Service, registry *plans.Registry, capability plans.Capability, billingMetrics *metrics.BillingMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			accountID, err := uuid.Parse(UserIDFromContext(ctx))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			required := registry.RequiredTierFor(capability)
			if _, err := gate.Authorize(ctx, accountID, required); err != nil {
				if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeForbidden {
					billingMetrics.IncDenial(required.String())
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
