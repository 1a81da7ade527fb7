package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/introspect-labs/introspect-backend/api/middleware"
	"github.com/introspect-labs/introspect-backend/api/responses"
	"github.com/introspect-labs/introspect-backend/api/validators"
	"github.com/introspect-labs/introspect-backend/internal/checkout"
	"github.com/introspect-labs/introspect-backend/pkg/enums"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
)

type createCheckoutRequest struct {
	Tier string `json:"tier" validate:"required,oneof=plus premium"`
}

type createCheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// CreateCheckout starts a hosted checkout session for a paid tier.
func CreateCheckout(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		accountID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var payload createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tier, err := enums.ParsePlanTier(payload.Tier)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier"))
			return
		}

		url, err := svc.CreateSession(ctx, accountID, tier)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, createCheckoutResponse{RedirectURL: url})
	}
}
