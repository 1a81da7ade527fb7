package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/introspect-labs/introspect-backend/api/middleware"
	"github.com/introspect-labs/introspect-backend/api/responses"
	"github.com/introspect-labs/introspect-backend/internal/entitlements"
	"github.com/introspect-labs/introspect-backend/internal/plans"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
)

type entitlementsResponse struct {
	Tier         string   `json:"tier"`
	IsAdmin      bool     `json:"is_admin"`
	Capabilities []string `json:"capabilities"`
}

// MyEntitlements returns the caller's effective tier and what it unlocks.
func MyEntitlements(gate *entitlements.Service, registry *plans.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		accountID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		res, err := gate.ResolveEffectiveTier(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		caps := registry.Capabilities(res.Tier)
		names := make([]string, 0, len(caps))
		for _, c := range caps {
			names = append(names, string(c))
		}

		responses.WriteSuccess(w, entitlementsResponse{
			Tier:         res.Tier.String(),
			IsAdmin:      res.IsAdmin,
			Capabilities: names,
		})
	}
}
