package billing

import (
	"net/http"

	"github.com/introspect-labs/introspect-backend/api/responses"
	"github.com/introspect-labs/introspect-backend/internal/plans"
)

// ListPlans serves the static upgrade-page catalog.
func ListPlans() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"plans": plans.Catalog()})
	}
}
