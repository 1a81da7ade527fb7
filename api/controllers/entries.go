package controllers

import (
	"context"
	"net/http"

	"github.com/introspect-labs/introspect-backend/api/responses"
	"github.com/introspect-labs/introspect-backend/api/validators"
	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
	"github.com/introspect-labs/introspect-backend/pkg/logger"
)

// EntryAnalyzer produces a reflection summary for a journal entry. The route
// in front of it is gated on the ai_analysis capability.
type EntryAnalyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}

type analyzeEntryRequest struct {
	Text string `json:"text" validate:"required,min=1,max=20000"`
}

type analyzeEntryResponse struct {
	Summary string `json:"summary"`
}

func AnalyzeEntry(analyzer EntryAnalyzer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if analyzer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analyzer unavailable"))
			return
		}

		var payload analyzeEntryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := analyzer.Analyze(r.Context(), payload.Text)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, analyzeEntryResponse{Summary: summary})
	}
}
