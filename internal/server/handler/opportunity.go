package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/polysignal/engine/internal/domain"
)

// OpportunityReader defines what the opportunity handler needs from storage.
type OpportunityReader interface {
	ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
}

// OpportunityHandler serves the active-opportunity endpoint.
type OpportunityHandler struct {
	opps   OpportunityReader
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps OpportunityReader, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opps:   opps,
		logger: logHandler(logger, "opportunities"),
	}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// ListActive returns active opportunities ordered by profit potential.
// GET /api/opportunities?limit=50&offset=0
func (h *OpportunityHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	opps, err := h.opps.ListActive(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	writeJSON(w, http.StatusOK, listOpportunitiesResponse{
		Opportunities: opps,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	})
}
