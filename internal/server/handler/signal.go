package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/polysignal/engine/internal/domain"
)

// SignalReader defines what the signal handler needs from storage.
type SignalReader interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Signal, error)
}

// SignalHandler serves the recent-signal endpoint.
type SignalHandler struct {
	signals SignalReader
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals SignalReader, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		logger:  logHandler(logger, "signals"),
	}
}

type listSignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListSignals returns recent unexpired signals, newest first. The optional
// since parameter (RFC 3339) filters to signals created after it.
// GET /api/signals?limit=50&offset=0&since=2025-06-01T00:00:00Z
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp, want RFC 3339")
			return
		}
		opts.Since = &since
	}

	signals, err := h.signals.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	writeJSON(w, http.StatusOK, listSignalsResponse{
		Signals: signals,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}
