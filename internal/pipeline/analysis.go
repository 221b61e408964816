package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/detect"
	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
)

// ParityWorker runs the outcome-price parity check over the active market
// set and emits arbitrage opportunities for markets whose outcome
// probabilities sum away from 1.
type ParityWorker struct {
	markets  domain.MarketStore
	detector *detect.Parity
	emitter  *emit.Emitter
	limit    int
	logger   *slog.Logger
}

// NewParityWorker creates the parity analysis worker.
func NewParityWorker(markets domain.MarketStore, detector *detect.Parity, emitter *emit.Emitter, limit int, logger *slog.Logger) *ParityWorker {
	return &ParityWorker{
		markets:  markets,
		detector: detector,
		emitter:  emitter,
		limit:    limit,
		logger:   logger.With(slog.String("component", "parity_worker")),
	}
}

// Name implements Worker.
func (w *ParityWorker) Name() string { return "parity_worker" }

// Run checks parity on every active market.
func (w *ParityWorker) Run(ctx context.Context) error {
	markets, err := w.markets.ListActive(ctx, domain.ListOpts{Limit: w.limit})
	if err != nil {
		return fmt.Errorf("list active markets: %w", err)
	}

	now := time.Now()
	found := 0
	for _, m := range markets {
		opp, ok := w.detector.Detect(m, now)
		if !ok {
			continue
		}
		if err := w.emitter.EmitOpportunity(ctx, opp); err != nil {
			return err
		}
		found++
	}

	if found > 0 {
		w.logger.Info("parity pass complete",
			slog.Int("markets", len(markets)),
			slog.Int("opportunities", found),
		)
	}
	return nil
}
