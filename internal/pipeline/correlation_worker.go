package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/correlation"
	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
)

// CorrelationWorkerConfig configures the correlation pass.
type CorrelationWorkerConfig struct {
	// TopMarkets bounds the pairwise matrix; cost grows quadratically.
	TopMarkets int
	// HistoryWindow is the price history correlated per market.
	HistoryWindow time.Duration
}

// DefaultCorrelationWorkerConfig returns the production correlation
// settings.
func DefaultCorrelationWorkerConfig() CorrelationWorkerConfig {
	return CorrelationWorkerConfig{TopMarkets: 30, HistoryWindow: 7 * 24 * time.Hour}
}

// CorrelationWorker correlates price series across the top markets, persists
// qualifying edges, and emits leading-indicator signals.
type CorrelationWorker struct {
	cfg     CorrelationWorkerConfig
	markets domain.MarketStore
	prices  domain.PriceStore
	edges   domain.CorrelationStore
	engine  *correlation.Engine
	emitter *emit.Emitter
	logger  *slog.Logger
}

// NewCorrelationWorker creates the correlation worker.
func NewCorrelationWorker(
	cfg CorrelationWorkerConfig,
	markets domain.MarketStore,
	prices domain.PriceStore,
	edges domain.CorrelationStore,
	engine *correlation.Engine,
	emitter *emit.Emitter,
	logger *slog.Logger,
) *CorrelationWorker {
	return &CorrelationWorker{
		cfg:     cfg,
		markets: markets,
		prices:  prices,
		edges:   edges,
		engine:  engine,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "correlation_worker")),
	}
}

// Name implements Worker.
func (w *CorrelationWorker) Name() string { return "correlation_worker" }

// Run rebuilds the correlation picture for the current top markets.
func (w *CorrelationWorker) Run(ctx context.Context) error {
	markets, err := w.markets.ListActive(ctx, domain.ListOpts{Limit: w.cfg.TopMarkets})
	if err != nil {
		return fmt.Errorf("list active markets: %w", err)
	}
	if len(markets) < 2 {
		return nil
	}

	series := make(map[string][]domain.PricePoint, len(markets))
	categories := make(map[string]string, len(markets))
	for _, m := range markets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		points, err := w.prices.History(ctx, m.ConditionID, w.cfg.HistoryWindow)
		if err != nil {
			return fmt.Errorf("price history %s: %w", m.ConditionID, err)
		}
		primary := points[:0]
		for _, p := range points {
			if p.OutcomeIndex == 0 {
				primary = append(primary, p)
			}
		}
		if len(primary) > 0 {
			series[m.ConditionID] = primary
		}
		categories[m.ConditionID] = m.Category
	}

	now := time.Now()
	edges := w.engine.Pairwise(series, now)
	for _, edge := range edges {
		if err := w.edges.Upsert(ctx, edge); err != nil {
			return fmt.Errorf("upsert edge %s/%s: %w", edge.MarketA, edge.MarketB, err)
		}
	}

	for _, lead := range w.engine.LeadingIndicators(series) {
		sig := domain.Signal{
			MarketID:    lead.Follower,
			Type:        domain.SignalLeadingIndicator,
			Title:       "Leading Indicator Found",
			Description: fmt.Sprintf("Market %s leads %s (lagged r=%.2f)", lead.Leader, lead.Follower, lead.Score),
			Severity:    domain.SeverityLow,
			Data: map[string]any{
				"leader":   lead.Leader,
				"follower": lead.Follower,
				"score":    lead.Score,
			},
		}
		if _, err := w.emitter.EmitSignal(ctx, sig); err != nil {
			return err
		}
	}

	for _, avg := range w.engine.CategoryAverages(categories, edges) {
		w.logger.Debug("category correlation",
			slog.String("category", avg.Category),
			slog.Int("markets", avg.MarketCount),
			slog.Float64("avg_abs_score", avg.AvgAbsScore),
		)
	}

	w.logger.Info("correlation pass complete",
		slog.Int("markets", len(series)),
		slog.Int("edges", len(edges)),
	)
	return nil
}
