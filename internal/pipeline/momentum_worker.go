package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
	"github.com/polysignal/engine/internal/momentum"
)

// MomentumWorkerConfig configures the momentum pass.
type MomentumWorkerConfig struct {
	// TopMarkets is how many volume-ranked markets get analyzed.
	TopMarkets int
	// HistoryWindow is the price history fed to the engine.
	HistoryWindow time.Duration
	// MinOpportunityScore is the |composite score| above which a momentum
	// opportunity is emitted alongside the signals.
	MinOpportunityScore float64
}

// DefaultMomentumWorkerConfig returns the production momentum settings.
func DefaultMomentumWorkerConfig() MomentumWorkerConfig {
	return MomentumWorkerConfig{
		TopMarkets:          50,
		HistoryWindow:       24 * time.Hour,
		MinOpportunityScore: 50,
	}
}

// MomentumWorker feeds each active market's price history and latest book
// imbalance to the momentum engine, writes the score back onto the market
// row, and emits breakout, mean-reversion, and momentum-opportunity output.
type MomentumWorker struct {
	cfg     MomentumWorkerConfig
	markets domain.MarketStore
	prices  domain.PriceStore
	books   domain.OrderbookStore
	engine  *momentum.Engine
	emitter *emit.Emitter
	logger  *slog.Logger
}

// NewMomentumWorker creates the momentum analysis worker.
func NewMomentumWorker(
	cfg MomentumWorkerConfig,
	markets domain.MarketStore,
	prices domain.PriceStore,
	books domain.OrderbookStore,
	engine *momentum.Engine,
	emitter *emit.Emitter,
	logger *slog.Logger,
) *MomentumWorker {
	return &MomentumWorker{
		cfg:     cfg,
		markets: markets,
		prices:  prices,
		books:   books,
		engine:  engine,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "momentum_worker")),
	}
}

// Name implements Worker.
func (w *MomentumWorker) Name() string { return "momentum_worker" }

// Run analyzes every active market. Markets with too little history are
// skipped by the engine; store errors abort the pass.
func (w *MomentumWorker) Run(ctx context.Context) error {
	markets, err := w.markets.ListActive(ctx, domain.ListOpts{Limit: w.cfg.TopMarkets})
	if err != nil {
		return fmt.Errorf("list active markets: %w", err)
	}

	analyzed := 0
	for _, m := range markets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		points, err := w.prices.History(ctx, m.ConditionID, w.cfg.HistoryWindow)
		if err != nil {
			return fmt.Errorf("price history %s: %w", m.ConditionID, err)
		}
		series := primarySeries(points)

		analysis, ok := w.engine.Analyze(m, series, w.latestImbalance(ctx, m))
		if !ok {
			continue
		}
		analyzed++

		metrics := domain.MarketMetrics{
			Momentum:      analysis.Score,
			Volatility24h: math.Abs(analysis.Velocity),
		}
		if err := w.markets.UpdateMetrics(ctx, m.ConditionID, metrics); err != nil {
			return fmt.Errorf("update metrics %s: %w", m.ConditionID, err)
		}

		if err := w.emitAnalysis(ctx, m, analysis); err != nil {
			return err
		}
	}

	w.logger.Info("momentum pass complete",
		slog.Int("markets", len(markets)),
		slog.Int("analyzed", analyzed),
	)
	return nil
}

// latestImbalance returns the newest stored imbalance for the market's
// primary token, or 0 when no book has been captured yet.
func (w *MomentumWorker) latestImbalance(ctx context.Context, m domain.MarketSnapshot) float64 {
	if len(m.TokenIDs) == 0 {
		return 0
	}
	book, err := w.books.Latest(ctx, m.TokenIDs[0])
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			w.logger.Warn("latest book",
				slog.String("market_id", m.ConditionID),
				slog.String("error", err.Error()),
			)
		}
		return 0
	}
	return book.Imbalance
}

func (w *MomentumWorker) emitAnalysis(ctx context.Context, m domain.MarketSnapshot, a momentum.Analysis) error {
	if b := a.Breakout; b != nil {
		title := "Bullish Breakout Detected"
		if b.Type == domain.SignalBearishBreakdown {
			title = "Bearish Breakdown Detected"
		}
		sig := domain.Signal{
			MarketID:    m.ConditionID,
			Type:        b.Type,
			Title:       title,
			Description: fmt.Sprintf("Price moved %.1f%% with %.1fx volume", b.PriceMovePct, b.VolumeMultiplier),
			Severity:    domain.SeverityHigh,
			Data: map[string]any{
				"question":          m.Question,
				"price_move_pct":    b.PriceMovePct,
				"volume_multiplier": b.VolumeMultiplier,
				"current_price":     b.CurrentPrice,
				"resistance":        b.Resistance,
				"support":           b.Support,
			},
		}
		if _, err := w.emitter.EmitSignal(ctx, sig); err != nil {
			return err
		}
	}

	if r := a.MeanReversion; r != nil {
		direction := "Long"
		if r.Direction == "short" {
			direction = "Short"
		}
		sig := domain.Signal{
			MarketID:    m.ConditionID,
			Type:        r.Type,
			Title:       fmt.Sprintf("Mean Reversion Opportunity (%s)", direction),
			Description: fmt.Sprintf("RSI: %.0f, %.1f%% extended", r.RSI, r.DeviationPct),
			Severity:    domain.SeverityMedium,
			Data: map[string]any{
				"question":       m.Question,
				"direction":      r.Direction,
				"rsi":            r.RSI,
				"deviation_pct":  r.DeviationPct,
				"current_price":  r.CurrentPrice,
				"moving_average": r.MovingAverage,
			},
		}
		if _, err := w.emitter.EmitSignal(ctx, sig); err != nil {
			return err
		}
	}

	if math.Abs(a.Score) > w.cfg.MinOpportunityScore {
		opp := domain.Opportunity{
			MarketID:        m.ConditionID,
			Type:            domain.OpportunityMomentum,
			ProfitPotential: math.Abs(a.Velocity),
			Confidence:      math.Min(95, math.Abs(a.Score)),
			Details: map[string]any{
				"score":    a.Score,
				"velocity": a.Velocity,
				"rsi":      a.RSI,
			},
		}
		if err := w.emitter.EmitOpportunity(ctx, opp); err != nil {
			return err
		}
	}
	return nil
}

// primarySeries extracts the chronological price series of the first
// outcome.
func primarySeries(points []domain.PricePoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.OutcomeIndex == 0 {
			out = append(out, p.Price)
		}
	}
	return out
}
