package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
	"github.com/polysignal/engine/internal/moneyflow"
)

// FlowWorkerConfig configures the money-flow pass.
type FlowWorkerConfig struct {
	// TopMarkets is how many volume-ranked markets get flow analysis.
	TopMarkets int
	// Window is the trade aggregation window.
	Window time.Duration
}

// DefaultFlowWorkerConfig returns the production flow settings.
func DefaultFlowWorkerConfig() FlowWorkerConfig {
	return FlowWorkerConfig{TopMarkets: 50, Window: 24 * time.Hour}
}

// FlowWorker aggregates trade flow per market, persists the snapshots, and
// emits flow, sector-rotation, and contrast output from the money-flow
// engine.
type FlowWorker struct {
	cfg     FlowWorkerConfig
	markets domain.MarketStore
	trades  domain.TradeStore
	flows   domain.MoneyFlowStore
	engine  *moneyflow.Engine
	emitter *emit.Emitter
	logger  *slog.Logger
}

// NewFlowWorker creates the money-flow worker.
func NewFlowWorker(
	cfg FlowWorkerConfig,
	markets domain.MarketStore,
	trades domain.TradeStore,
	flows domain.MoneyFlowStore,
	engine *moneyflow.Engine,
	emitter *emit.Emitter,
	logger *slog.Logger,
) *FlowWorker {
	return &FlowWorker{
		cfg:     cfg,
		markets: markets,
		trades:  trades,
		flows:   flows,
		engine:  engine,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "flow_worker")),
	}
}

// Name implements Worker.
func (w *FlowWorker) Name() string { return "flow_worker" }

// Run computes per-market flow, then the sector-level views built on top of
// it.
func (w *FlowWorker) Run(ctx context.Context) error {
	markets, err := w.markets.ListActive(ctx, domain.ListOpts{Limit: w.cfg.TopMarkets})
	if err != nil {
		return fmt.Errorf("list active markets: %w", err)
	}
	if len(markets) == 0 {
		return nil
	}
	periodHours := int(w.cfg.Window / time.Hour)

	tradeFlows := make(map[string]domain.TradeFlow, len(markets))
	for _, m := range markets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		flow, err := w.trades.Flow(ctx, m.ConditionID, w.cfg.Window)
		if err != nil {
			return fmt.Errorf("trade flow %s: %w", m.ConditionID, err)
		}
		tradeFlows[m.ConditionID] = flow

		mf := w.engine.MarketFlow(m.ConditionID, flow, periodHours)
		if err := w.flows.Insert(ctx, mf); err != nil {
			return fmt.Errorf("insert money flow %s: %w", m.ConditionID, err)
		}
		if sig, ok := w.engine.FlowSignal(mf, m.Question); ok {
			if _, err := w.emitter.EmitSignal(ctx, sig); err != nil {
				return err
			}
		}
	}

	sectors := w.engine.SectorFlows(markets, tradeFlows)
	for _, rotation := range w.engine.DetectRotation(sectors) {
		if _, err := w.emitter.EmitSignal(ctx, w.engine.RotationSignal(rotation)); err != nil {
			return err
		}
	}

	// Contrasts are informational only, no signal type maps to them.
	for _, c := range w.engine.CrossMarketContrast(markets, tradeFlows) {
		w.logger.Debug("flow contrast",
			slog.String("category", c.Category),
			slog.String("inflow_market", c.InflowMarket),
			slog.Float64("inflow", c.InflowAmount),
			slog.String("outflow_market", c.OutflowMarket),
			slog.Float64("outflow", c.OutflowAmount),
		)
	}

	w.logger.Info("flow pass complete",
		slog.Int("markets", len(markets)),
		slog.Int("sectors", len(sectors)),
	)
	return nil
}
