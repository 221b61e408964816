// Package detect implements the snapshot-level opportunity detectors:
// outcome-price parity arbitrage and orderbook spread / arbitrage /
// negative-risk checks. Detectors are stateless; each call inspects one
// market's snapshot data and either returns a scored opportunity or
// abstains.
package detect

import (
	"log/slog"
	"math"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/stats"
)

// ParityConfig configures the outcome-price parity detector.
type ParityConfig struct {
	// MinDeviation is the minimum |sum(prices) - 1| to flag. Polymarket
	// quotes carry about a cent of rounding slack, so anything inside it
	// is noise rather than edge.
	MinDeviation float64
}

// DefaultParityConfig returns production thresholds.
func DefaultParityConfig() ParityConfig {
	return ParityConfig{MinDeviation: 0.01}
}

// Parity checks whether a market's outcome probabilities sum away from 1.
// A deviation is the arbitrage signal itself, not invalid data: buying (or
// selling) the full outcome set locks in the gap.
type Parity struct {
	cfg    ParityConfig
	logger *slog.Logger
}

// NewParity creates a parity detector.
func NewParity(cfg ParityConfig, logger *slog.Logger) *Parity {
	return &Parity{cfg: cfg, logger: logger.With(slog.String("detector", "parity"))}
}

// Detect returns an arbitrage opportunity when the market's outcome prices
// sum more than MinDeviation away from 1. It abstains (ok=false) when fewer
// than two valid prices are present.
func (p *Parity) Detect(m domain.MarketSnapshot, now time.Time) (domain.Opportunity, bool) {
	prices := validPrices(m.OutcomePrices)
	if len(prices) < 2 {
		return domain.Opportunity{}, false
	}

	var total float64
	for _, v := range prices {
		total += v
	}
	deviation := math.Abs(total - 1)
	if deviation <= p.cfg.MinDeviation {
		return domain.Opportunity{}, false
	}

	liquidityTerm := math.Min(m.Liquidity/10_000, 20)
	confidence := stats.Clamp(50+liquidityTerm+200*deviation, 0, 90)

	opp := domain.Opportunity{
		MarketID:        m.ConditionID,
		Type:            domain.OpportunityArbitrage,
		ProfitPotential: 100 * deviation,
		Confidence:      confidence,
		Details: map[string]any{
			"price_sum":  total,
			"deviation":  deviation,
			"num_prices": len(prices),
			"liquidity":  m.Liquidity,
		},
		Status:     domain.OpportunityStatusActive,
		DetectedAt: now,
	}
	p.logger.Debug("parity deviation detected",
		slog.String("market_id", m.ConditionID),
		slog.Float64("price_sum", total),
		slog.Float64("profit_potential", opp.ProfitPotential),
	)
	return opp, true
}

// validPrices drops non-finite entries. Unparseable upstream values never
// reach the core; NaN is the adapter's drop marker for a malformed field.
func validPrices(prices []float64) []float64 {
	out := make([]float64, 0, len(prices))
	for _, v := range prices {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}
