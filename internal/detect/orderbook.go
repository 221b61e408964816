package detect

import (
	"log/slog"
	"math"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/stats"
)

// OrderbookConfig configures the book-level detectors.
type OrderbookConfig struct {
	// MinSpreadPct is the minimum spread, as a percentage of the ask, to
	// flag as capturable.
	MinSpreadPct float64
	// MinArbDeviation is the minimum |sum(mids) - 1| across a binary
	// market's outcome tokens.
	MinArbDeviation float64
	// MaxNoCost is the neg-risk threshold: total cost of buying NO across
	// a group must land below it to clear fees.
	MaxNoCost float64
}

// DefaultOrderbookConfig returns production thresholds.
func DefaultOrderbookConfig() OrderbookConfig {
	return OrderbookConfig{
		MinSpreadPct:    0.5,
		MinArbDeviation: 0.01,
		MaxNoCost:       0.995,
	}
}

// Orderbook runs the three book-level checks: spread capture on a single
// token's book, cross-token arbitrage on a binary market's pair of books,
// and negative-risk pricing across a group of related markets.
type Orderbook struct {
	cfg    OrderbookConfig
	logger *slog.Logger
}

// NewOrderbook creates the book-level detector set.
func NewOrderbook(cfg OrderbookConfig, logger *slog.Logger) *Orderbook {
	return &Orderbook{cfg: cfg, logger: logger.With(slog.String("detector", "orderbook"))}
}

// DetectSpread flags a wide bid/ask spread as a market-making opportunity.
// spread_pct is measured against the ask; the capture rate discounts for
// fill risk, scaling down as the spread tightens.
func (o *Orderbook) DetectSpread(m domain.MarketSnapshot, book domain.OrderbookSnapshot, now time.Time) (domain.Opportunity, bool) {
	if book.BestBid <= 0 || book.BestAsk <= 0 || book.BestAsk <= book.BestBid {
		return domain.Opportunity{}, false
	}

	spreadPct := (book.BestAsk - book.BestBid) / book.BestAsk * 100
	if spreadPct <= o.cfg.MinSpreadPct {
		return domain.Opportunity{}, false
	}

	captureRate := 0.4
	switch {
	case spreadPct > 5:
		captureRate = 0.6
	case spreadPct > 2:
		captureRate = 0.5
	}

	confidence := stats.Clamp(50+math.Min(m.Liquidity/5_000, 30)+math.Min(spreadPct, 15), 0, 95)

	opp := domain.Opportunity{
		MarketID:        m.ConditionID,
		Type:            domain.OpportunitySpread,
		ProfitPotential: spreadPct * captureRate,
		Confidence:      confidence,
		Details: map[string]any{
			"token_id":     book.TokenID,
			"best_bid":     book.BestBid,
			"best_ask":     book.BestAsk,
			"spread_pct":   spreadPct,
			"capture_rate": captureRate,
			"bid_depth":    book.BidDepth,
			"ask_depth":    book.AskDepth,
		},
		Status:     domain.OpportunityStatusActive,
		DetectedAt: now,
	}
	o.logger.Debug("capturable spread",
		slog.String("market_id", m.ConditionID),
		slog.Float64("spread_pct", spreadPct),
	)
	return opp, true
}

// DetectArbitrage checks whether the mid prices of a binary market's two
// outcome tokens sum away from 1. Both books need a two-sided quote.
func (o *Orderbook) DetectArbitrage(m domain.MarketSnapshot, books []domain.OrderbookSnapshot, now time.Time) (domain.Opportunity, bool) {
	if len(books) < 2 {
		return domain.Opportunity{}, false
	}

	var total float64
	for _, b := range books {
		if b.BestBid <= 0 || b.BestAsk <= 0 {
			return domain.Opportunity{}, false
		}
		total += (b.BestBid + b.BestAsk) / 2
	}
	deviation := math.Abs(total - 1)
	if deviation <= o.cfg.MinArbDeviation {
		return domain.Opportunity{}, false
	}

	confidence := stats.Clamp(60+math.Min(200*deviation, 20)+math.Min(m.Liquidity/10_000, 15), 0, 95)

	opp := domain.Opportunity{
		MarketID:        m.ConditionID,
		Type:            domain.OpportunityArbitrage,
		ProfitPotential: 100 * deviation,
		Confidence:      confidence,
		Details: map[string]any{
			"mid_sum":   total,
			"deviation": deviation,
			"source":    "orderbook",
			"liquidity": m.Liquidity,
		},
		Status:     domain.OpportunityStatusActive,
		DetectedAt: now,
	}
	o.logger.Debug("cross-token mispricing",
		slog.String("market_id", m.ConditionID),
		slog.Float64("mid_sum", total),
	)
	return opp, true
}

// NegRiskMember is one market of a negative-risk group: mutually exclusive
// questions where exactly one resolves YES.
type NegRiskMember struct {
	MarketID  string
	Mid       float64
	Liquidity float64
}

// DetectNegRisk prices buying NO across every member of a neg-risk group.
// Exactly one member resolves YES, so the NO basket pays out on all but one
// leg; when the basket costs less than MaxNoCost the payoff is locked in.
// Position size is capped by the thinnest member's book.
func (o *Orderbook) DetectNegRisk(groupID string, members []NegRiskMember, now time.Time) (domain.Opportunity, bool) {
	if len(members) < 2 {
		return domain.Opportunity{}, false
	}

	totalNoCost := 0.0
	minLiquidity := math.Inf(1)
	ids := make([]string, 0, len(members))
	for _, mem := range members {
		if mem.Mid <= 0 || mem.Mid >= 1 {
			return domain.Opportunity{}, false
		}
		totalNoCost += 1 - mem.Mid
		if mem.Liquidity < minLiquidity {
			minLiquidity = mem.Liquidity
		}
		ids = append(ids, mem.MarketID)
	}
	if totalNoCost >= o.cfg.MaxNoCost {
		return domain.Opportunity{}, false
	}

	opp := domain.Opportunity{
		MarketID:        groupID,
		Type:            domain.OpportunityNegRisk,
		ProfitPotential: 100 * (1 - totalNoCost),
		Confidence:      99,
		Details: map[string]any{
			"group_id":      groupID,
			"members":       ids,
			"total_no_cost": totalNoCost,
			"max_position":  0.05 * minLiquidity,
		},
		Status:     domain.OpportunityStatusActive,
		DetectedAt: now,
	}
	o.logger.Info("negative risk group priced below payout",
		slog.String("group_id", groupID),
		slog.Float64("total_no_cost", totalNoCost),
		slog.Int("members", len(members)),
	)
	return opp, true
}
