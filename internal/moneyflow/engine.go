// Package moneyflow tracks where money moves across markets and sectors:
// per-market flow snapshots with velocity, sector aggregation, rotation
// detection against each sector's own trailing average, and opposing-flow
// contrasts within a category.
package moneyflow

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/polysignal/engine/internal/category"
	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/stats"
)

// Config holds the flow thresholds.
type Config struct {
	// SignificantFlowUSD is the net flow past which a market gets its own
	// signal.
	SignificantFlowUSD float64
	// RotationThreshold is the fractional deviation from a sector's
	// trailing average net flow that counts as rotation.
	RotationThreshold float64
	// MaxHistoryPoints bounds the per-market and per-sector histories.
	MaxHistoryPoints int
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		SignificantFlowUSD: 50_000,
		RotationThreshold:  0.3,
		MaxHistoryPoints:   24,
	}
}

// Engine computes money-flow analytics. It owns bounded rolling histories of
// net flow per market and per sector, confined to its worker goroutine.
type Engine struct {
	cfg           Config
	logger        *slog.Logger
	marketHistory map[string][]float64
	sectorHistory map[string][]float64
}

// NewEngine creates a flow engine with empty history.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "moneyflow")),
		marketHistory: make(map[string][]float64),
		sectorHistory: make(map[string][]float64),
	}
}

// MarketFlow turns one market's trade flow into a snapshot, computing flow
// velocity against the previous cycle's net flow and recording the new
// reading. Velocity is 0 when there is no prior reading or the prior net
// flow was 0.
func (e *Engine) MarketFlow(marketID string, flow domain.TradeFlow, periodHours int) domain.MoneyFlow {
	net := flow.NetFlow()

	velocity := 0.0
	if hist := e.marketHistory[marketID]; len(hist) > 0 {
		prev := hist[len(hist)-1]
		if prev != 0 {
			velocity = (net - prev) / math.Abs(prev) * 100
		}
	}
	e.marketHistory[marketID] = appendBounded(e.marketHistory[marketID], net, e.cfg.MaxHistoryPoints)

	return domain.MoneyFlow{
		MarketID:     marketID,
		BuyVolume:    flow.BuyVolume,
		SellVolume:   flow.SellVolume,
		NetFlow:      net,
		BuyPressure:  flow.BuyPressure,
		FlowVelocity: velocity,
		PeriodHours:  periodHours,
	}
}

// FlowSignal raises a signal when a market's net flow clears the
// significance floor. Severity escalates at twice the floor.
func (e *Engine) FlowSignal(f domain.MoneyFlow, question string) (domain.Signal, bool) {
	abs := math.Abs(f.NetFlow)
	if abs <= e.cfg.SignificantFlowUSD {
		return domain.Signal{}, false
	}

	direction := "Outflow"
	verb := "selling"
	if f.NetFlow > 0 {
		direction = "Inflow"
		verb = "buying"
	}
	severity := domain.SeverityMedium
	if abs > 2*e.cfg.SignificantFlowUSD {
		severity = domain.SeverityHigh
	}

	e.logger.Info("significant flow",
		slog.String("market_id", f.MarketID),
		slog.Float64("net_flow", f.NetFlow),
	)

	return domain.Signal{
		MarketID:    f.MarketID,
		Type:        domain.SignalMoneyFlow,
		Title:       fmt.Sprintf("Large %s Detected", direction),
		Description: fmt.Sprintf("$%.0f net %s in the last %dh", abs, verb, f.PeriodHours),
		Severity:    severity,
		Data: map[string]any{
			"buy_volume":    f.BuyVolume,
			"sell_volume":   f.SellVolume,
			"net_flow":      f.NetFlow,
			"buy_pressure":  f.BuyPressure,
			"flow_velocity": f.FlowVelocity,
			"question":      question,
		},
	}, true
}

// SectorFlows aggregates 24h trade flow per category. Markets without a flow
// entry contribute nothing. Sector buy pressure defaults to the neutral 50
// when the sector traded no volume at all.
func (e *Engine) SectorFlows(markets []domain.MarketSnapshot, flows map[string]domain.TradeFlow) []domain.SectorFlow {
	agg := make(map[string]*domain.SectorFlow)
	for _, m := range markets {
		flow, ok := flows[m.ConditionID]
		if !ok {
			continue
		}
		cat := category.Classify(m)
		sf := agg[cat]
		if sf == nil {
			sf = &domain.SectorFlow{Category: cat}
			agg[cat] = sf
		}
		sf.BuyVolume += flow.BuyVolume
		sf.SellVolume += flow.SellVolume
		sf.NetFlow += flow.NetFlow()
		sf.MarketCount++
	}

	out := make([]domain.SectorFlow, 0, len(agg))
	for _, sf := range agg {
		total := sf.BuyVolume + sf.SellVolume
		sf.BuyPressure = 50
		if total > 0 {
			sf.BuyPressure = sf.BuyVolume / total * 100
		}
		out = append(out, *sf)
	}
	sortSectors(out)
	return out
}

// DetectRotation compares each sector's current net flow against its own
// trailing average and flags deviations past the rotation threshold. Each
// call records the current readings; a sector needs at least two cycles of
// history before it can rotate.
func (e *Engine) DetectRotation(sectors []domain.SectorFlow) []domain.SectorRotation {
	var out []domain.SectorRotation
	for _, sf := range sectors {
		hist := appendBounded(e.sectorHistory[sf.Category], sf.NetFlow, e.cfg.MaxHistoryPoints)
		e.sectorHistory[sf.Category] = hist
		if len(hist) < 2 {
			continue
		}

		avg := stats.Mean(hist)
		if avg == 0 {
			continue
		}
		changeRatio := (sf.NetFlow - avg) / math.Abs(avg)
		if math.Abs(changeRatio) <= e.cfg.RotationThreshold {
			continue
		}

		direction := domain.RotationOutflow
		if changeRatio > 0 {
			direction = domain.RotationInflow
		}
		out = append(out, domain.SectorRotation{
			Category:  sf.Category,
			Direction: direction,
			Magnitude: math.Abs(changeRatio),
			NetFlow:   sf.NetFlow,
			AvgFlow:   avg,
		})
		e.logger.Info("sector rotation",
			slog.String("category", sf.Category),
			slog.String("direction", string(direction)),
			slog.Float64("magnitude", math.Abs(changeRatio)),
		)
	}
	return out
}

// RotationSignal builds the global (market-less) signal for one rotation.
func (e *Engine) RotationSignal(r domain.SectorRotation) domain.Signal {
	verb := "leaving"
	if r.Direction == domain.RotationInflow {
		verb = "flowing into"
	}
	severity := domain.SeverityMedium
	if r.Magnitude > 0.5 {
		severity = domain.SeverityHigh
	}
	return domain.Signal{
		Type:        domain.SignalSectorRotation,
		Title:       fmt.Sprintf("%s Sector %s", r.Category, titleDirection(r.Direction)),
		Description: fmt.Sprintf("Money %s %s sector (%.0f%% above average)", verb, r.Category, r.Magnitude*100),
		Severity:    severity,
		Data: map[string]any{
			"category":  r.Category,
			"direction": string(r.Direction),
			"magnitude": r.Magnitude,
			"net_flow":  r.NetFlow,
			"avg_flow":  r.AvgFlow,
		},
	}
}

// CrossMarketContrast pairs, per category, the strongest net inflow market
// against the strongest net outflow market. Categories where flow runs one
// way only produce nothing.
func (e *Engine) CrossMarketContrast(markets []domain.MarketSnapshot, flows map[string]domain.TradeFlow) []domain.FlowContrast {
	type extreme struct {
		inID, outID   string
		inNet, outNet float64
	}
	byCat := make(map[string]*extreme)
	for _, m := range markets {
		flow, ok := flows[m.ConditionID]
		if !ok {
			continue
		}
		net := flow.NetFlow()
		cat := category.Classify(m)
		ex := byCat[cat]
		if ex == nil {
			ex = &extreme{}
			byCat[cat] = ex
		}
		if net > 0 && net > ex.inNet {
			ex.inID, ex.inNet = m.ConditionID, net
		}
		if net < 0 && net < ex.outNet {
			ex.outID, ex.outNet = m.ConditionID, net
		}
	}

	var out []domain.FlowContrast
	for cat, ex := range byCat {
		if ex.inID == "" || ex.outID == "" {
			continue
		}
		out = append(out, domain.FlowContrast{
			Category:      cat,
			InflowMarket:  ex.inID,
			InflowAmount:  ex.inNet,
			OutflowMarket: ex.outID,
			OutflowAmount: ex.outNet,
		})
	}
	sortContrasts(out)
	return out
}

func sortSectors(sectors []domain.SectorFlow) {
	sort.Slice(sectors, func(i, j int) bool { return sectors[i].Category < sectors[j].Category })
}

func sortContrasts(contrasts []domain.FlowContrast) {
	sort.Slice(contrasts, func(i, j int) bool { return contrasts[i].Category < contrasts[j].Category })
}

func appendBounded(hist []float64, v float64, max int) []float64 {
	hist = append(hist, v)
	if len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	return hist
}

func titleDirection(d domain.RotationDirection) string {
	if d == domain.RotationInflow {
		return "Inflow"
	}
	return "Outflow"
}
