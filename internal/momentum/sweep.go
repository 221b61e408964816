package momentum

import (
	"fmt"
	"log/slog"

	"github.com/polysignal/engine/internal/domain"
)

// SweepConfig holds the cycle-over-cycle alerting thresholds.
type SweepConfig struct {
	PriceMovePct      float64 // percent change vs previous cycle
	PriceMoveHighPct  float64 // escalates severity to high
	VolumeChangePct   float64 // percent change vs previous cycle
	MinVolume         float64 // dollar floor before a volume surge matters
	MinOppConfidence  float64 // opportunity echo floor
	MinOppProfit      float64
	ResolutionExtreme float64 // price at or beyond implies near-resolution
}

// DefaultSweepConfig returns production thresholds.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		PriceMovePct:      3,
		PriceMoveHighPct:  5,
		VolumeChangePct:   20,
		MinVolume:         50_000,
		MinOppConfidence:  70,
		MinOppProfit:      1.0,
		ResolutionExtreme: 0.95,
	}
}

// Sweep compares each market against the previous cycle's reading and raises
// event signals: price spikes/drops, volume surges, high-confidence
// opportunity echoes, and near-resolution markets. Previous readings live in
// the sweep itself, so a fresh instance stays silent on its first cycle.
type Sweep struct {
	cfg        SweepConfig
	logger     *slog.Logger
	lastPrice  map[string]float64
	lastVolume map[string]float64
}

// NewSweep creates a sweep with empty comparison state.
func NewSweep(cfg SweepConfig, logger *slog.Logger) *Sweep {
	return &Sweep{
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "sweep")),
		lastPrice:  make(map[string]float64),
		lastVolume: make(map[string]float64),
	}
}

// Run evaluates one market against the previous cycle and updates the stored
// readings. opportunities are the market's currently active opportunities,
// used for the high-confidence echo.
func (s *Sweep) Run(m domain.MarketSnapshot, opportunities []domain.Opportunity) []domain.Signal {
	var out []domain.Signal

	if sig, ok := s.priceMovement(m); ok {
		out = append(out, sig)
	}
	if sig, ok := s.volumeSurge(m); ok {
		out = append(out, sig)
	}
	if sig, ok := s.opportunityEcho(m, opportunities); ok {
		out = append(out, sig)
	}
	if sig, ok := s.nearResolution(m); ok {
		out = append(out, sig)
	}

	s.lastPrice[m.ConditionID] = m.CurrentPrice
	s.lastVolume[m.ConditionID] = m.Volume24h
	return out
}

func (s *Sweep) priceMovement(m domain.MarketSnapshot) (domain.Signal, bool) {
	prev, ok := s.lastPrice[m.ConditionID]
	if !ok || prev == 0 {
		return domain.Signal{}, false
	}

	changePct := (m.CurrentPrice - prev) / prev * 100
	abs := changePct
	if abs < 0 {
		abs = -abs
	}
	if abs < s.cfg.PriceMovePct {
		return domain.Signal{}, false
	}

	sigType := domain.SignalPriceDrop
	if changePct > 0 {
		sigType = domain.SignalPriceSpike
	}
	severity := domain.SeverityMedium
	if abs >= s.cfg.PriceMoveHighPct {
		severity = domain.SeverityHigh
	}

	return domain.Signal{
		MarketID:    m.ConditionID,
		Type:        sigType,
		Title:       fmt.Sprintf("%+.1f%% - %s", changePct, truncate(m.Question, 80)),
		Description: fmt.Sprintf("Price moved from %.0f¢ to %.0f¢", prev*100, m.CurrentPrice*100),
		Severity:    severity,
		Data: map[string]any{
			"prev_price":     prev,
			"current_price":  m.CurrentPrice,
			"change_percent": changePct,
			"volume_24h":     m.Volume24h,
		},
	}, true
}

func (s *Sweep) volumeSurge(m domain.MarketSnapshot) (domain.Signal, bool) {
	prev, ok := s.lastVolume[m.ConditionID]
	if !ok || prev == 0 {
		return domain.Signal{}, false
	}

	changePct := (m.Volume24h - prev) / prev * 100
	if changePct < s.cfg.VolumeChangePct || m.Volume24h <= s.cfg.MinVolume {
		return domain.Signal{}, false
	}

	severity := domain.SeverityMedium
	if changePct >= 50 {
		severity = domain.SeverityHigh
	}

	return domain.Signal{
		MarketID:    m.ConditionID,
		Type:        domain.SignalVolumeSurge,
		Title:       fmt.Sprintf("Volume +%.0f%% - %s", changePct, truncate(m.Question, 80)),
		Description: fmt.Sprintf("Trading activity spiking - $%.0fK volume", m.Volume24h/1000),
		Severity:    severity,
		Data: map[string]any{
			"prev_volume":           prev,
			"current_volume":        m.Volume24h,
			"volume_change_percent": changePct,
		},
	}, true
}

func (s *Sweep) opportunityEcho(m domain.MarketSnapshot, opportunities []domain.Opportunity) (domain.Signal, bool) {
	var best *domain.Opportunity
	for i := range opportunities {
		o := &opportunities[i]
		if o.MarketID != m.ConditionID {
			continue
		}
		if best == nil || o.Confidence > best.Confidence {
			best = o
		}
	}
	if best == nil || best.Confidence < s.cfg.MinOppConfidence || best.ProfitPotential < s.cfg.MinOppProfit {
		return domain.Signal{}, false
	}

	severity := domain.SeverityHigh
	if best.Confidence >= 85 {
		severity = domain.SeverityCritical
	}

	return domain.Signal{
		MarketID:    m.ConditionID,
		Type:        domain.SignalHighConfidence,
		Title:       fmt.Sprintf("%s +%.1f%% - %s", best.Type, best.ProfitPotential, truncate(m.Question, 60)),
		Description: fmt.Sprintf("%.0f%% confidence - potential %s opportunity", best.Confidence, best.Type),
		Severity:    severity,
		Data: map[string]any{
			"opportunity_type": string(best.Type),
			"profit_potential": best.ProfitPotential,
			"confidence_score": best.Confidence,
			"details":          best.Details,
		},
	}, true
}

func (s *Sweep) nearResolution(m domain.MarketSnapshot) (domain.Signal, bool) {
	p := m.CurrentPrice
	if p <= 0 {
		return domain.Signal{}, false
	}
	if p < s.cfg.ResolutionExtreme && p > 1-s.cfg.ResolutionExtreme {
		return domain.Signal{}, false
	}

	direction := "NO"
	if p >= s.cfg.ResolutionExtreme {
		direction = "YES"
	}

	return domain.Signal{
		MarketID:    m.ConditionID,
		Type:        domain.SignalNearResolution,
		Title:       fmt.Sprintf("%.0f%% → %s likely - %s", p*100, direction, truncate(m.Question, 70)),
		Description: fmt.Sprintf("Market strongly favoring %s outcome", direction),
		Severity:    domain.SeverityMedium,
		Data: map[string]any{
			"current_price":  p,
			"likely_outcome": direction,
			"volume_24h":     m.Volume24h,
		},
	}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
