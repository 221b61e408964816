// Package momentum scores directional pressure per market: price velocity,
// volume acceleration, RSI, breakouts with volume confirmation, and
// mean-reversion setups. The engine owns its rolling volume history; one
// analysis pass feeds it one observation per market.
package momentum

import (
	"log/slog"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/stats"
)

// Config holds the momentum thresholds.
type Config struct {
	VelocityPeriods    int
	RSIPeriod          int
	RSIOverbought      float64
	RSIOversold        float64
	BreakoutMove       float64 // fractional price move through the range
	SurgeMultiplier    float64 // current volume vs trailing average
	ReversionDeviation float64 // fractional stretch from the moving average
	MaxVolumePoints    int
	MinPricePoints     int
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		VelocityPeriods:    5,
		RSIPeriod:          14,
		RSIOverbought:      70,
		RSIOversold:        30,
		BreakoutMove:       0.05,
		SurgeMultiplier:    2.0,
		ReversionDeviation: 0.10,
		MaxVolumePoints:    24,
		MinPricePoints:     5,
	}
}

// VolumeMomentum is one market's volume picture for the current cycle.
type VolumeMomentum struct {
	Momentum        float64 // percent change vs trailing average
	Surge           bool
	SurgeMultiplier float64
	CurrentVolume   float64
	AvgVolume       float64
}

// Breakout is a price move through the trailing range with volume behind it.
type Breakout struct {
	Type             string // domain.SignalBullishBreakout or SignalBearishBreakdown
	PriceMovePct     float64
	VolumeMultiplier float64
	CurrentPrice     float64
	Resistance       float64
	Support          float64
}

// MeanReversion is an overextended price expected to snap back to its MA.
type MeanReversion struct {
	Type          string // domain.SignalOverboughtExtended or SignalOversoldExtended
	Direction     string // "short" or "long"
	RSI           float64
	DeviationPct  float64
	CurrentPrice  float64
	MovingAverage float64
}

// Analysis is the full momentum readout for one market.
type Analysis struct {
	MarketID      string
	Velocity      float64
	Volume        VolumeMomentum
	RSI           float64
	Score         float64 // composite, -100..+100
	Breakout      *Breakout
	MeanReversion *MeanReversion
}

// Engine computes momentum analyses. It keeps a bounded per-market volume
// history across cycles and is confined to the worker goroutine that owns it.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	volumes map[string][]float64
}

// NewEngine creates a momentum engine with empty history.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "momentum")),
		volumes: make(map[string][]float64),
	}
}

// Analyze runs the full momentum pass for one market. prices is the market's
// chronological price series; imbalance is the latest orderbook imbalance (0
// when no book is available). It records the market's current 24h volume
// into the rolling history as a side effect, and abstains (ok=false) when
// the price series is too short.
func (e *Engine) Analyze(m domain.MarketSnapshot, prices []float64, imbalance float64) (Analysis, bool) {
	vol := e.observeVolume(m.ConditionID, m.Volume24h)

	if len(prices) < e.cfg.MinPricePoints {
		return Analysis{}, false
	}

	velocity := stats.Velocity(prices, e.cfg.VelocityPeriods)
	rsi := stats.RSI(prices, e.cfg.RSIPeriod)
	score := e.score(velocity, vol.Momentum, rsi, imbalance)

	a := Analysis{
		MarketID:      m.ConditionID,
		Velocity:      velocity,
		Volume:        vol,
		RSI:           rsi,
		Score:         score,
		Breakout:      e.detectBreakout(prices, vol),
		MeanReversion: e.detectMeanReversion(prices, rsi),
	}

	if score > 50 || score < -50 {
		e.logger.Info("high momentum market",
			slog.String("market_id", m.ConditionID),
			slog.Float64("score", score),
			slog.Float64("velocity", velocity),
		)
	}
	return a, true
}

// observeVolume appends the current reading to the market's history, trims
// it to MaxVolumePoints, and compares against the trailing average
// (excluding the current point).
func (e *Engine) observeVolume(marketID string, current float64) VolumeMomentum {
	hist := append(e.volumes[marketID], current)
	if len(hist) > e.cfg.MaxVolumePoints {
		hist = hist[len(hist)-e.cfg.MaxVolumePoints:]
	}
	e.volumes[marketID] = hist

	if len(hist) < 2 {
		return VolumeMomentum{SurgeMultiplier: 1, CurrentVolume: current}
	}

	avg := stats.Mean(hist[:len(hist)-1])
	vm := VolumeMomentum{SurgeMultiplier: 1, CurrentVolume: current, AvgVolume: avg}
	if avg > 0 {
		vm.Momentum = (current - avg) / avg * 100
		vm.SurgeMultiplier = current / avg
		vm.Surge = vm.SurgeMultiplier >= e.cfg.SurgeMultiplier
	}
	return vm
}

// score folds velocity, volume acceleration, RSI and book imbalance into a
// single -100..+100 metric. Each factor is capped so no single input can
// dominate.
func (e *Engine) score(velocity, volumeMomentum, rsi, imbalance float64) float64 {
	velocityScore := stats.Clamp(velocity, -50, 50)
	volumeScore := stats.Clamp(volumeMomentum/5, -20, 20)
	rsiScore := (rsi - 50) * 0.4
	imbalanceScore := imbalance * 10
	return stats.Clamp(velocityScore+volumeScore+rsiScore+imbalanceScore, -100, 100)
}

// detectBreakout flags a close within 1% of the trailing-20 extreme when the
// full-range move exceeds the threshold and volume confirms.
func (e *Engine) detectBreakout(prices []float64, vol VolumeMomentum) *Breakout {
	if len(prices) < e.cfg.MinPricePoints || !vol.Surge {
		return nil
	}

	window := prices
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	high, low := window[0], window[0]
	for _, p := range window {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	if high <= low {
		return nil
	}

	current := prices[len(prices)-1]

	if current > high*0.99 && low > 0 {
		move := (current - low) / low
		if move > e.cfg.BreakoutMove {
			return &Breakout{
				Type:             domain.SignalBullishBreakout,
				PriceMovePct:     move * 100,
				VolumeMultiplier: vol.SurgeMultiplier,
				CurrentPrice:     current,
				Resistance:       high,
				Support:          low,
			}
		}
	}

	if current < low*1.01 && high > 0 {
		move := (high - current) / high
		if move > e.cfg.BreakoutMove {
			return &Breakout{
				Type:             domain.SignalBearishBreakdown,
				PriceMovePct:     move * 100,
				VolumeMultiplier: vol.SurgeMultiplier,
				CurrentPrice:     current,
				Resistance:       high,
				Support:          low,
			}
		}
	}
	return nil
}

// detectMeanReversion flags extreme RSI paired with a stretch past the
// trailing-20 moving average.
func (e *Engine) detectMeanReversion(prices []float64, rsi float64) *MeanReversion {
	if len(prices) < 10 {
		return nil
	}

	maPeriod := 20
	if len(prices) < maPeriod {
		maPeriod = len(prices)
	}
	ma := stats.Mean(prices[len(prices)-maPeriod:])
	if ma <= 0 {
		return nil
	}

	current := prices[len(prices)-1]
	deviation := (current - ma) / ma

	if rsi > e.cfg.RSIOverbought && deviation > e.cfg.ReversionDeviation {
		return &MeanReversion{
			Type:          domain.SignalOverboughtExtended,
			Direction:     "short",
			RSI:           rsi,
			DeviationPct:  deviation * 100,
			CurrentPrice:  current,
			MovingAverage: ma,
		}
	}
	if rsi < e.cfg.RSIOversold && deviation < -e.cfg.ReversionDeviation {
		return &MeanReversion{
			Type:          domain.SignalOversoldExtended,
			Direction:     "long",
			RSI:           rsi,
			DeviationPct:  deviation * 100,
			CurrentPrice:  current,
			MovingAverage: ma,
		}
	}
	return nil
}
