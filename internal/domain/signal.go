package domain

import "time"

// SignalSeverity indicates how urgent a signal is.
type SignalSeverity string

const (
	SeverityLow      SignalSeverity = "low"
	SeverityMedium   SignalSeverity = "medium"
	SeverityHigh     SignalSeverity = "high"
	SeverityCritical SignalSeverity = "critical"
)

// Signal types emitted by the engines.
const (
	SignalBullishBreakout    = "bullish_breakout"
	SignalBearishBreakdown   = "bearish_breakdown"
	SignalOverboughtExtended = "overbought_extended"
	SignalOversoldExtended   = "oversold_extended"
	SignalPriceSpike         = "price_spike"
	SignalPriceDrop          = "price_drop"
	SignalVolumeSurge        = "volume_surge"
	SignalHighConfidence     = "high_confidence"
	SignalNearResolution     = "near_resolution"
	SignalMoneyFlow          = "money_flow"
	SignalSectorRotation     = "sector_rotation"
	SignalLeadingIndicator   = "leading_indicator"
	SignalSmartMoney         = "smart_money_sentiment"
	SignalCoordinatedBuying  = "coordinated_buying"
	SignalCoordinatedSelling = "coordinated_selling"
)

// Signal is an alert emitted by a detector. Signals are append-only with a
// 24-hour expiry; the emitter deduplicates per (MarketID, Type) within a
// 15-minute window. MarketID is empty for global signals (e.g. sector
// rotation, smart-money sentiment).
type Signal struct {
	ID          string
	MarketID    string
	Type        string
	Title       string
	Description string
	Severity    SignalSeverity
	Data        map[string]any
	CreatedAt   time.Time
	ExpiresAt   time.Time
}
