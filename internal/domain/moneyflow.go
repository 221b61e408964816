package domain

import "time"

// MoneyFlow is a point-in-time flow snapshot for one market.
type MoneyFlow struct {
	ID           int64
	MarketID     string
	BuyVolume    float64
	SellVolume   float64
	NetFlow      float64
	BuyPressure  float64 // [0,100], 50 when no trades
	FlowVelocity float64 // percent change vs the previous stored flow
	PeriodHours  int
	Timestamp    time.Time
}

// SectorFlow aggregates 24h flow across all markets in one category.
type SectorFlow struct {
	Category    string
	BuyVolume   float64
	SellVolume  float64
	NetFlow     float64
	BuyPressure float64
	MarketCount int
}

// RotationDirection labels whether money is entering or leaving a sector.
type RotationDirection string

const (
	RotationInflow  RotationDirection = "inflow"
	RotationOutflow RotationDirection = "outflow"
)

// SectorRotation flags a sector whose current net flow deviates from its own
// trailing average by more than the rotation threshold.
type SectorRotation struct {
	Category  string
	Direction RotationDirection
	Magnitude float64 // |deviation| as a fraction of the trailing average
	NetFlow   float64
	AvgFlow   float64
}

// FlowContrast pairs the strongest inflow market against the strongest
// outflow market within one category. Reported, not priced.
type FlowContrast struct {
	Category      string
	InflowMarket  string
	InflowAmount  float64
	OutflowMarket string
	OutflowAmount float64
}
