package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive MarketStatus = "active"
	MarketStatusClosed MarketStatus = "closed"
)

// MarketSnapshot is the canonical, normalized view of a prediction market.
// One snapshot is built per market per refresh by the acquisition adapter;
// it is immutable for the duration of an analysis pass.
type MarketSnapshot struct {
	ConditionID    string // primary key
	Question       string
	Slug           string
	Category       string   // explicit category tag, may be empty
	Tags           []string // raw upstream tags, may be empty
	Volume24h      float64
	Volume7d       float64
	Volume30d      float64
	Liquidity      float64
	CurrentPrice   float64 // implied probability of the first outcome, in [0,1]
	PriceChange1h  float64
	PriceChange24h float64
	PriceChange7d  float64
	BestBid        float64
	BestAsk        float64
	Spread         float64
	NegRisk        bool
	NegRiskGroupID string
	OutcomePrices  []float64 // implied probabilities, ideally summing to 1
	TokenIDs       []string  // CLOB token IDs, one per outcome
	Momentum       float64   // composite momentum score, written back by the momentum engine
	Volatility24h  float64
	Status         MarketStatus
	FetchedAt      time.Time
	UpdatedAt      time.Time
}

// PricePoint is a single observed outcome price. Points are append-only and
// ordered by timestamp; history features depend on that ordering.
type PricePoint struct {
	MarketID     string
	OutcomeIndex int
	Price        float64
	Timestamp    time.Time
}

// MarketMetrics carries the momentum write-back fields for a market.
type MarketMetrics struct {
	Momentum      float64
	Volatility24h float64
}
