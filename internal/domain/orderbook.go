package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a full snapshot of bids and asks for an outcome token.
// Bids are sorted descending and asks ascending; the depth and imbalance
// fields are only meaningful when that ordering holds. Snapshots are
// ephemeral and replaced wholesale each poll.
type OrderbookSnapshot struct {
	TokenID   string
	MarketID  string
	Bids      []PriceLevel // sorted by price descending
	Asks      []PriceLevel // sorted by price ascending
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Spread    float64
	BidDepth  float64 // top-N price-weighted size
	AskDepth  float64
	Imbalance float64 // (BidDepth-AskDepth)/(BidDepth+AskDepth), in [-1,1]
	Timestamp time.Time
}
