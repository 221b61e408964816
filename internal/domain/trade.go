package domain

import "time"

// TradeSide is the taker direction of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade is a single observed trade fill. Trades are append-only.
type Trade struct {
	ID        int64
	MarketID  string
	TokenID   string
	Price     float64
	Size      float64
	Side      TradeSide
	Maker     string
	Taker     string
	IsWhale   bool // derived at ingestion, see WhaleTagger
	Timestamp time.Time
}

// Notional returns the USD value of the trade.
func (t Trade) Notional() float64 {
	return t.Price * t.Size
}

// TradeFlow summarizes buy/sell volume for a market over a window.
// BuyPressure is in [0,100] and is exactly 50 when there are no trades.
type TradeFlow struct {
	BuyVolume   float64
	SellVolume  float64
	BuyPressure float64
}

// NetFlow returns buy volume minus sell volume.
func (f TradeFlow) NetFlow() float64 {
	return f.BuyVolume - f.SellVolume
}
