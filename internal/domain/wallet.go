package domain

// WalletProfile summarizes one participant's trading over the analysis
// window. WinRate is an approximation: each trade is scored against the
// market's current price rather than its realized resolution outcome, so a
// BUY counts as a win when the price has since moved up. True P&L would need
// resolution data that is not modeled here.
type WalletProfile struct {
	Address      string
	TradeCount   int
	TotalVolume  float64
	BuyVolume    float64
	SellVolume   float64
	BuyRatio     float64
	WinRate      float64
	MarketCount  int
	IsSmartMoney bool
}

// SentimentLabel classifies an aggregate sentiment score.
type SentimentLabel string

const (
	SentimentBullish SentimentLabel = "bullish"
	SentimentBearish SentimentLabel = "bearish"
	SentimentNeutral SentimentLabel = "neutral"
)

// SmartMoneySentiment is the volume-weighted aggregate stance of all
// qualifying smart-money wallets.
type SmartMoneySentiment struct {
	Label            SentimentLabel
	Score            float64 // [-100,100]
	Confidence       float64 // 0-100
	WalletCount      int
	TotalVolume      float64
	WeightedBuyRatio float64
}

// CoordinatedActivity flags several distinct whale wallets trading the same
// side of one market within the analysis window.
type CoordinatedActivity struct {
	MarketID    string
	Side        TradeSide
	WalletCount int
	Wallets     []string // capped sample
}
