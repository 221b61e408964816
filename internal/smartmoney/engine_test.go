package smartmoney

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
	walletC = "0x3333333333333333333333333333333333333333"
	walletD = "0x4444444444444444444444444444444444444444"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), testLogger())
}

func TestGroupByWalletFiltersMalformedAddresses(t *testing.T) {
	e := newTestEngine()
	trades := []domain.Trade{
		{MarketID: "m1", Maker: walletA, Taker: walletB},
		{MarketID: "m1", Maker: "not-an-address", Taker: walletA},
		{MarketID: "m1", Maker: "", Taker: "0xshort"},
	}

	grouped := e.GroupByWallet(trades)
	assert.Len(t, grouped, 2)
	assert.Len(t, grouped[walletA], 2)
	assert.Len(t, grouped[walletB], 1)
}

// qualifyingTrades builds 6 BUY trades of $10k each at 0.50 in market m1.
// With a current price of 0.60 every trade is a win.
func qualifyingTrades() []domain.Trade {
	trades := make([]domain.Trade, 6)
	for i := range trades {
		trades[i] = domain.Trade{
			MarketID: "m1",
			Price:    0.50,
			Size:     20_000,
			Side:     domain.TradeSideBuy,
			Taker:    walletA,
		}
	}
	return trades
}

func TestAnalyzeWalletQualifies(t *testing.T) {
	e := newTestEngine()
	prices := map[string]float64{"m1": 0.60}

	p, ok := e.AnalyzeWallet(walletA, qualifyingTrades(), prices)
	require.True(t, ok)
	assert.Equal(t, 6, p.TradeCount)
	assert.Equal(t, 60_000.0, p.TotalVolume)
	assert.Equal(t, 1.0, p.BuyRatio)
	assert.Equal(t, 1.0, p.WinRate)
	assert.Equal(t, 1, p.MarketCount)
	assert.True(t, p.IsSmartMoney)
}

func TestAnalyzeWalletLosingWalletNotSmart(t *testing.T) {
	e := newTestEngine()
	// Same trades, but the price went against the buys.
	prices := map[string]float64{"m1": 0.40}

	p, ok := e.AnalyzeWallet(walletA, qualifyingTrades(), prices)
	require.True(t, ok)
	assert.Equal(t, 0.0, p.WinRate)
	assert.False(t, p.IsSmartMoney)
}

func TestAnalyzeWalletVolumeFloor(t *testing.T) {
	e := newTestEngine()
	trades := qualifyingTrades()
	for i := range trades {
		trades[i].Size = 1_000 // $500 each, $3k total
	}
	p, ok := e.AnalyzeWallet(walletA, trades, map[string]float64{"m1": 0.60})
	require.True(t, ok)
	assert.False(t, p.IsSmartMoney, "perfect win rate but volume under the floor")
}

func TestAnalyzeWalletTooFewTrades(t *testing.T) {
	e := newTestEngine()
	_, ok := e.AnalyzeWallet(walletA, qualifyingTrades()[:1], nil)
	assert.False(t, ok)
}

func TestSentimentVolumeWeighted(t *testing.T) {
	e := newTestEngine()
	profiles := []domain.WalletProfile{
		{Address: walletA, BuyRatio: 1.0, TotalVolume: 300_000, IsSmartMoney: true},
		{Address: walletB, BuyRatio: 0.0, TotalVolume: 100_000, IsSmartMoney: true},
		{Address: walletC, BuyRatio: 0.0, TotalVolume: 900_000}, // not smart money, ignored
	}

	s := e.Sentiment(profiles)
	assert.Equal(t, domain.SentimentBullish, s.Label)
	assert.InDelta(t, 0.75, s.WeightedBuyRatio, 1e-9) // 300k/400k
	assert.InDelta(t, 50.0, s.Score, 1e-9)            // (0.75−0.5)×200
	assert.Equal(t, 2, s.WalletCount)
	assert.Equal(t, 100.0, s.Confidence) // 2×10 + 400000/100000×20 = 100, capped
}

func TestSentimentNoQualifyingWallets(t *testing.T) {
	e := newTestEngine()
	s := e.Sentiment([]domain.WalletProfile{{Address: walletA, BuyRatio: 1.0, TotalVolume: 50_000}})
	assert.Equal(t, domain.SentimentNeutral, s.Label)
	assert.Equal(t, 0.0, s.Score)
	assert.Equal(t, 0.0, s.Confidence)
}

func TestSentimentSignalThresholds(t *testing.T) {
	e := newTestEngine()

	_, ok := e.SentimentSignal(domain.SmartMoneySentiment{Score: 25, Confidence: 90})
	assert.False(t, ok, "score under 30")

	_, ok = e.SentimentSignal(domain.SmartMoneySentiment{Score: 80, Confidence: 40})
	assert.False(t, ok, "confidence under 50")

	sig, ok := e.SentimentSignal(domain.SmartMoneySentiment{
		Label: domain.SentimentBearish, Score: -60, Confidence: 70, WalletCount: 4,
	})
	require.True(t, ok)
	assert.Equal(t, domain.SignalSmartMoney, sig.Type)
	assert.Empty(t, sig.MarketID)
	assert.Contains(t, sig.Title, "Bearish")
}

func TestDetectCoordinatedBuying(t *testing.T) {
	e := newTestEngine()
	walletTrades := map[string][]domain.Trade{
		walletA: {{MarketID: "m1", Side: domain.TradeSideBuy}},
		walletB: {{MarketID: "m1", Side: domain.TradeSideBuy}},
		walletC: {{MarketID: "m1", Side: domain.TradeSideBuy}},
		walletD: {{MarketID: "m1", Side: domain.TradeSideSell}},
	}

	out := e.DetectCoordinated(walletTrades)
	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, "m1", c.MarketID)
	assert.Equal(t, domain.TradeSideBuy, c.Side)
	assert.Equal(t, 3, c.WalletCount)
	assert.Equal(t, []string{walletA, walletB, walletC}, c.Wallets)

	sig := e.CoordinatedSignal(c)
	assert.Equal(t, domain.SignalCoordinatedBuying, sig.Type)
	assert.Equal(t, "m1", sig.MarketID)
	assert.Equal(t, domain.SeverityHigh, sig.Severity)
}

func TestDetectCoordinatedWalletSampleCapped(t *testing.T) {
	e := newTestEngine()
	walletTrades := make(map[string][]domain.Trade)
	for i := 0; i < 8; i++ {
		addr := fmt.Sprintf("0x%040d", i)
		walletTrades[addr] = []domain.Trade{{MarketID: "m1", Side: domain.TradeSideSell}}
	}

	out := e.DetectCoordinated(walletTrades)
	require.Len(t, out, 1)
	assert.Equal(t, 8, out[0].WalletCount)
	assert.Len(t, out[0].Wallets, 5)
}

func TestDetectCoordinatedBelowThreshold(t *testing.T) {
	e := newTestEngine()
	walletTrades := map[string][]domain.Trade{
		walletA: {{MarketID: "m1", Side: domain.TradeSideBuy}},
		walletB: {{MarketID: "m1", Side: domain.TradeSideBuy}},
	}
	assert.Empty(t, e.DetectCoordinated(walletTrades))
}
