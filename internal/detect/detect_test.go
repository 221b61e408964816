package detect

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParityWithinToleranceAbstains(t *testing.T) {
	p := NewParity(DefaultParityConfig(), testLogger())
	cases := [][]float64{
		{0.5, 0.5},
		{0.495, 0.505},
		{0.3, 0.3, 0.395}, // sum 0.995, deviation 0.005
		{0.34, 0.33, 0.34}, // sum 1.01, deviation exactly at threshold
	}
	for _, prices := range cases {
		_, ok := p.Detect(domain.MarketSnapshot{ConditionID: "m1", OutcomePrices: prices}, time.Now())
		assert.False(t, ok, "prices %v", prices)
	}
}

func TestParityDeviationEmits(t *testing.T) {
	p := NewParity(DefaultParityConfig(), testLogger())
	m := domain.MarketSnapshot{
		ConditionID:   "m1",
		OutcomePrices: []float64{0.60, 0.50},
		Liquidity:     50_000,
	}
	opp, ok := p.Detect(m, time.Now())
	require.True(t, ok)
	assert.Equal(t, domain.OpportunityArbitrage, opp.Type)
	assert.InDelta(t, 10.0, opp.ProfitPotential, 1e-9) // 100 × |1.10−1|
	// 50 + min(50000/10000,20)=5 + 200×0.10=20 → 75
	assert.InDelta(t, 75.0, opp.Confidence, 1e-9)
	assert.Equal(t, "m1", opp.MarketID)
}

func TestParityConfidenceCappedAt90(t *testing.T) {
	p := NewParity(DefaultParityConfig(), testLogger())
	m := domain.MarketSnapshot{
		ConditionID:   "m1",
		OutcomePrices: []float64{0.90, 0.40}, // deviation 0.30
		Liquidity:     1_000_000,
	}
	opp, ok := p.Detect(m, time.Now())
	require.True(t, ok)
	assert.Equal(t, 90.0, opp.Confidence)
}

func TestParityRequiresTwoValidPrices(t *testing.T) {
	p := NewParity(DefaultParityConfig(), testLogger())
	_, ok := p.Detect(domain.MarketSnapshot{OutcomePrices: []float64{0.95}}, time.Now())
	assert.False(t, ok)

	nan := []float64{0.95, nanf()}
	_, ok = p.Detect(domain.MarketSnapshot{OutcomePrices: nan}, time.Now())
	assert.False(t, ok)
}

func nanf() float64 {
	var zero float64
	return zero / zero
}

func TestSpreadCapture(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	m := domain.MarketSnapshot{ConditionID: "m1", Liquidity: 10_000}
	book := domain.OrderbookSnapshot{TokenID: "t1", BestBid: 0.40, BestAsk: 0.50}

	opp, ok := o.DetectSpread(m, book, time.Now())
	require.True(t, ok)
	assert.Equal(t, domain.OpportunitySpread, opp.Type)
	// (0.50−0.40)/0.50 = 20%; >5% captures at 0.6 → 12.0
	assert.InDelta(t, 12.0, opp.ProfitPotential, 1e-9)
	assert.InDelta(t, 20.0, opp.Details["spread_pct"].(float64), 1e-9)
	// 50 + min(10000/5000,30)=2 + min(20,15)=15 → 67
	assert.InDelta(t, 67.0, opp.Confidence, 1e-9)
}

func TestSpreadCaptureRateTiers(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	m := domain.MarketSnapshot{ConditionID: "m1"}

	// ~3% spread captures at 0.5.
	opp, ok := o.DetectSpread(m, domain.OrderbookSnapshot{BestBid: 0.485, BestAsk: 0.50}, time.Now())
	require.True(t, ok)
	assert.Equal(t, 0.5, opp.Details["capture_rate"])

	// ~1% spread captures at 0.4.
	opp, ok = o.DetectSpread(m, domain.OrderbookSnapshot{BestBid: 0.495, BestAsk: 0.50}, time.Now())
	require.True(t, ok)
	assert.Equal(t, 0.4, opp.Details["capture_rate"])
}

func TestSpreadTightOrCrossedAbstains(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	m := domain.MarketSnapshot{ConditionID: "m1"}

	_, ok := o.DetectSpread(m, domain.OrderbookSnapshot{BestBid: 0.499, BestAsk: 0.50}, time.Now())
	assert.False(t, ok, "0.2%% spread is inside the threshold")

	_, ok = o.DetectSpread(m, domain.OrderbookSnapshot{BestBid: 0.51, BestAsk: 0.50}, time.Now())
	assert.False(t, ok, "crossed book")

	_, ok = o.DetectSpread(m, domain.OrderbookSnapshot{BestBid: 0, BestAsk: 0.50}, time.Now())
	assert.False(t, ok, "one-sided book")
}

func TestOrderbookArbitrage(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	m := domain.MarketSnapshot{ConditionID: "m1", Liquidity: 100_000}
	books := []domain.OrderbookSnapshot{
		{BestBid: 0.55, BestAsk: 0.57}, // mid 0.56
		{BestBid: 0.47, BestAsk: 0.49}, // mid 0.48; sum 1.04
	}

	opp, ok := o.DetectArbitrage(m, books, time.Now())
	require.True(t, ok)
	assert.InDelta(t, 4.0, opp.ProfitPotential, 1e-9)
	// 60 + min(200×0.04,20)=8 + min(100000/10000,15)=10 → 78
	assert.InDelta(t, 78.0, opp.Confidence, 1e-9)
}

func TestOrderbookArbitrageAbstains(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	m := domain.MarketSnapshot{ConditionID: "m1"}

	balanced := []domain.OrderbookSnapshot{
		{BestBid: 0.49, BestAsk: 0.51},
		{BestBid: 0.49, BestAsk: 0.51},
	}
	_, ok := o.DetectArbitrage(m, balanced, time.Now())
	assert.False(t, ok, "mids summing to 1")

	_, ok = o.DetectArbitrage(m, balanced[:1], time.Now())
	assert.False(t, ok, "needs two books")

	oneSided := []domain.OrderbookSnapshot{
		{BestBid: 0.55, BestAsk: 0.57},
		{BestBid: 0, BestAsk: 0.49},
	}
	_, ok = o.DetectArbitrage(m, oneSided, time.Now())
	assert.False(t, ok, "one-sided book")
}

func TestNegRiskOverpricedGroupAbstains(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	members := []NegRiskMember{
		{MarketID: "a", Mid: 0.30, Liquidity: 10_000},
		{MarketID: "b", Mid: 0.35, Liquidity: 10_000},
		{MarketID: "c", Mid: 0.20, Liquidity: 10_000},
	}
	// total_no_cost = 0.70+0.65+0.80 = 2.15 — no free lunch.
	_, ok := o.DetectNegRisk("g1", members, time.Now())
	assert.False(t, ok)
}

func TestNegRiskUnderpricedGroupEmits(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	members := []NegRiskMember{
		{MarketID: "a", Mid: 0.55, Liquidity: 40_000},
		{MarketID: "b", Mid: 0.55, Liquidity: 20_000},
	}
	// total_no_cost = 0.45+0.45 = 0.90.
	opp, ok := o.DetectNegRisk("g1", members, time.Now())
	require.True(t, ok)
	assert.Equal(t, domain.OpportunityNegRisk, opp.Type)
	assert.Equal(t, "g1", opp.MarketID)
	assert.InDelta(t, 10.0, opp.ProfitPotential, 0.1)
	assert.Equal(t, 99.0, opp.Confidence)
	assert.InDelta(t, 1_000.0, opp.Details["max_position"].(float64), 1e-6) // 5% of thinnest book
}

func TestNegRiskRequiresGroup(t *testing.T) {
	o := NewOrderbook(DefaultOrderbookConfig(), testLogger())
	_, ok := o.DetectNegRisk("g1", []NegRiskMember{{MarketID: "a", Mid: 0.5}}, time.Now())
	assert.False(t, ok)

	degenerate := []NegRiskMember{{MarketID: "a", Mid: 0.5}, {MarketID: "b", Mid: 0}}
	_, ok = o.DetectNegRisk("g1", degenerate, time.Now())
	assert.False(t, ok)
}
