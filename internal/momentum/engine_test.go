package momentum

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), testLogger())
}

func market(id string, volume float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{ConditionID: id, Volume24h: volume}
}

func TestAnalyzeAbstainsOnShortSeries(t *testing.T) {
	e := newTestEngine()
	_, ok := e.Analyze(market("m1", 1000), []float64{0.5, 0.51, 0.52}, 0)
	assert.False(t, ok)
}

func TestAnalyzeNeutralMarket(t *testing.T) {
	e := newTestEngine()
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 0.50
	}
	a, ok := e.Analyze(market("m1", 1000), prices, 0)
	require.True(t, ok)
	assert.Equal(t, 0.0, a.Velocity)
	assert.Equal(t, 100.0, a.RSI) // flat series has zero average loss
	assert.Nil(t, a.Breakout)
	assert.Nil(t, a.MeanReversion)
}

func TestVolumeHistoryBoundedAndSurge(t *testing.T) {
	e := newTestEngine()
	prices := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}

	// Feed 30 flat-volume cycles; history must stay capped at 24.
	for i := 0; i < 30; i++ {
		_, ok := e.Analyze(market("m1", 1000), prices, 0)
		require.True(t, ok)
	}
	assert.Len(t, e.volumes["m1"], 24)

	// A 3x reading against the flat trailing average is a surge.
	a, ok := e.Analyze(market("m1", 3000), prices, 0)
	require.True(t, ok)
	assert.True(t, a.Volume.Surge)
	assert.Greater(t, a.Volume.SurgeMultiplier, 2.0)
	assert.Greater(t, a.Volume.Momentum, 100.0)
}

func TestFirstVolumeObservationIsNeutral(t *testing.T) {
	e := newTestEngine()
	prices := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	a, ok := e.Analyze(market("m1", 1_000_000), prices, 0)
	require.True(t, ok)
	assert.False(t, a.Volume.Surge)
	assert.Equal(t, 1.0, a.Volume.SurgeMultiplier)
	assert.Equal(t, 0.0, a.Volume.Momentum)
}

func TestBullishBreakoutNeedsVolumeConfirmation(t *testing.T) {
	// Price grinds up >5% and closes at the high of the trailing range.
	prices := []float64{0.50, 0.50, 0.51, 0.52, 0.53, 0.55, 0.58, 0.60}

	// Without a volume surge: no breakout.
	e := newTestEngine()
	e.Analyze(market("m1", 1000), prices, 0)
	a, ok := e.Analyze(market("m1", 1000), prices, 0)
	require.True(t, ok)
	assert.Nil(t, a.Breakout)

	// With a volume surge: bullish breakout.
	e = newTestEngine()
	e.Analyze(market("m1", 1000), prices, 0)
	a, ok = e.Analyze(market("m1", 5000), prices, 0)
	require.True(t, ok)
	require.NotNil(t, a.Breakout)
	assert.Equal(t, domain.SignalBullishBreakout, a.Breakout.Type)
	assert.InDelta(t, 20.0, a.Breakout.PriceMovePct, 1e-9) // (0.60−0.50)/0.50
	assert.Equal(t, 0.60, a.Breakout.CurrentPrice)
	assert.Equal(t, 0.50, a.Breakout.Support)
}

func TestBearishBreakdown(t *testing.T) {
	prices := []float64{0.60, 0.60, 0.58, 0.56, 0.54, 0.52, 0.50, 0.48}
	e := newTestEngine()
	e.Analyze(market("m1", 1000), prices, 0)
	a, ok := e.Analyze(market("m1", 5000), prices, 0)
	require.True(t, ok)
	require.NotNil(t, a.Breakout)
	assert.Equal(t, domain.SignalBearishBreakdown, a.Breakout.Type)
	assert.InDelta(t, 20.0, a.Breakout.PriceMovePct, 1e-9) // (0.60−0.48)/0.60
}

func TestMidRangePriceIsNotABreakout(t *testing.T) {
	// Big range but current price sits in the middle.
	prices := []float64{0.40, 0.70, 0.40, 0.70, 0.40, 0.70, 0.55, 0.55}
	e := newTestEngine()
	e.Analyze(market("m1", 1000), prices, 0)
	a, ok := e.Analyze(market("m1", 5000), prices, 0)
	require.True(t, ok)
	assert.Nil(t, a.Breakout)
}

func TestMeanReversionOverbought(t *testing.T) {
	e := newTestEngine()
	// Monotonic rise: RSI=100, final price well above the trailing MA.
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 0.30 + float64(i)*0.02
	}
	a, ok := e.Analyze(market("m1", 1000), prices, 0)
	require.True(t, ok)
	require.NotNil(t, a.MeanReversion)
	assert.Equal(t, domain.SignalOverboughtExtended, a.MeanReversion.Type)
	assert.Equal(t, "short", a.MeanReversion.Direction)
	assert.Greater(t, a.MeanReversion.DeviationPct, 10.0)
}

func TestMeanReversionOversold(t *testing.T) {
	e := newTestEngine()
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 0.80 - float64(i)*0.02
	}
	a, ok := e.Analyze(market("m1", 1000), prices, 0)
	require.True(t, ok)
	require.NotNil(t, a.MeanReversion)
	assert.Equal(t, domain.SignalOversoldExtended, a.MeanReversion.Type)
	assert.Equal(t, "long", a.MeanReversion.Direction)
	assert.Less(t, a.MeanReversion.DeviationPct, -10.0)
}

func TestScoreClampedAndDirectional(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, 100.0, e.score(200, 1000, 100, 1))
	assert.Equal(t, -100.0, e.score(-200, -1000, 0, -1))
	assert.Equal(t, 0.0, e.score(0, 0, 50, 0))
	// RSI 75 alone contributes (75−50)×0.4 = 10.
	assert.InDelta(t, 10.0, e.score(0, 0, 75, 0), 1e-9)
}

func TestAnalyzeIdempotentPerCycle(t *testing.T) {
	// Two engines fed the same observations produce the same analysis.
	prices := []float64{0.50, 0.51, 0.52, 0.53, 0.54, 0.55}
	e1, e2 := newTestEngine(), newTestEngine()
	for _, e := range []*Engine{e1, e2} {
		e.Analyze(market("m1", 1000), prices, 0.2)
	}
	a1, ok1 := e1.Analyze(market("m1", 2500), prices, 0.2)
	a2, ok2 := e2.Analyze(market("m1", 2500), prices, 0.2)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, a1, a2)
}
