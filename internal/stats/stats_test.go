package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

func TestRSIMonotonicIncreasing(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 0.30 + float64(i)*0.01
	}
	assert.Equal(t, 100.0, RSI(prices, 14))
}

func TestRSIMonotonicDecreasing(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 0.80 - float64(i)*0.01
	}
	assert.Equal(t, 0.0, RSI(prices, 14))
}

func TestRSIInsufficientHistory(t *testing.T) {
	prices := []float64{0.5, 0.51, 0.52}
	assert.Equal(t, 50.0, RSI(prices, 14))
}

func TestRSIMixedSeries(t *testing.T) {
	// Alternating equal gains and losses should hover near 50.
	prices := make([]float64, 30)
	prices[0] = 0.50
	for i := 1; i < len(prices); i++ {
		if i%2 == 0 {
			prices[i] = prices[i-1] + 0.02
		} else {
			prices[i] = prices[i-1] - 0.02
		}
	}
	rsi := RSI(prices, 14)
	assert.InDelta(t, 50.0, rsi, 10.0)
}

func TestPearsonIdenticalSeries(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = v + 0.0001*float64(i%3) // epsilon noise
	}
	r := Pearson(x, y)
	assert.InDelta(t, 1.0, r, 0.01)
}

func TestPearsonAntiCorrelated(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 1.0 - v
	}
	assert.InDelta(t, -1.0, Pearson(x, y), 1e-9)
}

func TestPearsonDegenerate(t *testing.T) {
	flat := []float64{0.5, 0.5, 0.5, 0.5}
	moving := []float64{0.1, 0.2, 0.3, 0.4}
	assert.Equal(t, 0.0, Pearson(flat, moving))
	assert.Equal(t, 0.0, Pearson(moving, flat))
	assert.Equal(t, 0.0, Pearson([]float64{1}, []float64{1}))
	assert.Equal(t, 0.0, Pearson(moving, moving[:2]))
}

func TestAlignHourly(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, offsets []time.Duration, prices []float64) []domain.PricePoint {
		pts := make([]domain.PricePoint, len(offsets))
		for i := range offsets {
			pts[i] = domain.PricePoint{MarketID: id, Price: prices[i], Timestamp: base.Add(offsets[i])}
		}
		return pts
	}

	// Series A has hours 0,1,2,3; series B has hours 1,2,3,4 plus a
	// duplicate inside hour 2 that should win.
	a := mk("a",
		[]time.Duration{0, time.Hour, 2 * time.Hour, 3 * time.Hour},
		[]float64{0.10, 0.20, 0.30, 0.40})
	b := mk("b",
		[]time.Duration{time.Hour, 2 * time.Hour, 2*time.Hour + 30*time.Minute, 3 * time.Hour, 4 * time.Hour},
		[]float64{0.50, 0.55, 0.60, 0.70, 0.80})

	alignedA, alignedB := AlignHourly(a, b)
	require.Len(t, alignedA, 3)
	require.Len(t, alignedB, 3)
	assert.Equal(t, []float64{0.20, 0.30, 0.40}, alignedA)
	assert.Equal(t, []float64{0.50, 0.60, 0.70}, alignedB)
}

func TestAlignHourlyNoOverlap(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := []domain.PricePoint{{Price: 0.1, Timestamp: base}}
	b := []domain.PricePoint{{Price: 0.2, Timestamp: base.Add(5 * time.Hour)}}
	alignedA, alignedB := AlignHourly(a, b)
	assert.Empty(t, alignedA)
	assert.Empty(t, alignedB)
}

func TestVelocity(t *testing.T) {
	// Flat then accelerating upward: recent returns exceed earlier returns.
	prices := []float64{0.50, 0.50, 0.50, 0.50, 0.50, 0.50, 0.52, 0.54, 0.57, 0.60, 0.64}
	v := Velocity(prices, 5)
	assert.Greater(t, v, 0.0)

	// Too short: abstain with 0.
	assert.Equal(t, 0.0, Velocity([]float64{0.5, 0.6}, 5))
}

func TestVelocityDeceleration(t *testing.T) {
	prices := []float64{0.50, 0.55, 0.60, 0.66, 0.72, 0.79, 0.79, 0.79, 0.79, 0.79, 0.79}
	assert.Less(t, Velocity(prices, 5), 0.0)
}

func TestDepthAndImbalance(t *testing.T) {
	bids := []domain.PriceLevel{{Price: 0.50, Size: 100}, {Price: 0.49, Size: 200}, {Price: 0.48, Size: 50}}
	asks := []domain.PriceLevel{{Price: 0.52, Size: 100}}

	bidDepth := Depth(bids, 2)
	assert.InDelta(t, 0.50*100+0.49*200, bidDepth, 1e-9)

	askDepth := Depth(asks, 2)
	assert.InDelta(t, 52.0, askDepth, 1e-9)

	imb := Imbalance(bidDepth, askDepth)
	assert.Greater(t, imb, 0.0)
	assert.LessOrEqual(t, imb, 1.0)

	assert.Equal(t, 0.0, Imbalance(0, 0))
	assert.Equal(t, 1.0, Imbalance(100, 0))
	assert.Equal(t, -1.0, Imbalance(0, 100))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{1}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, Clamp(10, 0, 5))
	assert.Equal(t, 0.0, Clamp(-1, 0, 5))
	assert.Equal(t, 3.0, Clamp(3, 0, 5))
}
