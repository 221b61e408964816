package correlation

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

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func series(id string, prices []float64) []domain.PricePoint {
	pts := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		pts[i] = domain.PricePoint{MarketID: id, Price: p, Timestamp: base.Add(time.Duration(i) * time.Hour)}
	}
	return pts
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestPairwiseCorrelatedMarkets(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	now := time.Now()

	up := ramp(0.30, 0.02, 12)
	down := ramp(0.70, -0.02, 12)
	input := map[string][]domain.PricePoint{
		"zeta":  series("zeta", up),
		"alpha": series("alpha", down),
	}

	edges := e.Pairwise(input, now)
	require.Len(t, edges, 1)
	edge := edges[0]
	// Pair normalized lexicographically regardless of map iteration.
	assert.Equal(t, "alpha", edge.MarketA)
	assert.Equal(t, "zeta", edge.MarketB)
	assert.InDelta(t, -1.0, edge.Score, 1e-9)
	assert.Equal(t, 12, edge.SampleSize)
	assert.Equal(t, now, edge.UpdatedAt)
}

func TestPairwiseInsufficientOverlapProducesNoEdge(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())

	// Perfectly correlated but only 5 overlapping hours: no edge, which is
	// different from an edge with score 0.
	a := series("a", ramp(0.30, 0.02, 5))
	b := series("b", ramp(0.30, 0.02, 5))
	edges := e.Pairwise(map[string][]domain.PricePoint{"a": a, "b": b}, time.Now())
	assert.Empty(t, edges)
}

func TestPairwiseWeakCorrelationFiltered(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())

	trending := ramp(0.30, 0.02, 16)
	noisy := make([]float64, 16)
	for i := range noisy {
		// Alternating series: essentially uncorrelated with the trend.
		if i%2 == 0 {
			noisy[i] = 0.40
		} else {
			noisy[i] = 0.60
		}
	}
	edges := e.Pairwise(map[string][]domain.PricePoint{
		"a": series("a", trending),
		"b": series("b", noisy),
	}, time.Now())
	assert.Empty(t, edges)
}

func TestLeadingIndicators(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())

	// leader's returns at hour t reappear in follower at hour t+1: build
	// follower as leader shifted forward one hour.
	leaderPrices := []float64{
		0.50, 0.52, 0.49, 0.53, 0.51, 0.55, 0.52, 0.57, 0.54, 0.59,
		0.56, 0.61, 0.58, 0.63, 0.60, 0.65, 0.62, 0.67, 0.64, 0.69,
	}
	followerPrices := append([]float64{0.50}, leaderPrices[:len(leaderPrices)-1]...)

	input := map[string][]domain.PricePoint{
		"leader":   series("leader", leaderPrices),
		"follower": series("follower", followerPrices),
	}

	indicators := e.LeadingIndicators(input)
	require.Len(t, indicators, 1)
	assert.Equal(t, "leader", indicators[0].Leader)
	assert.Equal(t, "follower", indicators[0].Follower)
	assert.Greater(t, indicators[0].Score, 0.5)
}

func TestLeadingIndicatorsShortSeriesSkipped(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())
	input := map[string][]domain.PricePoint{
		"a": series("a", ramp(0.30, 0.02, 8)),
		"b": series("b", ramp(0.30, 0.02, 8)),
	}
	assert.Empty(t, e.LeadingIndicators(input))
}

func TestCategoryAverages(t *testing.T) {
	e := NewEngine(DefaultConfig(), testLogger())

	categories := map[string]string{
		"p1": "Politics", "p2": "Politics", "p3": "Politics",
		"c1": "Crypto", "c2": "Crypto",
	}
	edges := []domain.CorrelationEdge{
		{MarketA: "p1", MarketB: "p2", Score: 0.8},
		{MarketA: "p2", MarketB: "p3", Score: -0.6},
		{MarketA: "c1", MarketB: "c2", Score: 0.2},  // below category floor
		{MarketA: "p1", MarketB: "c1", Score: 0.9},  // cross-category, ignored
		{MarketA: "p1", MarketB: "x9", Score: 0.9},  // unknown market, ignored
	}

	out := e.CategoryAverages(categories, edges)
	require.Len(t, out, 1)
	assert.Equal(t, "Politics", out[0].Category)
	assert.Equal(t, 3, out[0].MarketCount)
	assert.Equal(t, 2, out[0].EdgeCount)
	assert.InDelta(t, 0.7, out[0].AvgAbsScore, 1e-9)
}
