// Package stats implements the numeric primitives shared by the detection
// engines: Pearson correlation with hourly series alignment, RSI, price
// velocity, return volatility, and orderbook depth/imbalance arithmetic.
//
// All functions are pure and operate on plain slices; degenerate inputs
// (insufficient points, zero variance) return defined neutral values rather
// than errors so callers can abstain per market.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/polysignal/engine/internal/domain"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation, or 0 for fewer than two
// points.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

// Returns converts a price series into sequential period returns. Entries
// following a non-positive price are skipped.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			out = append(out, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	return out
}

// Velocity measures price acceleration: the difference between the average
// of the last `periods` returns and the average of the earlier returns,
// scaled by 100. It returns 0 when the series has fewer than periods+1
// prices or fewer than `periods` usable returns.
func Velocity(prices []float64, periods int) float64 {
	if periods <= 0 || len(prices) < periods+1 {
		return 0
	}
	rets := Returns(prices)
	if len(rets) < periods {
		return 0
	}
	recent := rets[len(rets)-periods:]
	earlier := rets[:len(rets)-periods]
	if len(earlier) == 0 {
		earlier = rets
	}
	return (Mean(recent) - Mean(earlier)) * 100
}

// RSI computes the Relative Strength Index over the trailing `period`
// price changes. It returns the neutral value 50 when the series is shorter
// than period+1 points, and 100 when the average loss is zero.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := sum(gains[len(gains)-period:]) / float64(period)
	avgLoss := sum(losses[len(losses)-period:]) / float64(period)

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// Pearson returns the Pearson correlation coefficient of two equal-length
// series. Mismatched lengths, fewer than two points, or zero variance in
// either series yield 0. Callers distinguish "no edge" from a genuine zero
// score by checking sample sufficiency before calling.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var sumXY, sumX2, sumY2 float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sumXY += dx * dy
		sumX2 += dx * dx
		sumY2 += dy * dy
	}

	if sumX2 == 0 || sumY2 == 0 {
		return 0
	}
	return sumXY / math.Sqrt(sumX2*sumY2)
}

// AlignHourly buckets two price series to the hour and returns the values at
// their common buckets, in chronological order. When a series has several
// points in one hour the last one wins. The caller enforces its own minimum
// sample count on the result.
func AlignHourly(a, b []domain.PricePoint) ([]float64, []float64) {
	mapA := bucketHourly(a)
	mapB := bucketHourly(b)

	common := make([]time.Time, 0, len(mapA))
	for ts := range mapA {
		if _, ok := mapB[ts]; ok {
			common = append(common, ts)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i].Before(common[j]) })

	alignedA := make([]float64, len(common))
	alignedB := make([]float64, len(common))
	for i, ts := range common {
		alignedA[i] = mapA[ts]
		alignedB[i] = mapB[ts]
	}
	return alignedA, alignedB
}

func bucketHourly(points []domain.PricePoint) map[time.Time]float64 {
	m := make(map[time.Time]float64, len(points))
	for _, p := range points {
		m[p.Timestamp.UTC().Truncate(time.Hour)] = p.Price
	}
	return m
}

// Depth returns the price-weighted size of the top `topN` levels. The levels
// must already be sorted best-first (bids descending, asks ascending).
func Depth(levels []domain.PriceLevel, topN int) float64 {
	if topN > len(levels) {
		topN = len(levels)
	}
	var depth float64
	for _, l := range levels[:topN] {
		depth += l.Price * l.Size
	}
	return depth
}

// Imbalance returns the normalized bid/ask depth difference in [-1,1], or 0
// when both sides are empty.
func Imbalance(bidDepth, askDepth float64) float64 {
	total := bidDepth + askDepth
	if total == 0 {
		return 0
	}
	return (bidDepth - askDepth) / total
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
