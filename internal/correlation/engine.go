// Package correlation computes pairwise price correlations between markets,
// lag-1 leading-indicator relationships, and per-category correlation
// summaries. All computation is pure over price series supplied by the
// caller; persistence of qualifying edges is the worker's job.
package correlation

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/stats"
)

// Config holds the correlation thresholds.
type Config struct {
	// MinDataPoints is the minimum aligned hourly samples for a pairwise
	// correlation to be meaningful.
	MinDataPoints int
	// PersistThreshold is the minimum |r| worth keeping as an edge.
	PersistThreshold float64
	// LeadThreshold is the minimum |lagged r| for a leading relationship.
	LeadThreshold float64
	// MinReturnPoints is the minimum hourly returns a series needs before
	// it participates in leading-indicator analysis.
	MinReturnPoints int
	// MinLagPairs is the minimum overlapping (t, t+1) pairs for a lagged
	// correlation.
	MinLagPairs int
	// CategoryMinScore filters edges entering the category average.
	CategoryMinScore float64
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		MinDataPoints:    10,
		PersistThreshold: 0.5,
		LeadThreshold:    0.5,
		MinReturnPoints:  12,
		MinLagPairs:      10,
		CategoryMinScore: 0.3,
	}
}

// Engine computes correlation relationships. It holds no per-market state.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a correlation engine.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger.With(slog.String("component", "correlation"))}
}

// Pairwise correlates every market pair's hourly-aligned price series and
// returns the edges clearing the persist threshold, pairs normalized and
// sorted for deterministic output. Pairs with too few aligned samples
// produce no edge at all.
func (e *Engine) Pairwise(series map[string][]domain.PricePoint, now time.Time) []domain.CorrelationEdge {
	ids := sortedKeys(series)

	var edges []domain.CorrelationEdge
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			alignedA, alignedB := stats.AlignHourly(series[a], series[b])
			if len(alignedA) < e.cfg.MinDataPoints {
				continue
			}

			r := stats.Pearson(alignedA, alignedB)
			if math.Abs(r) < e.cfg.PersistThreshold {
				continue
			}

			ma, mb := domain.NormalizePair(a, b)
			edges = append(edges, domain.CorrelationEdge{
				MarketA:    ma,
				MarketB:    mb,
				Score:      r,
				SampleSize: len(alignedA),
				UpdatedAt:  now,
			})

			if math.Abs(r) >= 0.7 {
				e.logger.Info("strong correlation",
					slog.String("market_a", ma),
					slog.String("market_b", mb),
					slog.Float64("score", r),
				)
			}
		}
	}
	return edges
}

// LeadingIndicators looks for markets whose hourly returns predict another
// market's next-hour returns. For each pair it correlates A[t] with B[t+1]
// and the reverse; the stronger direction wins when it clears the threshold.
func (e *Engine) LeadingIndicators(series map[string][]domain.PricePoint) []domain.LeadingIndicator {
	returns := make(map[string][]float64, len(series))
	for id, pts := range series {
		prices := hourlyPrices(pts)
		rets := stats.Returns(prices)
		if len(rets) >= e.cfg.MinReturnPoints {
			returns[id] = rets
		}
	}

	ids := sortedKeys(returns)

	var out []domain.LeadingIndicator
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			retsA, retsB := returns[a], returns[b]
			n := len(retsA) - 1
			if len(retsB)-1 < n {
				n = len(retsB) - 1
			}
			if n < e.cfg.MinLagPairs {
				continue
			}

			aLeads := stats.Pearson(retsA[:n], retsB[1:n+1])
			bLeads := stats.Pearson(retsB[:n], retsA[1:n+1])

			switch {
			case math.Abs(aLeads) > e.cfg.LeadThreshold && math.Abs(aLeads) > math.Abs(bLeads):
				out = append(out, domain.LeadingIndicator{Leader: a, Follower: b, Score: aLeads})
				e.logger.Info("leading indicator",
					slog.String("leader", a), slog.String("follower", b), slog.Float64("score", aLeads))
			case math.Abs(bLeads) > e.cfg.LeadThreshold && math.Abs(bLeads) > math.Abs(aLeads):
				out = append(out, domain.LeadingIndicator{Leader: b, Follower: a, Score: bLeads})
				e.logger.Info("leading indicator",
					slog.String("leader", b), slog.String("follower", a), slog.Float64("score", bLeads))
			}
		}
	}
	return out
}

// CategoryAverages summarizes persisted edges per category. An edge counts
// toward a category when both of its markets belong to it and its absolute
// score clears the category floor.
func (e *Engine) CategoryAverages(categories map[string]string, edges []domain.CorrelationEdge) []domain.CategoryCorrelation {
	markets := make(map[string]map[string]bool)
	scores := make(map[string][]float64)
	for _, edge := range edges {
		catA, okA := categories[edge.MarketA]
		catB, okB := categories[edge.MarketB]
		if !okA || !okB || catA != catB {
			continue
		}
		if math.Abs(edge.Score) < e.cfg.CategoryMinScore {
			continue
		}
		if markets[catA] == nil {
			markets[catA] = make(map[string]bool)
		}
		markets[catA][edge.MarketA] = true
		markets[catA][edge.MarketB] = true
		scores[catA] = append(scores[catA], math.Abs(edge.Score))
	}

	cats := sortedKeys(scores)
	out := make([]domain.CategoryCorrelation, 0, len(cats))
	for _, cat := range cats {
		out = append(out, domain.CategoryCorrelation{
			Category:    cat,
			MarketCount: len(markets[cat]),
			AvgAbsScore: stats.Mean(scores[cat]),
			EdgeCount:   len(scores[cat]),
		})
	}
	return out
}

// hourlyPrices buckets a point series to the hour and returns the bucket
// values in chronological order, last point per hour winning.
func hourlyPrices(points []domain.PricePoint) []float64 {
	buckets := make(map[time.Time]float64, len(points))
	for _, p := range points {
		buckets[p.Timestamp.UTC().Truncate(time.Hour)] = p.Price
	}
	hours := make([]time.Time, 0, len(buckets))
	for ts := range buckets {
		hours = append(hours, ts)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	out := make([]float64, len(hours))
	for i, ts := range hours {
		out[i] = buckets[ts]
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
