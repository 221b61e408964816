package domain

import "time"

// CorrelationEdge is a persisted pairwise correlation between two markets.
// The pair is unordered; MarketA/MarketB are stored in lexicographic order so
// the upsert key is stable. Edges are only persisted when |Score| meets the
// engine threshold — the absence of an edge is distinct from a zero score.
type CorrelationEdge struct {
	MarketA    string
	MarketB    string
	Score      float64 // Pearson r, in [-1,1]
	SampleSize int     // aligned data points used
	UpdatedAt  time.Time
}

// NormalizePair returns the two market IDs in lexicographic order.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// LeadingIndicator records that one market's lagged returns predict
// another's subsequent returns better than the reverse.
type LeadingIndicator struct {
	Leader   string
	Follower string
	Score    float64 // lagged Pearson r
}

// CategoryCorrelation is the mean absolute correlation among persisted edges
// within one category.
type CategoryCorrelation struct {
	Category    string
	MarketCount int
	AvgAbsScore float64
	EdgeCount   int
}
