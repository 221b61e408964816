package momentum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

func sweepMarket(price, volume float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ConditionID:  "m1",
		Question:     "Will it happen?",
		CurrentPrice: price,
		Volume24h:    volume,
	}
}

func signalTypes(signals []domain.Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.Type
	}
	return out
}

func TestSweepSilentOnFirstCycle(t *testing.T) {
	s := NewSweep(DefaultSweepConfig(), testLogger())
	signals := s.Run(sweepMarket(0.50, 100_000), nil)
	assert.Empty(t, signals)
}

func TestSweepPriceSpikeAndDrop(t *testing.T) {
	s := NewSweep(DefaultSweepConfig(), testLogger())
	s.Run(sweepMarket(0.50, 0), nil)

	// +4%: spike at medium severity.
	signals := s.Run(sweepMarket(0.52, 0), nil)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalPriceSpike, signals[0].Type)
	assert.Equal(t, domain.SeverityMedium, signals[0].Severity)

	// −10% from the new baseline: drop at high severity.
	signals = s.Run(sweepMarket(0.468, 0), nil)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalPriceDrop, signals[0].Type)
	assert.Equal(t, domain.SeverityHigh, signals[0].Severity)
}

func TestSweepSmallMoveIgnored(t *testing.T) {
	s := NewSweep(DefaultSweepConfig(), testLogger())
	s.Run(sweepMarket(0.50, 0), nil)
	signals := s.Run(sweepMarket(0.51, 0), nil) // +2%
	assert.Empty(t, signals)
}

func TestSweepVolumeSurgeNeedsFloor(t *testing.T) {
	s := NewSweep(DefaultSweepConfig(), testLogger())

	// Thin market: +50% but under the $50k floor — ignored.
	s.Run(sweepMarket(0.50, 10_000), nil)
	assert.Empty(t, s.Run(sweepMarket(0.50, 15_000), nil))

	// Liquid market: +30% over the floor — medium surge.
	s2 := NewSweep(DefaultSweepConfig(), testLogger())
	s2.Run(sweepMarket(0.50, 100_000), nil)
	signals := s2.Run(sweepMarket(0.50, 130_000), nil)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalVolumeSurge, signals[0].Type)
	assert.Equal(t, domain.SeverityMedium, signals[0].Severity)

	// +60% escalates to high.
	signals = s2.Run(sweepMarket(0.50, 210_000), nil)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SeverityHigh, signals[0].Severity)
}

func TestSweepOpportunityEcho(t *testing.T) {
	s := NewSweep(DefaultSweepConfig(), testLogger())
	opps := []domain.Opportunity{
		{MarketID: "m1", Type: domain.OpportunitySpread, Confidence: 65, ProfitPotential: 3},
		{MarketID: "m1", Type: domain.OpportunityArbitrage, Confidence: 88, ProfitPotential: 2.5},
		{MarketID: "other", Type: domain.OpportunityNegRisk, Confidence: 99, ProfitPotential: 9},
	}

	signals := s.Run(sweepMarket(0.50, 0), opps)
	require.Len(t, signals, 1)
	sig := signals[0]
	assert.Equal(t, domain.SignalHighConfidence, sig.Type)
	assert.Equal(t, domain.SeverityCritical, sig.Severity) // 88 ≥ 85
	assert.Equal(t, "arbitrage", sig.Data["opportunity_type"])
}

func TestSweepOpportunityEchoThresholds(t *testing.T) {
	s := NewSweep(DefaultSweepConfig(), testLogger())

	lowConfidence := []domain.Opportunity{{MarketID: "m1", Confidence: 60, ProfitPotential: 5}}
	assert.Empty(t, s.Run(sweepMarket(0.50, 0), lowConfidence))

	lowProfit := []domain.Opportunity{{MarketID: "m1", Confidence: 90, ProfitPotential: 0.5}}
	assert.Empty(t, s.Run(sweepMarket(0.50, 0), lowProfit))
}

func TestSweepNearResolution(t *testing.T) {
	s := NewSweep(DefaultSweepConfig(), testLogger())

	signals := s.Run(sweepMarket(0.97, 0), nil)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalNearResolution, signals[0].Type)
	assert.Equal(t, "YES", signals[0].Data["likely_outcome"])

	s2 := NewSweep(DefaultSweepConfig(), testLogger())
	signals = s2.Run(sweepMarket(0.03, 0), nil)
	require.Len(t, signals, 1)
	assert.Equal(t, "NO", signals[0].Data["likely_outcome"])

	s3 := NewSweep(DefaultSweepConfig(), testLogger())
	assert.Empty(t, s3.Run(sweepMarket(0.50, 0), nil))
}
