package moneyflow

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

func TestMarketFlowVelocity(t *testing.T) {
	e := newTestEngine()

	// First reading: no baseline, velocity 0.
	f := e.MarketFlow("m1", domain.TradeFlow{BuyVolume: 6000, SellVolume: 4000, BuyPressure: 60}, 1)
	assert.Equal(t, 2000.0, f.NetFlow)
	assert.Equal(t, 0.0, f.FlowVelocity)
	assert.Equal(t, 60.0, f.BuyPressure)
	assert.Equal(t, 1, f.PeriodHours)

	// Net flow doubles: +100% velocity.
	f = e.MarketFlow("m1", domain.TradeFlow{BuyVolume: 9000, SellVolume: 5000, BuyPressure: 64.3}, 1)
	assert.Equal(t, 4000.0, f.NetFlow)
	assert.InDelta(t, 100.0, f.FlowVelocity, 1e-9)

	// Flow flips negative: velocity measured against |prev|.
	f = e.MarketFlow("m1", domain.TradeFlow{BuyVolume: 1000, SellVolume: 3000, BuyPressure: 25}, 1)
	assert.Equal(t, -2000.0, f.NetFlow)
	assert.InDelta(t, -150.0, f.FlowVelocity, 1e-9)
}

func TestMarketFlowVelocityZeroBaseline(t *testing.T) {
	e := newTestEngine()
	e.MarketFlow("m1", domain.TradeFlow{}, 1) // net 0
	f := e.MarketFlow("m1", domain.TradeFlow{BuyVolume: 5000}, 1)
	assert.Equal(t, 0.0, f.FlowVelocity, "previous net flow of 0 yields no velocity")
}

func TestMarketFlowHistoryBounded(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 40; i++ {
		e.MarketFlow("m1", domain.TradeFlow{BuyVolume: float64(i)}, 1)
	}
	assert.Len(t, e.marketHistory["m1"], 24)
}

func TestFlowSignalThresholds(t *testing.T) {
	e := newTestEngine()

	_, ok := e.FlowSignal(domain.MoneyFlow{MarketID: "m1", NetFlow: 30_000}, "q")
	assert.False(t, ok)

	sig, ok := e.FlowSignal(domain.MoneyFlow{MarketID: "m1", NetFlow: 60_000, PeriodHours: 1}, "q")
	require.True(t, ok)
	assert.Equal(t, domain.SignalMoneyFlow, sig.Type)
	assert.Equal(t, domain.SeverityMedium, sig.Severity)
	assert.Contains(t, sig.Title, "Inflow")

	sig, ok = e.FlowSignal(domain.MoneyFlow{MarketID: "m1", NetFlow: -150_000, PeriodHours: 1}, "q")
	require.True(t, ok)
	assert.Equal(t, domain.SeverityHigh, sig.Severity)
	assert.Contains(t, sig.Title, "Outflow")
}

func TestSectorFlows(t *testing.T) {
	e := newTestEngine()
	markets := []domain.MarketSnapshot{
		{ConditionID: "p1", Category: "Politics"},
		{ConditionID: "p2", Category: "Politics"},
		{ConditionID: "c1", Category: "Crypto"},
		{ConditionID: "quiet", Category: "Crypto"}, // no flow entry
	}
	flows := map[string]domain.TradeFlow{
		"p1": {BuyVolume: 8000, SellVolume: 2000},
		"p2": {BuyVolume: 1000, SellVolume: 3000},
		"c1": {},
	}

	sectors := e.SectorFlows(markets, flows)
	require.Len(t, sectors, 2)

	crypto, politics := sectors[0], sectors[1]
	assert.Equal(t, "Crypto", crypto.Category)
	assert.Equal(t, 1, crypto.MarketCount)
	assert.Equal(t, 50.0, crypto.BuyPressure, "no volume defaults to neutral pressure")

	assert.Equal(t, "Politics", politics.Category)
	assert.Equal(t, 2, politics.MarketCount)
	assert.Equal(t, 4000.0, politics.NetFlow)
	assert.InDelta(t, 64.2857, politics.BuyPressure, 0.001) // 9000/14000
}

func TestDetectRotation(t *testing.T) {
	e := newTestEngine()

	steady := []domain.SectorFlow{{Category: "Politics", NetFlow: 10_000}}

	// First cycle: no history yet.
	assert.Empty(t, e.DetectRotation(steady))

	// Flat flow: no rotation.
	assert.Empty(t, e.DetectRotation(steady))

	// Surge to 30k: average is (10k+10k+30k)/3 ≈ 16.7k, deviation +80%.
	rotations := e.DetectRotation([]domain.SectorFlow{{Category: "Politics", NetFlow: 30_000}})
	require.Len(t, rotations, 1)
	r := rotations[0]
	assert.Equal(t, domain.RotationInflow, r.Direction)
	assert.InDelta(t, 0.8, r.Magnitude, 1e-9)

	sig := e.RotationSignal(r)
	assert.Equal(t, domain.SignalSectorRotation, sig.Type)
	assert.Empty(t, sig.MarketID, "rotation is a global signal")
	assert.Equal(t, domain.SeverityHigh, sig.Severity)
}

func TestDetectRotationOutflow(t *testing.T) {
	e := newTestEngine()
	e.DetectRotation([]domain.SectorFlow{{Category: "Crypto", NetFlow: 20_000}})
	rotations := e.DetectRotation([]domain.SectorFlow{{Category: "Crypto", NetFlow: -30_000}})
	require.Len(t, rotations, 1)
	assert.Equal(t, domain.RotationOutflow, rotations[0].Direction)
}

func TestCrossMarketContrast(t *testing.T) {
	e := newTestEngine()
	markets := []domain.MarketSnapshot{
		{ConditionID: "p1", Category: "Politics"},
		{ConditionID: "p2", Category: "Politics"},
		{ConditionID: "p3", Category: "Politics"},
		{ConditionID: "c1", Category: "Crypto"},
	}
	flows := map[string]domain.TradeFlow{
		"p1": {BuyVolume: 9000, SellVolume: 1000},  // +8000, strongest inflow
		"p2": {BuyVolume: 2000, SellVolume: 7000},  // -5000, strongest outflow
		"p3": {BuyVolume: 3000, SellVolume: 3500},  // -500
		"c1": {BuyVolume: 4000, SellVolume: 1000},  // inflow only: no contrast
	}

	contrasts := e.CrossMarketContrast(markets, flows)
	require.Len(t, contrasts, 1)
	c := contrasts[0]
	assert.Equal(t, "Politics", c.Category)
	assert.Equal(t, "p1", c.InflowMarket)
	assert.Equal(t, 8000.0, c.InflowAmount)
	assert.Equal(t, "p2", c.OutflowMarket)
	assert.Equal(t, -5000.0, c.OutflowAmount)
}
