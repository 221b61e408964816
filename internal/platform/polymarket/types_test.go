package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSliceDoubleEncoded(t *testing.T) {
	var s stringSlice
	require.NoError(t, json.Unmarshal([]byte(`"[\"0.62\",\"0.38\"]"`), &s))
	assert.Equal(t, stringSlice{"0.62", "0.38"}, s)
	assert.Equal(t, []float64{0.62, 0.38}, s.floats())
}

func TestStringSliceDirectArray(t *testing.T) {
	var s stringSlice
	require.NoError(t, json.Unmarshal([]byte(`["123","456"]`), &s))
	assert.Equal(t, stringSlice{"123", "456"}, s)
}

func TestFlexFloatFromString(t *testing.T) {
	var f flexFloat
	require.NoError(t, json.Unmarshal([]byte(`"12345.67"`), &f))
	assert.InDelta(t, 12345.67, float64(f), 1e-9)

	require.NoError(t, json.Unmarshal([]byte(`42`), &f))
	assert.InDelta(t, 42.0, float64(f), 1e-9)

	require.NoError(t, json.Unmarshal([]byte(`""`), &f))
	assert.Zero(t, float64(f))
}

func TestMarketToSnapshotFallsBackToEvent(t *testing.T) {
	raw := `{
		"id": "901",
		"title": "Who wins the nomination?",
		"category": "Politics",
		"active": true,
		"closed": false,
		"negRisk": true,
		"tags": [{"label": "Elections"}],
		"markets": [{
			"conditionId": "0xabc",
			"question": "",
			"volume24hr": "125000",
			"liquidityNum": 40000,
			"outcomePrices": "[\"0.55\",\"0.45\"]",
			"clobTokenIds": "[\"111\",\"222\"]",
			"active": "true",
			"closed": "false"
		}]
	}`

	var event APIEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	require.Len(t, event.Markets, 1)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := event.Markets[0].ToSnapshot(&event, now)

	assert.Equal(t, "0xabc", snap.ConditionID)
	assert.Equal(t, "Who wins the nomination?", snap.Question)
	assert.Equal(t, "Politics", snap.Category)
	assert.Equal(t, []string{"Elections"}, snap.Tags)
	assert.True(t, snap.NegRisk)
	assert.Equal(t, "901", snap.NegRiskGroupID, "group falls back to the event ID")
	assert.InDelta(t, 125000.0, snap.Volume24h, 1e-9)
	assert.InDelta(t, 0.55, snap.CurrentPrice, 1e-9)
	assert.Equal(t, []string{"111", "222"}, snap.TokenIDs)
	assert.Equal(t, now, snap.FetchedAt)
}

func TestBookToSnapshotSortsAndDerives(t *testing.T) {
	book := APIBook{
		Market:    "0xabc",
		AssetID:   "111",
		Timestamp: "1717243200000",
		Bids: []APIBookLevel{
			{Price: "0.48", Size: "100"},
			{Price: "0.50", Size: "200"},
		},
		Asks: []APIBookLevel{
			{Price: "0.56", Size: "150"},
			{Price: "0.54", Size: "80"},
		},
	}

	snap := book.ToSnapshot()

	assert.Equal(t, "111", snap.TokenID)
	assert.Equal(t, "0xabc", snap.MarketID)
	assert.InDelta(t, 0.50, snap.Bids[0].Price, 1e-9, "bids sorted descending")
	assert.InDelta(t, 0.54, snap.Asks[0].Price, 1e-9, "asks sorted ascending")
	assert.InDelta(t, 0.50, snap.BestBid, 1e-9)
	assert.InDelta(t, 0.54, snap.BestAsk, 1e-9)
	assert.InDelta(t, 0.52, snap.MidPrice, 1e-9)
	assert.InDelta(t, 0.04, snap.Spread, 1e-9)
	assert.Equal(t, int64(1717243200), snap.Timestamp.Unix())
}

func TestAPITradeToDomain(t *testing.T) {
	raw := `{
		"proxyWallet": "0x1111111111111111111111111111111111111111",
		"side": "sell",
		"asset": "111",
		"conditionId": "0xabc",
		"size": "2000",
		"price": 0.62,
		"timestamp": 1717243200
	}`

	var apiTrade APITrade
	require.NoError(t, json.Unmarshal([]byte(raw), &apiTrade))

	trade := apiTrade.ToDomainTrade()
	assert.Equal(t, "0xabc", trade.MarketID)
	assert.Equal(t, "111", trade.TokenID)
	assert.EqualValues(t, "SELL", trade.Side)
	assert.InDelta(t, 1240.0, trade.Notional(), 1e-9)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", trade.Taker)
}
