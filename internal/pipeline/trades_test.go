package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

type fakeMarketStore struct {
	active []domain.MarketSnapshot
}

func (f *fakeMarketStore) Upsert(context.Context, domain.MarketSnapshot) error       { return nil }
func (f *fakeMarketStore) UpsertBatch(context.Context, []domain.MarketSnapshot) error { return nil }
func (f *fakeMarketStore) UpdateMetrics(context.Context, string, domain.MarketMetrics) error {
	return nil
}

func (f *fakeMarketStore) GetByID(_ context.Context, id string) (domain.MarketSnapshot, error) {
	for _, m := range f.active {
		if m.ConditionID == id {
			return m, nil
		}
	}
	return domain.MarketSnapshot{}, domain.ErrNotFound
}

func (f *fakeMarketStore) ListActive(context.Context, domain.ListOpts) ([]domain.MarketSnapshot, error) {
	return f.active, nil
}

func (f *fakeMarketStore) Count(context.Context) (int64, error) {
	return int64(len(f.active)), nil
}

type fakeTradeStore struct {
	inserted []domain.Trade
}

func (f *fakeTradeStore) InsertBatch(_ context.Context, trades []domain.Trade) error {
	f.inserted = append(f.inserted, trades...)
	return nil
}

func (f *fakeTradeStore) ListRecent(context.Context, string, time.Time, bool, int) ([]domain.Trade, error) {
	return nil, nil
}

func (f *fakeTradeStore) ListWhales(context.Context, time.Time, int) ([]domain.Trade, error) {
	return nil, nil
}

func (f *fakeTradeStore) Flow(context.Context, string, time.Duration) (domain.TradeFlow, error) {
	return domain.TradeFlow{}, nil
}

func (f *fakeTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeTradeFetcher struct {
	trades map[string][]domain.Trade
	err    error
}

func (f *fakeTradeFetcher) GetTrades(_ context.Context, conditionID string, _ int) ([]domain.Trade, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trades[conditionID], nil
}

func newTestSyncer(fetcher TradeFetcher, markets *fakeMarketStore, trades *fakeTradeStore) *TradeSyncer {
	return NewTradeSyncer(DefaultTradeSyncerConfig(), fetcher, markets, trades, testLogger())
}

func TestTradeSyncerSkipsAlreadySeen(t *testing.T) {
	base := time.Now().Truncate(time.Second)
	markets := &fakeMarketStore{active: []domain.MarketSnapshot{{ConditionID: "0x1"}}}
	fetcher := &fakeTradeFetcher{trades: map[string][]domain.Trade{
		"0x1": {
			{MarketID: "0x1", Price: 0.5, Size: 10, Timestamp: base},
			{MarketID: "0x1", Price: 0.5, Size: 20, Timestamp: base.Add(time.Second)},
		},
	}}
	store := &fakeTradeStore{}
	s := newTestSyncer(fetcher, markets, store)

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, store.inserted, 2)

	// Second pass with the same upstream payload: nothing new.
	require.NoError(t, s.Run(context.Background()))
	assert.Len(t, store.inserted, 2)

	// A newer trade gets through.
	fetcher.trades["0x1"] = append(fetcher.trades["0x1"],
		domain.Trade{MarketID: "0x1", Price: 0.5, Size: 30, Timestamp: base.Add(2 * time.Second)})
	require.NoError(t, s.Run(context.Background()))
	assert.Len(t, store.inserted, 3)
}

func TestTradeSyncerFetchErrorIsNotFatal(t *testing.T) {
	markets := &fakeMarketStore{active: []domain.MarketSnapshot{{ConditionID: "0x1"}}}
	fetcher := &fakeTradeFetcher{err: errors.New("upstream 503")}
	store := &fakeTradeStore{}
	s := newTestSyncer(fetcher, markets, store)

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, store.inserted)
}

func TestTagWhalesAbsoluteFloor(t *testing.T) {
	s := newTestSyncer(&fakeTradeFetcher{}, &fakeMarketStore{}, &fakeTradeStore{})
	trades := []domain.Trade{
		{Price: 0.5, Size: 30_000}, // $15k notional
		{Price: 0.5, Size: 100},    // $50
	}

	tagged := s.tagWhales(trades)
	assert.Equal(t, 1, tagged)
	assert.True(t, trades[0].IsWhale)
	assert.False(t, trades[1].IsWhale)
}

func TestTagWhalesSigmaRuleNeedsBigBatch(t *testing.T) {
	s := newTestSyncer(&fakeTradeFetcher{}, &fakeMarketStore{}, &fakeTradeStore{})

	// 18 uniform trades plus one outlier: below the batch floor, the
	// statistical rule stays off and the outlier is under $10k anyway.
	small := make([]domain.Trade, 0, 19)
	for i := 0; i < 18; i++ {
		small = append(small, domain.Trade{Price: 0.5, Size: 100})
	}
	small = append(small, domain.Trade{Price: 0.5, Size: 8_000}) // $4k
	assert.Zero(t, s.tagWhales(small))

	// Same shape at batch size 25: the outlier clears mean + 2 sigma.
	big := make([]domain.Trade, 0, 25)
	for i := 0; i < 24; i++ {
		big = append(big, domain.Trade{Price: 0.5, Size: 100})
	}
	big = append(big, domain.Trade{Price: 0.5, Size: 8_000})
	assert.Equal(t, 1, s.tagWhales(big))
	assert.True(t, big[24].IsWhale)
}
