package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/platform/polymarket"
)

type fakeStream struct {
	bookHandler  polymarket.BookUpdateHandler
	tradeHandler polymarket.LastTradeHandler
	subscribed   chan []string
}

func newFakeStream() *fakeStream {
	return &fakeStream{subscribed: make(chan []string, 1)}
}

func (f *fakeStream) Connect(context.Context) error { return nil }
func (f *fakeStream) Subscribe(_ context.Context, tokenIDs []string) error {
	f.subscribed <- tokenIDs
	return nil
}
func (f *fakeStream) OnBookUpdate(h polymarket.BookUpdateHandler) { f.bookHandler = h }
func (f *fakeStream) OnLastTrade(h polymarket.LastTradeHandler)   { f.tradeHandler = h }
func (f *fakeStream) Close() error                                { return nil }

type fakeBookCache struct {
	snaps map[string]domain.OrderbookSnapshot
}

func (f *fakeBookCache) SetSnapshot(_ context.Context, tokenID string, snap domain.OrderbookSnapshot) error {
	if f.snaps == nil {
		f.snaps = make(map[string]domain.OrderbookSnapshot)
	}
	f.snaps[tokenID] = snap
	return nil
}

func (f *fakeBookCache) GetSnapshot(_ context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	snap, ok := f.snaps[tokenID]
	if !ok {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

type fakePriceCache struct {
	prices map[string]float64
}

func (f *fakePriceCache) SetPrice(_ context.Context, marketID string, price float64, _ time.Time) error {
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[marketID] = price
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, marketID string) (float64, time.Time, error) {
	p, ok := f.prices[marketID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Time{}, nil
}

func (f *fakePriceCache) GetPrices(_ context.Context, marketIDs []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, id := range marketIDs {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestLiveFeedCachesEnrichedBooks(t *testing.T) {
	stream := newFakeStream()
	markets := &fakeMarketStore{active: []domain.MarketSnapshot{
		{ConditionID: "cond-1", TokenIDs: []string{"tok-yes", "tok-no"}},
	}}
	books := &fakeBookCache{}
	prices := &fakePriceCache{}

	feed := NewLiveFeed(DefaultLiveFeedConfig(), stream, markets, books, prices, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	select {
	case tokens := <-stream.subscribed:
		assert.ElementsMatch(t, []string{"tok-yes", "tok-no"}, tokens)
	case <-time.After(time.Second):
		t.Fatal("feed never subscribed")
	}

	stream.bookHandler(domain.OrderbookSnapshot{
		TokenID: "tok-yes",
		Bids:    []domain.PriceLevel{{Price: 0.60, Size: 100}},
		Asks:    []domain.PriceLevel{{Price: 0.62, Size: 50}},
	})

	snap, err := books.GetSnapshot(context.Background(), "tok-yes")
	require.NoError(t, err)
	assert.Equal(t, "cond-1", snap.MarketID)
	assert.Greater(t, snap.BidDepth, 0.0)
	assert.Greater(t, snap.Imbalance, 0.0, "bid-heavy book")

	// Trades on known tokens update the price cache; unknown tokens are
	// ignored.
	stream.tradeHandler(polymarket.LastTrade{TokenID: "tok-no", Price: 0.39})
	stream.tradeHandler(polymarket.LastTrade{TokenID: "tok-unknown", Price: 0.99})

	p, _, err := prices.GetPrice(context.Background(), "cond-1")
	require.NoError(t, err)
	assert.Equal(t, 0.39, p)
	assert.Len(t, prices.prices, 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}
