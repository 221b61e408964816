package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/platform/polymarket"
	"github.com/polysignal/engine/internal/stats"
)

// BookStream is the market-data stream surface the live feed needs.
type BookStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, tokenIDs []string) error
	OnBookUpdate(handler polymarket.BookUpdateHandler)
	OnLastTrade(handler polymarket.LastTradeHandler)
	Close() error
}

// LiveFeedConfig holds the live feed settings.
type LiveFeedConfig struct {
	// TopMarkets is how many volume-ranked markets get streamed books.
	TopMarkets int
	// DepthLevels is the top-N levels counted into depth and imbalance,
	// matching the scan workers so cached and stored books agree.
	DepthLevels int
}

// DefaultLiveFeedConfig returns the production live feed settings.
func DefaultLiveFeedConfig() LiveFeedConfig {
	return LiveFeedConfig{TopMarkets: 50, DepthLevels: 10}
}

// LiveFeed keeps the orderbook and price caches warm between scan passes by
// streaming book updates for the top markets. It is purely a cache layer;
// persistence and detection stay on the polling workers' cadence.
type LiveFeed struct {
	cfg        LiveFeedConfig
	stream     BookStream
	markets    domain.MarketStore
	bookCache  domain.OrderbookCache
	priceCache domain.PriceCache
	logger     *slog.Logger
}

// NewLiveFeed creates the live market-data feed. priceCache may be nil.
func NewLiveFeed(
	cfg LiveFeedConfig,
	stream BookStream,
	markets domain.MarketStore,
	bookCache domain.OrderbookCache,
	priceCache domain.PriceCache,
	logger *slog.Logger,
) *LiveFeed {
	return &LiveFeed{
		cfg:        cfg,
		stream:     stream,
		markets:    markets,
		bookCache:  bookCache,
		priceCache: priceCache,
		logger:     logger.With(slog.String("component", "live_feed")),
	}
}

// Run connects the stream, subscribes to the top markets' tokens, and blocks
// until ctx is cancelled. The stream reconnects internally; Run only returns
// early when the initial connect or subscribe fails.
func (f *LiveFeed) Run(ctx context.Context) error {
	markets, err := f.markets.ListActive(ctx, domain.ListOpts{Limit: f.cfg.TopMarkets})
	if err != nil {
		return fmt.Errorf("pipeline: live feed: list active markets: %w", err)
	}

	tokenMarket := make(map[string]string)
	var tokenIDs []string
	for _, m := range markets {
		for _, tok := range m.TokenIDs {
			tokenMarket[tok] = m.ConditionID
			tokenIDs = append(tokenIDs, tok)
		}
	}
	if len(tokenIDs) == 0 {
		f.logger.Warn("no tokens to stream, live feed idle")
		<-ctx.Done()
		return nil
	}

	f.stream.OnBookUpdate(func(book domain.OrderbookSnapshot) {
		if marketID, ok := tokenMarket[book.TokenID]; ok {
			book.MarketID = marketID
		}
		book.BidDepth = stats.Depth(book.Bids, f.cfg.DepthLevels)
		book.AskDepth = stats.Depth(book.Asks, f.cfg.DepthLevels)
		book.Imbalance = stats.Imbalance(book.BidDepth, book.AskDepth)

		if err := f.bookCache.SetSnapshot(ctx, book.TokenID, book); err != nil {
			f.logger.Warn("cache book failed",
				slog.String("token_id", book.TokenID),
				slog.String("error", err.Error()),
			)
		}
	})

	if f.priceCache != nil {
		f.stream.OnLastTrade(func(trade polymarket.LastTrade) {
			marketID, ok := tokenMarket[trade.TokenID]
			if !ok {
				return
			}
			if err := f.priceCache.SetPrice(ctx, marketID, trade.Price, trade.Timestamp); err != nil {
				f.logger.Warn("cache price failed",
					slog.String("market_id", marketID),
					slog.String("error", err.Error()),
				)
			}
		})
	}

	if err := f.stream.Connect(ctx); err != nil {
		return fmt.Errorf("pipeline: live feed: connect: %w", err)
	}
	defer f.stream.Close()

	if err := f.stream.Subscribe(ctx, tokenIDs); err != nil {
		return fmt.Errorf("pipeline: live feed: subscribe: %w", err)
	}
	f.logger.Info("live feed streaming",
		slog.Int("markets", len(markets)),
		slog.Int("tokens", len(tokenIDs)),
	)

	<-ctx.Done()
	return nil
}
