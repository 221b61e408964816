package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/detect"
	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
	"github.com/polysignal/engine/internal/stats"
)

// BookFetcher fetches orderbook snapshots for a batch of outcome tokens.
type BookFetcher interface {
	GetBooks(ctx context.Context, tokenIDs []string) ([]domain.OrderbookSnapshot, error)
}

// OrderbookScannerConfig configures the book scan pass.
type OrderbookScannerConfig struct {
	// TopMarkets is how many volume-ranked markets get their books polled.
	TopMarkets int
	// DepthLevels is the top-N levels counted into depth and imbalance.
	DepthLevels int
}

// DefaultOrderbookScannerConfig returns the production book scan settings.
func DefaultOrderbookScannerConfig() OrderbookScannerConfig {
	return OrderbookScannerConfig{TopMarkets: 50, DepthLevels: 10}
}

// OrderbookScanner polls books for the top markets, derives depth and
// imbalance, persists the snapshots, and runs the book-level detectors:
// spread capture, cross-token arbitrage, and negative-risk group pricing.
type OrderbookScanner struct {
	cfg       OrderbookScannerConfig
	fetcher   BookFetcher
	markets   domain.MarketStore
	books     domain.OrderbookStore
	bookCache domain.OrderbookCache
	detector  *detect.Orderbook
	emitter   *emit.Emitter
	logger    *slog.Logger
}

// NewOrderbookScanner creates the book scan worker. bookCache may be nil.
func NewOrderbookScanner(
	cfg OrderbookScannerConfig,
	fetcher BookFetcher,
	markets domain.MarketStore,
	books domain.OrderbookStore,
	bookCache domain.OrderbookCache,
	detector *detect.Orderbook,
	emitter *emit.Emitter,
	logger *slog.Logger,
) *OrderbookScanner {
	return &OrderbookScanner{
		cfg:       cfg,
		fetcher:   fetcher,
		markets:   markets,
		books:     books,
		bookCache: bookCache,
		detector:  detector,
		emitter:   emitter,
		logger:    logger.With(slog.String("component", "orderbook_scanner")),
	}
}

// Name implements Worker.
func (s *OrderbookScanner) Name() string { return "orderbook_scanner" }

// Run polls books for the top markets and emits the opportunities the
// detectors find on them.
func (s *OrderbookScanner) Run(ctx context.Context) error {
	markets, err := s.markets.ListActive(ctx, domain.ListOpts{Limit: s.cfg.TopMarkets})
	if err != nil {
		return fmt.Errorf("list active markets: %w", err)
	}
	if len(markets) == 0 {
		return nil
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
		return nil
	}

	fetched, err := s.fetcher.GetBooks(ctx, tokenIDs)
	if err != nil {
		return fmt.Errorf("fetch books: %w", err)
	}

	byToken := make(map[string]domain.OrderbookSnapshot, len(fetched))
	for _, book := range fetched {
		book.MarketID = tokenMarket[book.TokenID]
		book.BidDepth = stats.Depth(book.Bids, s.cfg.DepthLevels)
		book.AskDepth = stats.Depth(book.Asks, s.cfg.DepthLevels)
		book.Imbalance = stats.Imbalance(book.BidDepth, book.AskDepth)

		if err := s.books.Insert(ctx, book); err != nil {
			return fmt.Errorf("insert book %s: %w", book.TokenID, err)
		}
		if s.bookCache != nil {
			if err := s.bookCache.SetSnapshot(ctx, book.TokenID, book); err != nil {
				s.logger.Warn("book cache set", slog.String("error", err.Error()))
			}
		}
		byToken[book.TokenID] = book
	}

	now := time.Now()
	if err := s.detectPerMarket(ctx, markets, byToken, now); err != nil {
		return err
	}
	if err := s.detectNegRisk(ctx, markets, byToken, now); err != nil {
		return err
	}

	s.logger.Info("orderbook scan complete",
		slog.Int("markets", len(markets)),
		slog.Int("books", len(fetched)),
	)
	return nil
}

func (s *OrderbookScanner) detectPerMarket(ctx context.Context, markets []domain.MarketSnapshot, byToken map[string]domain.OrderbookSnapshot, now time.Time) error {
	for _, m := range markets {
		if len(m.TokenIDs) == 0 {
			continue
		}

		// Spread capture is judged on the primary outcome's book.
		if book, ok := byToken[m.TokenIDs[0]]; ok {
			if opp, found := s.detector.DetectSpread(m, book, now); found {
				if err := s.emitter.EmitOpportunity(ctx, opp); err != nil {
					return err
				}
			}
		}

		books := make([]domain.OrderbookSnapshot, 0, len(m.TokenIDs))
		for _, tok := range m.TokenIDs {
			if book, ok := byToken[tok]; ok {
				books = append(books, book)
			}
		}
		if len(books) >= 2 {
			if opp, found := s.detector.DetectArbitrage(m, books, now); found {
				if err := s.emitter.EmitOpportunity(ctx, opp); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *OrderbookScanner) detectNegRisk(ctx context.Context, markets []domain.MarketSnapshot, byToken map[string]domain.OrderbookSnapshot, now time.Time) error {
	groups := make(map[string][]detect.NegRiskMember)
	for _, m := range markets {
		if !m.NegRisk || m.NegRiskGroupID == "" || len(m.TokenIDs) == 0 {
			continue
		}
		book, ok := byToken[m.TokenIDs[0]]
		if !ok || book.MidPrice <= 0 {
			continue
		}
		groups[m.NegRiskGroupID] = append(groups[m.NegRiskGroupID], detect.NegRiskMember{
			MarketID:  m.ConditionID,
			Mid:       book.MidPrice,
			Liquidity: m.Liquidity,
		})
	}

	for groupID, members := range groups {
		if opp, found := s.detector.DetectNegRisk(groupID, members, now); found {
			if err := s.emitter.EmitOpportunity(ctx, opp); err != nil {
				return err
			}
		}
	}
	return nil
}
