package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/category"
	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
	"github.com/polysignal/engine/internal/momentum"
)

// MarketFetcher lists normalized market snapshots from the upstream API.
type MarketFetcher interface {
	ListMarkets(ctx context.Context, limit int) ([]domain.MarketSnapshot, error)
}

// MarketScannerConfig configures the market scan pass.
type MarketScannerConfig struct {
	// FetchLimit caps how many markets are pulled per pass, volume-ordered
	// upstream so the cap keeps the liquid ones.
	FetchLimit int
}

// DefaultMarketScannerConfig returns the production scan settings.
func DefaultMarketScannerConfig() MarketScannerConfig {
	return MarketScannerConfig{FetchLimit: 500}
}

// MarketScanner refreshes market snapshots and price history each pass, then
// sweeps the fresh snapshots for fast price/volume signals. Caches are
// best-effort; a cache failure never fails the pass.
type MarketScanner struct {
	cfg         MarketScannerConfig
	fetcher     MarketFetcher
	markets     domain.MarketStore
	prices      domain.PriceStore
	opps        domain.OpportunityStore
	sweep       *momentum.Sweep
	emitter     *emit.Emitter
	marketCache domain.MarketCache
	priceCache  domain.PriceCache
	logger      *slog.Logger
}

// NewMarketScanner creates the scan worker. marketCache and priceCache may
// be nil.
func NewMarketScanner(
	cfg MarketScannerConfig,
	fetcher MarketFetcher,
	markets domain.MarketStore,
	prices domain.PriceStore,
	opps domain.OpportunityStore,
	sweep *momentum.Sweep,
	emitter *emit.Emitter,
	marketCache domain.MarketCache,
	priceCache domain.PriceCache,
	logger *slog.Logger,
) *MarketScanner {
	return &MarketScanner{
		cfg:         cfg,
		fetcher:     fetcher,
		markets:     markets,
		prices:      prices,
		opps:        opps,
		sweep:       sweep,
		emitter:     emitter,
		marketCache: marketCache,
		priceCache:  priceCache,
		logger:      logger.With(slog.String("component", "market_scanner")),
	}
}

// Name implements Worker.
func (s *MarketScanner) Name() string { return "market_scanner" }

// Run fetches the current market set, persists snapshots and price points,
// refreshes caches, and emits sweep signals.
func (s *MarketScanner) Run(ctx context.Context) error {
	fetched, err := s.fetcher.ListMarkets(ctx, s.cfg.FetchLimit)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}
	if len(fetched) == 0 {
		s.logger.Warn("upstream returned no active markets")
		return nil
	}

	now := time.Now()
	points := make([]domain.PricePoint, 0, len(fetched)*2)
	for i := range fetched {
		m := &fetched[i]
		if m.Category == "" {
			m.Category = category.Classify(*m)
		}
		for idx, price := range m.OutcomePrices {
			points = append(points, domain.PricePoint{
				MarketID:     m.ConditionID,
				OutcomeIndex: idx,
				Price:        price,
				Timestamp:    now,
			})
		}
	}

	if err := s.markets.UpsertBatch(ctx, fetched); err != nil {
		return fmt.Errorf("upsert markets: %w", err)
	}
	if err := s.prices.InsertBatch(ctx, points); err != nil {
		return fmt.Errorf("insert price points: %w", err)
	}
	s.refreshCaches(ctx, fetched, now)

	emitted, err := s.sweepMarkets(ctx, fetched)
	if err != nil {
		return err
	}

	s.logger.Info("market scan complete",
		slog.Int("markets", len(fetched)),
		slog.Int("price_points", len(points)),
		slog.Int("signals", emitted),
	)
	return nil
}

func (s *MarketScanner) refreshCaches(ctx context.Context, markets []domain.MarketSnapshot, now time.Time) {
	if s.marketCache == nil && s.priceCache == nil {
		return
	}
	for _, m := range markets {
		if s.marketCache != nil {
			if err := s.marketCache.Set(ctx, m); err != nil {
				s.logger.Warn("market cache set", slog.String("error", err.Error()))
				return // cache is down, skip the remaining refreshes
			}
		}
		if s.priceCache != nil {
			if err := s.priceCache.SetPrice(ctx, m.ConditionID, m.CurrentPrice, now); err != nil {
				s.logger.Warn("price cache set", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *MarketScanner) sweepMarkets(ctx context.Context, markets []domain.MarketSnapshot) (int, error) {
	active, err := s.opps.ListActive(ctx, domain.ListOpts{Limit: 500})
	if err != nil {
		return 0, fmt.Errorf("list active opportunities: %w", err)
	}
	byMarket := make(map[string][]domain.Opportunity, len(active))
	for _, opp := range active {
		byMarket[opp.MarketID] = append(byMarket[opp.MarketID], opp)
	}

	emitted := 0
	for _, m := range markets {
		for _, sig := range s.sweep.Run(m, byMarket[m.ConditionID]) {
			ok, err := s.emitter.EmitSignal(ctx, sig)
			if err != nil {
				return emitted, fmt.Errorf("emit sweep signal: %w", err)
			}
			if ok {
				emitted++
			}
		}
	}
	return emitted, nil
}
