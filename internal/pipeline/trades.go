package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/stats"
)

// TradeFetcher fetches recent trades for one market from the upstream API.
type TradeFetcher interface {
	GetTrades(ctx context.Context, conditionID string, limit int) ([]domain.Trade, error)
}

// TradeSyncerConfig configures trade ingestion.
type TradeSyncerConfig struct {
	// TopMarkets is how many volume-ranked markets get their trades pulled.
	TopMarkets int
	// FetchLimit caps trades fetched per market per pass.
	FetchLimit int
	// WhaleNotional is the absolute USD floor for the whale tag.
	WhaleNotional float64
	// WhaleSigma tags trades that sit this many standard deviations above
	// the batch mean, once the batch is large enough to have one.
	WhaleSigma float64
	// MinBatchForSigma is the smallest batch the statistical whale rule
	// applies to.
	MinBatchForSigma int
}

// DefaultTradeSyncerConfig returns the production ingestion settings.
func DefaultTradeSyncerConfig() TradeSyncerConfig {
	return TradeSyncerConfig{
		TopMarkets:       50,
		FetchLimit:       200,
		WhaleNotional:    10_000,
		WhaleSigma:       2,
		MinBatchForSigma: 20,
	}
}

// TradeSyncer pulls recent trades for the top markets, drops the ones
// already seen, tags whales, and persists the rest. It remembers the newest
// timestamp per market across passes; the syncer is confined to its worker
// goroutine.
type TradeSyncer struct {
	cfg      TradeSyncerConfig
	fetcher  TradeFetcher
	markets  domain.MarketStore
	trades   domain.TradeStore
	lastSeen map[string]time.Time
	logger   *slog.Logger
}

// NewTradeSyncer creates the trade sync worker.
func NewTradeSyncer(cfg TradeSyncerConfig, fetcher TradeFetcher, markets domain.MarketStore, trades domain.TradeStore, logger *slog.Logger) *TradeSyncer {
	return &TradeSyncer{
		cfg:      cfg,
		fetcher:  fetcher,
		markets:  markets,
		trades:   trades,
		lastSeen: make(map[string]time.Time),
		logger:   logger.With(slog.String("component", "trade_syncer")),
	}
}

// Name implements Worker.
func (s *TradeSyncer) Name() string { return "trade_syncer" }

// Run syncs trades for the top markets. A single market failing upstream is
// logged and skipped so one flaky endpoint does not starve the rest.
func (s *TradeSyncer) Run(ctx context.Context) error {
	markets, err := s.markets.ListActive(ctx, domain.ListOpts{Limit: s.cfg.TopMarkets})
	if err != nil {
		return fmt.Errorf("list active markets: %w", err)
	}

	var inserted, whales int
	for _, m := range markets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetched, err := s.fetcher.GetTrades(ctx, m.ConditionID, s.cfg.FetchLimit)
		if err != nil {
			s.logger.Warn("fetch trades",
				slog.String("market_id", m.ConditionID),
				slog.String("error", err.Error()),
			)
			continue
		}

		fresh := s.dropSeen(m.ConditionID, fetched)
		if len(fresh) == 0 {
			continue
		}
		w := s.tagWhales(fresh)

		if err := s.trades.InsertBatch(ctx, fresh); err != nil {
			return fmt.Errorf("insert trades for %s: %w", m.ConditionID, err)
		}
		inserted += len(fresh)
		whales += w
	}

	if inserted > 0 {
		s.logger.Info("trade sync complete",
			slog.Int("inserted", inserted),
			slog.Int("whales", whales),
		)
	}
	return nil
}

// dropSeen filters out trades at or before the market's high-water mark and
// advances the mark to the newest fresh trade.
func (s *TradeSyncer) dropSeen(marketID string, trades []domain.Trade) []domain.Trade {
	mark := s.lastSeen[marketID]
	fresh := trades[:0]
	newest := mark
	for _, t := range trades {
		if !t.Timestamp.After(mark) {
			continue
		}
		fresh = append(fresh, t)
		if t.Timestamp.After(newest) {
			newest = t.Timestamp
		}
	}
	s.lastSeen[marketID] = newest
	return fresh
}

// tagWhales sets IsWhale on trades clearing either the absolute notional
// floor or, for large enough batches, the mean plus WhaleSigma deviations of
// the batch's notionals. Returns how many trades got tagged.
func (s *TradeSyncer) tagWhales(trades []domain.Trade) int {
	notionals := make([]float64, len(trades))
	for i, t := range trades {
		notionals[i] = t.Notional()
	}

	sigmaFloor := 0.0
	if len(trades) >= s.cfg.MinBatchForSigma {
		sigmaFloor = stats.Mean(notionals) + s.cfg.WhaleSigma*stats.StdDev(notionals)
	}

	tagged := 0
	for i := range trades {
		n := notionals[i]
		if n >= s.cfg.WhaleNotional || (sigmaFloor > 0 && n >= sigmaFloor) {
			trades[i].IsWhale = true
			tagged++
		}
	}
	return tagged
}
