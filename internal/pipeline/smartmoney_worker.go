package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
	"github.com/polysignal/engine/internal/smartmoney"
)

// SmartMoneyWorkerConfig configures the smart-money pass.
type SmartMoneyWorkerConfig struct {
	// Window is how far back whale trades are pulled.
	Window time.Duration
	// WhaleLimit caps the trades analyzed per pass.
	WhaleLimit int
}

// DefaultSmartMoneyWorkerConfig returns the production smart-money settings.
func DefaultSmartMoneyWorkerConfig() SmartMoneyWorkerConfig {
	return SmartMoneyWorkerConfig{Window: 24 * time.Hour, WhaleLimit: 500}
}

// SmartMoneyWorker profiles whale wallets over recent trades and emits
// aggregate sentiment and coordinated-activity signals.
type SmartMoneyWorker struct {
	cfg        SmartMoneyWorkerConfig
	trades     domain.TradeStore
	markets    domain.MarketStore
	priceCache domain.PriceCache
	engine     *smartmoney.Engine
	emitter    *emit.Emitter
	logger     *slog.Logger
}

// NewSmartMoneyWorker creates the smart-money worker. priceCache may be nil;
// prices then come from the market store.
func NewSmartMoneyWorker(
	cfg SmartMoneyWorkerConfig,
	trades domain.TradeStore,
	markets domain.MarketStore,
	priceCache domain.PriceCache,
	engine *smartmoney.Engine,
	emitter *emit.Emitter,
	logger *slog.Logger,
) *SmartMoneyWorker {
	return &SmartMoneyWorker{
		cfg:        cfg,
		trades:     trades,
		markets:    markets,
		priceCache: priceCache,
		engine:     engine,
		emitter:    emitter,
		logger:     logger.With(slog.String("component", "smartmoney_worker")),
	}
}

// Name implements Worker.
func (w *SmartMoneyWorker) Name() string { return "smartmoney_worker" }

// Run profiles recent whale activity.
func (w *SmartMoneyWorker) Run(ctx context.Context) error {
	since := time.Now().Add(-w.cfg.Window)
	whales, err := w.trades.ListWhales(ctx, since, w.cfg.WhaleLimit)
	if err != nil {
		return fmt.Errorf("list whale trades: %w", err)
	}
	if len(whales) == 0 {
		return nil
	}

	walletTrades := w.engine.GroupByWallet(whales)
	prices, err := w.currentPrices(ctx, whales)
	if err != nil {
		return err
	}

	profiles := make([]domain.WalletProfile, 0, len(walletTrades))
	for _, addr := range sortedWallets(walletTrades) {
		if profile, ok := w.engine.AnalyzeWallet(addr, walletTrades[addr], prices); ok {
			profiles = append(profiles, profile)
		}
	}

	sentiment := w.engine.Sentiment(profiles)
	if sig, ok := w.engine.SentimentSignal(sentiment); ok {
		if _, err := w.emitter.EmitSignal(ctx, sig); err != nil {
			return err
		}
	}

	for _, coord := range w.engine.DetectCoordinated(walletTrades) {
		if _, err := w.emitter.EmitSignal(ctx, w.engine.CoordinatedSignal(coord)); err != nil {
			return err
		}
	}

	w.logger.Info("smart money pass complete",
		slog.Int("whale_trades", len(whales)),
		slog.Int("wallets", len(walletTrades)),
		slog.Int("profiles", len(profiles)),
		slog.String("sentiment", string(sentiment.Label)),
	)
	return nil
}

// currentPrices resolves the latest price for every market touched by the
// trades, preferring the cache and falling back to the store. Markets that
// resolve nowhere are simply absent; the engine treats their trades as
// unscoreable.
func (w *SmartMoneyWorker) currentPrices(ctx context.Context, trades []domain.Trade) (map[string]float64, error) {
	ids := make([]string, 0, len(trades))
	seen := make(map[string]bool, len(trades))
	for _, t := range trades {
		if !seen[t.MarketID] {
			seen[t.MarketID] = true
			ids = append(ids, t.MarketID)
		}
	}

	prices := make(map[string]float64, len(ids))
	if w.priceCache != nil {
		cached, err := w.priceCache.GetPrices(ctx, ids)
		if err != nil {
			w.logger.Warn("price cache lookup", slog.String("error", err.Error()))
		} else {
			prices = cached
		}
	}

	for _, id := range ids {
		if _, ok := prices[id]; ok {
			continue
		}
		m, err := w.markets.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get market %s: %w", id, err)
		}
		prices[id] = m.CurrentPrice
	}
	return prices, nil
}

func sortedWallets(walletTrades map[string][]domain.Trade) []string {
	out := make([]string, 0, len(walletTrades))
	for addr := range walletTrades {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
