// Package smartmoney profiles whale wallets from their recent trades,
// aggregates a volume-weighted sentiment across qualifying wallets, and
// flags coordinated activity where several whales trade the same side of
// one market.
package smartmoney

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polysignal/engine/internal/domain"
)

// Config holds the smart-money thresholds.
type Config struct {
	// WhaleTradeMinUSD is the notional past which a single trade counts
	// as whale activity.
	WhaleTradeMinUSD float64
	// MinTrades is the trade count a wallet needs before it can qualify.
	MinTrades int
	// VolumeMultiple scales WhaleTradeMinUSD into the wallet volume floor.
	VolumeMultiple float64
	// WinRateThreshold is the minimum estimated win rate to qualify.
	WinRateThreshold float64
	// CoordinatedThreshold is the distinct-wallet count per market side
	// that counts as coordination.
	CoordinatedThreshold int
	// MaxWalletSample caps the wallet addresses attached to a
	// coordination report.
	MaxWalletSample int
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		WhaleTradeMinUSD:     10_000,
		MinTrades:            5,
		VolumeMultiple:       3,
		WinRateThreshold:     0.60,
		CoordinatedThreshold: 3,
		MaxWalletSample:      5,
	}
}

// Engine analyzes whale wallets. It holds the set of wallets already seen
// qualifying so newly promoted ones can be logged once.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	known  map[string]bool
}

// NewEngine creates a smart-money engine.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "smartmoney")),
		known:  make(map[string]bool),
	}
}

// GroupByWallet attributes each trade to its maker and taker. Addresses
// that are not well-formed hex addresses are dropped.
func (e *Engine) GroupByWallet(trades []domain.Trade) map[string][]domain.Trade {
	out := make(map[string][]domain.Trade)
	for _, t := range trades {
		if common.IsHexAddress(t.Maker) {
			out[t.Maker] = append(out[t.Maker], t)
		}
		if common.IsHexAddress(t.Taker) {
			out[t.Taker] = append(out[t.Taker], t)
		}
	}
	return out
}

// AnalyzeWallet profiles one wallet from its trades. currentPrices maps
// market IDs to latest prices for the win-rate estimate: a BUY below the
// current price (or SELL above it) is scored as a win. Wallets with fewer
// than two trades produce no profile.
func (e *Engine) AnalyzeWallet(address string, trades []domain.Trade, currentPrices map[string]float64) (domain.WalletProfile, bool) {
	if len(trades) < 2 {
		return domain.WalletProfile{}, false
	}

	p := domain.WalletProfile{Address: address, TradeCount: len(trades)}
	markets := make(map[string]bool)
	wins := 0

	for _, t := range trades {
		value := t.Notional()
		p.TotalVolume += value
		switch t.Side {
		case domain.TradeSideBuy:
			p.BuyVolume += value
		case domain.TradeSideSell:
			p.SellVolume += value
		}
		markets[t.MarketID] = true

		current, ok := currentPrices[t.MarketID]
		if !ok || current <= 0 || t.Price <= 0 {
			continue
		}
		if (t.Side == domain.TradeSideBuy && current > t.Price) ||
			(t.Side == domain.TradeSideSell && current < t.Price) {
			wins++
		}
	}

	p.MarketCount = len(markets)
	p.BuyRatio = 0.5
	if p.TotalVolume > 0 {
		p.BuyRatio = p.BuyVolume / p.TotalVolume
	}
	p.WinRate = float64(wins) / float64(p.TradeCount)

	p.IsSmartMoney = p.TradeCount >= e.cfg.MinTrades &&
		p.TotalVolume >= e.cfg.WhaleTradeMinUSD*e.cfg.VolumeMultiple &&
		p.WinRate >= e.cfg.WinRateThreshold

	if p.IsSmartMoney && !e.known[address] {
		e.known[address] = true
		e.logger.Info("smart money wallet identified",
			slog.String("wallet", address),
			slog.Float64("win_rate", p.WinRate),
			slog.Float64("volume", p.TotalVolume),
		)
	}
	return p, true
}

// Sentiment aggregates the qualifying wallets into a volume-weighted stance.
// No qualifying wallets yields a neutral reading with zero confidence.
func (e *Engine) Sentiment(profiles []domain.WalletProfile) domain.SmartMoneySentiment {
	neutral := domain.SmartMoneySentiment{Label: domain.SentimentNeutral}

	var totalVolume, weighted float64
	count := 0
	for _, p := range profiles {
		if !p.IsSmartMoney {
			continue
		}
		totalVolume += p.TotalVolume
		weighted += p.BuyRatio * p.TotalVolume
		count++
	}
	if count == 0 || totalVolume == 0 {
		return neutral
	}

	weightedBuyRatio := weighted / totalVolume
	score := (weightedBuyRatio - 0.5) * 200

	label := domain.SentimentNeutral
	switch {
	case score > 20:
		label = domain.SentimentBullish
	case score < -20:
		label = domain.SentimentBearish
	}

	return domain.SmartMoneySentiment{
		Label:            label,
		Score:            score,
		Confidence:       math.Min(100, float64(count)*10+totalVolume/100_000*20),
		WalletCount:      count,
		TotalVolume:      totalVolume,
		WeightedBuyRatio: weightedBuyRatio,
	}
}

// SentimentSignal builds the global signal for a strong, confident reading.
func (e *Engine) SentimentSignal(s domain.SmartMoneySentiment) (domain.Signal, bool) {
	if math.Abs(s.Score) <= 30 || s.Confidence <= 50 {
		return domain.Signal{}, false
	}

	direction := "Bearish"
	if s.Score > 0 {
		direction = "Bullish"
	}
	return domain.Signal{
		Type:        domain.SignalSmartMoney,
		Title:       fmt.Sprintf("Smart Money %s", direction),
		Description: fmt.Sprintf("%d smart money wallets showing %s sentiment", s.WalletCount, string(s.Label)),
		Severity:    domain.SeverityHigh,
		Data: map[string]any{
			"sentiment":          string(s.Label),
			"score":              s.Score,
			"confidence":         s.Confidence,
			"smart_money_count":  s.WalletCount,
			"total_volume":       s.TotalVolume,
			"weighted_buy_ratio": s.WeightedBuyRatio,
		},
	}, true
}

// DetectCoordinated flags markets where enough distinct wallets traded the
// same side within the analysis window. Output is sorted by market ID for
// deterministic emission.
func (e *Engine) DetectCoordinated(walletTrades map[string][]domain.Trade) []domain.CoordinatedActivity {
	type sides struct {
		buyers  map[string]bool
		sellers map[string]bool
	}
	byMarket := make(map[string]*sides)
	for wallet, trades := range walletTrades {
		for _, t := range trades {
			if t.MarketID == "" {
				continue
			}
			s := byMarket[t.MarketID]
			if s == nil {
				s = &sides{buyers: make(map[string]bool), sellers: make(map[string]bool)}
				byMarket[t.MarketID] = s
			}
			switch t.Side {
			case domain.TradeSideBuy:
				s.buyers[wallet] = true
			case domain.TradeSideSell:
				s.sellers[wallet] = true
			}
		}
	}

	marketIDs := make([]string, 0, len(byMarket))
	for id := range byMarket {
		marketIDs = append(marketIDs, id)
	}
	sort.Strings(marketIDs)

	var out []domain.CoordinatedActivity
	for _, id := range marketIDs {
		s := byMarket[id]
		if len(s.buyers) >= e.cfg.CoordinatedThreshold {
			out = append(out, e.coordination(id, domain.TradeSideBuy, s.buyers))
		}
		if len(s.sellers) >= e.cfg.CoordinatedThreshold {
			out = append(out, e.coordination(id, domain.TradeSideSell, s.sellers))
		}
	}
	return out
}

func (e *Engine) coordination(marketID string, side domain.TradeSide, wallets map[string]bool) domain.CoordinatedActivity {
	sample := make([]string, 0, len(wallets))
	for w := range wallets {
		sample = append(sample, w)
	}
	sort.Strings(sample)
	if len(sample) > e.cfg.MaxWalletSample {
		sample = sample[:e.cfg.MaxWalletSample]
	}

	e.logger.Info("coordinated whale activity",
		slog.String("market_id", marketID),
		slog.String("side", string(side)),
		slog.Int("wallets", len(wallets)),
	)
	return domain.CoordinatedActivity{
		MarketID:    marketID,
		Side:        side,
		WalletCount: len(wallets),
		Wallets:     sample,
	}
}

// CoordinatedSignal builds the per-market signal for one coordination.
func (e *Engine) CoordinatedSignal(c domain.CoordinatedActivity) domain.Signal {
	sigType := domain.SignalCoordinatedSelling
	verb := "selling"
	if c.Side == domain.TradeSideBuy {
		sigType = domain.SignalCoordinatedBuying
		verb = "buying"
	}
	return domain.Signal{
		MarketID:    c.MarketID,
		Type:        sigType,
		Title:       fmt.Sprintf("Coordinated Whale %s", titleVerb(c.Side)),
		Description: fmt.Sprintf("%d whale wallets %s together", c.WalletCount, verb),
		Severity:    domain.SeverityHigh,
		Data: map[string]any{
			"whale_count": c.WalletCount,
			"wallets":     c.Wallets,
		},
	}
}

func titleVerb(side domain.TradeSide) string {
	if side == domain.TradeSideBuy {
		return "Buying"
	}
	return "Selling"
}
