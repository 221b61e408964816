package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest prices.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, marketID string) (float64, time.Time, error)
	GetPrices(ctx context.Context, marketIDs []string) (map[string]float64, error)
}

// OrderbookCache stores the latest orderbook snapshot per token.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, tokenID string, snap OrderbookSnapshot) error
	GetSnapshot(ctx context.Context, tokenID string) (OrderbookSnapshot, error)
}

// MarketCache provides fast market snapshot lookups.
type MarketCache interface {
	Set(ctx context.Context, m MarketSnapshot) error
	Get(ctx context.Context, conditionID string) (MarketSnapshot, error)
	GetByToken(ctx context.Context, tokenID string) (MarketSnapshot, error)
	Invalidate(ctx context.Context, conditionID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out for emitted signals.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
