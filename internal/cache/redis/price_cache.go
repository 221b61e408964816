package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polysignal/engine/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes.
//
// Key schema:
//
//	price:{marketID} - hash with fields "price" and "ts" (UnixNano)
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID string) string {
	return "price:" + marketID
}

// SetPrice stores the latest price and timestamp for a market.
func (pc *PriceCache) SetPrice(ctx context.Context, marketID string, price float64, ts time.Time) error {
	err := pc.rdb.HSet(ctx, priceKey(marketID),
		"price", strconv.FormatFloat(price, 'f', -1, 64),
		"ts", strconv.FormatInt(ts.UnixNano(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: set price %s: %w", marketID, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a market.
// It returns domain.ErrNotFound if no price is cached.
func (pc *PriceCache) GetPrice(ctx context.Context, marketID string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", marketID, err)
	}

	var ts time.Time
	if tsStr, ok := vals["ts"]; ok {
		if tsNano, perr := strconv.ParseInt(tsStr, 10, 64); perr == nil {
			ts = time.Unix(0, tsNano)
		}
	}

	return price, ts, nil
}

// GetPrices retrieves latest prices for multiple markets in a single pipelined
// round trip. Markets without a cached price are omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, marketIDs []string) (map[string]float64, error) {
	if len(marketIDs) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(marketIDs))
	for i, id := range marketIDs {
		cmds[i] = pipe.HGet(ctx, priceKey(id), "price")
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis: get prices: %w", err)
	}

	out := make(map[string]float64, len(marketIDs))
	for i, cmd := range cmds {
		val, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: get prices %s: %w", marketIDs[i], err)
		}
		price, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			continue
		}
		out[marketIDs[i]] = price
	}

	return out, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
