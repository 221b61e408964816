package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polysignal/engine/internal/domain"
)

// marketCacheTTL bounds staleness of cached snapshots; the market scanner
// refreshes well within this window.
const marketCacheTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using Redis.
//
// Key schema:
//
//	market:{conditionID}    - hash with field "data" (JSON snapshot)
//	market:token:{tokenID}  - string holding the owning conditionID
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(conditionID string) string { return "market:" + conditionID }
func tokenIndexKey(tokenID string) string { return "market:token:" + tokenID }

// Set stores a market snapshot and indexes each of its outcome tokens back to
// the owning condition.
func (mc *MarketCache) Set(ctx context.Context, m domain.MarketSnapshot) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", m.ConditionID, err)
	}

	key := marketKey(m.ConditionID)
	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, marketCacheTTL)
	for _, tokenID := range m.TokenIDs {
		if tokenID == "" {
			continue
		}
		pipe.Set(ctx, tokenIndexKey(tokenID), m.ConditionID, marketCacheTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", m.ConditionID, err)
	}
	return nil
}

// Get retrieves a market snapshot by condition ID. It returns
// domain.ErrNotFound if no snapshot is cached.
func (mc *MarketCache) Get(ctx context.Context, conditionID string) (domain.MarketSnapshot, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(conditionID), "data").Result()
	if err == redis.Nil {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get market %s: %w", conditionID, err)
	}

	var m domain.MarketSnapshot
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal market %s: %w", conditionID, err)
	}
	return m, nil
}

// GetByToken resolves a token ID to its owning market via the token index.
func (mc *MarketCache) GetByToken(ctx context.Context, tokenID string) (domain.MarketSnapshot, error) {
	conditionID, err := mc.rdb.Get(ctx, tokenIndexKey(tokenID)).Result()
	if err == redis.Nil {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get market by token %s: %w", tokenID, err)
	}
	return mc.Get(ctx, conditionID)
}

// Invalidate removes a cached market snapshot. Token index entries are left
// to expire on their own.
func (mc *MarketCache) Invalidate(ctx context.Context, conditionID string) error {
	if err := mc.rdb.Del(ctx, marketKey(conditionID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", conditionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
