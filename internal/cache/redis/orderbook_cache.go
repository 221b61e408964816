package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polysignal/engine/internal/domain"
)

// orderbookTTL keeps snapshots from outliving the scan interval by much; a
// stale book is worse than a missing one for spread math.
const orderbookTTL = 2 * time.Minute

// OrderbookCache implements domain.OrderbookCache, storing each token's latest
// snapshot as a JSON blob.
//
// Key schema:
//
//	book:{tokenID} - JSON-encoded domain.OrderbookSnapshot
type OrderbookCache struct {
	rdb *redis.Client
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{rdb: c.Underlying()}
}

func bookKey(tokenID string) string { return "book:" + tokenID }

// SetSnapshot replaces the cached snapshot for a token.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, tokenID string, snap domain.OrderbookSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal orderbook %s: %w", tokenID, err)
	}
	if err := oc.rdb.Set(ctx, bookKey(tokenID), data, orderbookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set orderbook %s: %w", tokenID, err)
	}
	return nil
}

// GetSnapshot retrieves the cached snapshot for a token. It returns
// domain.ErrNotFound if no snapshot exists or it has expired.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	data, err := oc.rdb.Get(ctx, bookKey(tokenID)).Result()
	if err == redis.Nil {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get orderbook %s: %w", tokenID, err)
	}

	var snap domain.OrderbookSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: unmarshal orderbook %s: %w", tokenID, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.OrderbookCache = (*OrderbookCache)(nil)
