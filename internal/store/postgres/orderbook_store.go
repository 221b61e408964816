package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// OrderbookStore implements domain.OrderbookStore using PostgreSQL. Full
// bid/ask ladders go into JSONB; the derived best/depth/imbalance columns
// are flattened for querying.
type OrderbookStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderbookStore = (*OrderbookStore)(nil)

// NewOrderbookStore creates a new OrderbookStore backed by the given pool.
func NewOrderbookStore(pool *pgxpool.Pool) *OrderbookStore {
	return &OrderbookStore{pool: pool}
}

// Insert appends a snapshot.
func (s *OrderbookStore) Insert(ctx context.Context, snap domain.OrderbookSnapshot) error {
	bids, err := json.Marshal(snap.Bids)
	if err != nil {
		return fmt.Errorf("postgres: marshal bids %s: %w", snap.TokenID, err)
	}
	asks, err := json.Marshal(snap.Asks)
	if err != nil {
		return fmt.Errorf("postgres: marshal asks %s: %w", snap.TokenID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO orderbook_snapshots (
			token_id, market_id, bids, asks,
			best_bid, best_ask, mid_price, spread,
			bid_depth, ask_depth, imbalance, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		snap.TokenID, snap.MarketID, bids, asks,
		snap.BestBid, snap.BestAsk, snap.MidPrice, snap.Spread,
		snap.BidDepth, snap.AskDepth, snap.Imbalance, snap.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert orderbook %s: %w", snap.TokenID, err)
	}
	return nil
}

// Latest returns the most recent snapshot for a token.
func (s *OrderbookStore) Latest(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT token_id, market_id, bids, asks,
			best_bid, best_ask, mid_price, spread,
			bid_depth, ask_depth, imbalance, ts
		 FROM orderbook_snapshots
		 WHERE token_id = $1
		 ORDER BY ts DESC
		 LIMIT 1`,
		tokenID,
	)

	var snap domain.OrderbookSnapshot
	var bids, asks []byte
	err := row.Scan(
		&snap.TokenID, &snap.MarketID, &bids, &asks,
		&snap.BestBid, &snap.BestAsk, &snap.MidPrice, &snap.Spread,
		&snap.BidDepth, &snap.AskDepth, &snap.Imbalance, &snap.Timestamp,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OrderbookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderbookSnapshot{}, fmt.Errorf("postgres: latest orderbook %s: %w", tokenID, err)
	}

	if err := json.Unmarshal(bids, &snap.Bids); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("postgres: unmarshal bids %s: %w", tokenID, err)
	}
	if err := json.Unmarshal(asks, &snap.Asks); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("postgres: unmarshal asks %s: %w", tokenID, err)
	}
	return snap, nil
}
