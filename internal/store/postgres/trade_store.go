package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// InsertBatch appends observed trades in one round trip.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	const query = `
		INSERT INTO trades (market_id, token_id, price, size, side, maker, taker, is_whale, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query,
			t.MarketID, t.TokenID, t.Price, t.Size,
			string(t.Side), t.Maker, t.Taker, t.IsWhale, t.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

const tradeCols = `id, market_id, token_id, price, size, side, maker, taker, is_whale, ts`

func scanTrades(rows pgx.Rows) ([]domain.Trade, error) {
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.TokenID, &t.Price, &t.Size,
			&side, &t.Maker, &t.Taker, &t.IsWhale, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Side = domain.TradeSide(side)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade rows: %w", err)
	}
	return trades, nil
}

// ListRecent returns a market's trades since the given time, newest first.
func (s *TradeStore) ListRecent(ctx context.Context, marketID string, since time.Time, whaleOnly bool, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE market_id = $1 AND ts >= $2`
	if whaleOnly {
		query += ` AND is_whale`
	}
	query += ` ORDER BY ts DESC LIMIT $3`

	rows, err := s.pool.Query(ctx, query, marketID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades %s: %w", marketID, err)
	}
	return scanTrades(rows)
}

// ListWhales returns whale trades across all markets since the given time,
// newest first.
func (s *TradeStore) ListWhales(ctx context.Context, since time.Time, limit int) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades
		 WHERE is_whale AND ts >= $1
		 ORDER BY ts DESC LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list whale trades: %w", err)
	}
	return scanTrades(rows)
}

// Flow aggregates a market's buy and sell volume over the window. With no
// trades the buy pressure is the neutral 50.
func (s *TradeStore) Flow(ctx context.Context, marketID string, window time.Duration) (domain.TradeFlow, error) {
	var flow domain.TradeFlow
	err := s.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(price * size) FILTER (WHERE side = 'BUY'), 0),
			COALESCE(SUM(price * size) FILTER (WHERE side = 'SELL'), 0)
		 FROM trades
		 WHERE market_id = $1 AND ts >= $2`,
		marketID, time.Now().Add(-window),
	).Scan(&flow.BuyVolume, &flow.SellVolume)
	if err != nil {
		return domain.TradeFlow{}, fmt.Errorf("postgres: trade flow %s: %w", marketID, err)
	}

	total := flow.BuyVolume + flow.SellVolume
	flow.BuyPressure = 50
	if total > 0 {
		flow.BuyPressure = flow.BuyVolume / total * 100
	}
	return flow, nil
}

// ListBefore returns trades older than the cutoff, oldest first, for the
// archiver to drain before deletion.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades
		 WHERE ts < $1
		 ORDER BY ts ASC LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	return scanTrades(rows)
}

// DeleteBefore removes trades older than the cutoff and reports how many
// went. The archiver calls this after the rows are safely in object storage.
func (s *TradeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
