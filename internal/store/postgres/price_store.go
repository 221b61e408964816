package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// PriceStore implements domain.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *pgxpool.Pool
}

var _ domain.PriceStore = (*PriceStore)(nil)

// NewPriceStore creates a new PriceStore backed by the given connection pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

const insertPriceQuery = `
	INSERT INTO price_points (market_id, outcome_index, price, ts)
	VALUES ($1, $2, $3, $4)`

// Insert appends a single price point.
func (s *PriceStore) Insert(ctx context.Context, p domain.PricePoint) error {
	_, err := s.pool.Exec(ctx, insertPriceQuery, p.MarketID, p.OutcomeIndex, p.Price, p.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: insert price point %s: %w", p.MarketID, err)
	}
	return nil
}

// InsertBatch appends multiple price points in one round trip.
func (s *PriceStore) InsertBatch(ctx context.Context, points []domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(insertPriceQuery, p.MarketID, p.OutcomeIndex, p.Price, p.Timestamp)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert price batch item %d: %w", i, err)
		}
	}
	return nil
}

// History returns a market's first-outcome price points within the window,
// oldest first. The chronological ordering is what the statistics layer
// expects.
func (s *PriceStore) History(ctx context.Context, marketID string, window time.Duration) ([]domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, outcome_index, price, ts
		 FROM price_points
		 WHERE market_id = $1 AND outcome_index = 0 AND ts >= $2
		 ORDER BY ts ASC`,
		marketID, time.Now().Add(-window),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: price history %s: %w", marketID, err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.MarketID, &p.OutcomeIndex, &p.Price, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: price history rows: %w", err)
	}
	return points, nil
}
