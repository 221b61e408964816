package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// CorrelationStore implements domain.CorrelationStore using PostgreSQL.
// Rows are keyed by the normalized (market_a, market_b) pair.
type CorrelationStore struct {
	pool *pgxpool.Pool
}

var _ domain.CorrelationStore = (*CorrelationStore)(nil)

// NewCorrelationStore creates a new CorrelationStore backed by the given pool.
func NewCorrelationStore(pool *pgxpool.Pool) *CorrelationStore {
	return &CorrelationStore{pool: pool}
}

// Upsert inserts or refreshes the edge for its normalized pair.
func (s *CorrelationStore) Upsert(ctx context.Context, edge domain.CorrelationEdge) error {
	a, b := domain.NormalizePair(edge.MarketA, edge.MarketB)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO correlations (market_a, market_b, score, sample_size, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (market_a, market_b) DO UPDATE SET
			score       = EXCLUDED.score,
			sample_size = EXCLUDED.sample_size,
			updated_at  = EXCLUDED.updated_at`,
		a, b, edge.Score, edge.SampleSize, edge.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert correlation %s/%s: %w", a, b, err)
	}
	return nil
}

func scanEdges(rows pgx.Rows) ([]domain.CorrelationEdge, error) {
	defer rows.Close()

	var edges []domain.CorrelationEdge
	for rows.Next() {
		var e domain.CorrelationEdge
		if err := rows.Scan(&e.MarketA, &e.MarketB, &e.Score, &e.SampleSize, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan correlation: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: correlation rows: %w", err)
	}
	return edges, nil
}

// ListForMarket returns edges touching one market, strongest first.
func (s *CorrelationStore) ListForMarket(ctx context.Context, marketID string, minAbsScore float64, limit int) ([]domain.CorrelationEdge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_a, market_b, score, sample_size, updated_at
		 FROM correlations
		 WHERE (market_a = $1 OR market_b = $1) AND ABS(score) >= $2
		 ORDER BY ABS(score) DESC LIMIT $3`,
		marketID, minAbsScore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list correlations for %s: %w", marketID, err)
	}
	return scanEdges(rows)
}

// ListAll returns edges across all markets, strongest first.
func (s *CorrelationStore) ListAll(ctx context.Context, minAbsScore float64, limit int) ([]domain.CorrelationEdge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_a, market_b, score, sample_size, updated_at
		 FROM correlations
		 WHERE ABS(score) >= $1
		 ORDER BY ABS(score) DESC LIMIT $2`,
		minAbsScore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list correlations: %w", err)
	}
	return scanEdges(rows)
}
