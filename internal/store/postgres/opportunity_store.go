package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. The
// (market_id, type) unique constraint is what makes detector passes
// idempotent: re-detection replaces the prior record in place.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Upsert inserts or replaces the opportunity for its (market, type) key.
func (s *OpportunityStore) Upsert(ctx context.Context, opp domain.Opportunity) error {
	details, err := json.Marshal(opp.Details)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity details %s: %w", opp.MarketID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO opportunities (
			id, market_id, type, profit_potential, confidence_score,
			details, status, detected_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (market_id, type) DO UPDATE SET
			profit_potential = EXCLUDED.profit_potential,
			confidence_score = EXCLUDED.confidence_score,
			details          = EXCLUDED.details,
			status           = EXCLUDED.status,
			detected_at      = EXCLUDED.detected_at,
			updated_at       = NOW()`,
		opp.ID, opp.MarketID, string(opp.Type), opp.ProfitPotential, opp.Confidence,
		details, string(opp.Status), opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert opportunity %s/%s: %w", opp.MarketID, opp.Type, err)
	}
	return nil
}

// ListActive returns active opportunities, highest confidence first.
func (s *OpportunityStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT id, market_id, type, profit_potential, confidence_score,
			details, status, detected_at, updated_at
		FROM opportunities WHERE status = 'active'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY confidence_score DESC, profit_potential DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var oppType, status string
		var details []byte
		if err := rows.Scan(
			&opp.ID, &opp.MarketID, &oppType, &opp.ProfitPotential, &opp.Confidence,
			&details, &status, &opp.DetectedAt, &opp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.Type = domain.OpportunityType(oppType)
		opp.Status = domain.OpportunityStatus(status)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &opp.Details); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal opportunity details %s: %w", opp.ID, err)
			}
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active opportunities rows: %w", err)
	}
	return opps, nil
}

// ExpireOlderThan marks active opportunities not re-detected since the
// cutoff as expired and reports how many were touched.
func (s *OpportunityStore) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET status = 'expired', updated_at = NOW()
		 WHERE status = 'active' AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}
