package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarketQuery = `
	INSERT INTO markets (
		condition_id, question, slug, category, tags,
		volume_24h, volume_7d, volume_30d, liquidity,
		current_price, price_change_1h, price_change_24h, price_change_7d,
		best_bid, best_ask, spread,
		neg_risk, neg_risk_group_id, outcome_prices, token_ids,
		status, fetched_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12, $13,
		$14, $15, $16,
		$17, $18, $19, $20,
		$21, $22, NOW()
	)
	ON CONFLICT (condition_id) DO UPDATE SET
		question          = EXCLUDED.question,
		slug              = EXCLUDED.slug,
		category          = EXCLUDED.category,
		tags              = EXCLUDED.tags,
		volume_24h        = EXCLUDED.volume_24h,
		volume_7d         = EXCLUDED.volume_7d,
		volume_30d        = EXCLUDED.volume_30d,
		liquidity         = EXCLUDED.liquidity,
		current_price     = EXCLUDED.current_price,
		price_change_1h   = EXCLUDED.price_change_1h,
		price_change_24h  = EXCLUDED.price_change_24h,
		price_change_7d   = EXCLUDED.price_change_7d,
		best_bid          = EXCLUDED.best_bid,
		best_ask          = EXCLUDED.best_ask,
		spread            = EXCLUDED.spread,
		neg_risk          = EXCLUDED.neg_risk,
		neg_risk_group_id = EXCLUDED.neg_risk_group_id,
		outcome_prices    = EXCLUDED.outcome_prices,
		token_ids         = EXCLUDED.token_ids,
		status            = EXCLUDED.status,
		fetched_at        = EXCLUDED.fetched_at,
		updated_at        = NOW()`

func upsertMarketArgs(m domain.MarketSnapshot) []any {
	return []any{
		m.ConditionID, m.Question, m.Slug, m.Category, m.Tags,
		m.Volume24h, m.Volume7d, m.Volume30d, m.Liquidity,
		m.CurrentPrice, m.PriceChange1h, m.PriceChange24h, m.PriceChange7d,
		m.BestBid, m.BestAsk, m.Spread,
		m.NegRisk, m.NegRiskGroupID, m.OutcomePrices, m.TokenIDs,
		string(m.Status), m.FetchedAt,
	}
}

// Upsert inserts or refreshes a single market snapshot. The momentum
// write-back columns are left untouched so a refresh does not wipe the
// latest analysis.
func (s *MarketStore) Upsert(ctx context.Context, m domain.MarketSnapshot) error {
	if _, err := s.pool.Exec(ctx, upsertMarketQuery, upsertMarketArgs(m)...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ConditionID, err)
	}
	return nil
}

// UpsertBatch refreshes multiple markets in one round trip.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.MarketSnapshot) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketQuery, upsertMarketArgs(m)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

// UpdateMetrics writes the momentum engine's per-market results back onto
// the market row.
func (s *MarketStore) UpdateMetrics(ctx context.Context, conditionID string, metrics domain.MarketMetrics) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET momentum = $2, volatility_24h = $3, updated_at = NOW() WHERE condition_id = $1`,
		conditionID, metrics.Momentum, metrics.Volatility24h,
	)
	if err != nil {
		return fmt.Errorf("postgres: update metrics %s: %w", conditionID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const marketCols = `condition_id, question, slug, category, tags,
	volume_24h, volume_7d, volume_30d, liquidity,
	current_price, price_change_1h, price_change_24h, price_change_7d,
	best_bid, best_ask, spread,
	neg_risk, neg_risk_group_id, outcome_prices, token_ids,
	momentum, volatility_24h, status, fetched_at, updated_at`

func scanMarket(row pgx.Row) (domain.MarketSnapshot, error) {
	var m domain.MarketSnapshot
	var status string
	err := row.Scan(
		&m.ConditionID, &m.Question, &m.Slug, &m.Category, &m.Tags,
		&m.Volume24h, &m.Volume7d, &m.Volume30d, &m.Liquidity,
		&m.CurrentPrice, &m.PriceChange1h, &m.PriceChange24h, &m.PriceChange7d,
		&m.BestBid, &m.BestAsk, &m.Spread,
		&m.NegRisk, &m.NegRiskGroupID, &m.OutcomePrices, &m.TokenIDs,
		&m.Momentum, &m.Volatility24h, &status, &m.FetchedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByID retrieves a market by condition ID.
func (s *MarketStore) GetByID(ctx context.Context, conditionID string) (domain.MarketSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE condition_id = $1`, conditionID)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("postgres: get market %s: %w", conditionID, err)
	}
	return m, nil
}

// ListActive returns active markets ordered by 24h volume, busiest first.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.MarketSnapshot, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = 'active'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND fetched_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY volume_24h DESC"

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
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.MarketSnapshot
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan active market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
