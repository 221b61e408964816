package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// MoneyFlowStore implements domain.MoneyFlowStore using PostgreSQL.
type MoneyFlowStore struct {
	pool *pgxpool.Pool
}

var _ domain.MoneyFlowStore = (*MoneyFlowStore)(nil)

// NewMoneyFlowStore creates a new MoneyFlowStore backed by the given pool.
func NewMoneyFlowStore(pool *pgxpool.Pool) *MoneyFlowStore {
	return &MoneyFlowStore{pool: pool}
}

// Insert appends one flow snapshot.
func (s *MoneyFlowStore) Insert(ctx context.Context, flow domain.MoneyFlow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO money_flows (
			market_id, buy_volume, sell_volume, net_flow,
			buy_pressure, flow_velocity, period_hours, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		flow.MarketID, flow.BuyVolume, flow.SellVolume, flow.NetFlow,
		flow.BuyPressure, flow.FlowVelocity, flow.PeriodHours,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert money flow %s: %w", flow.MarketID, err)
	}
	return nil
}

// ListRecent returns a market's flow snapshots, newest first.
func (s *MoneyFlowStore) ListRecent(ctx context.Context, marketID string, limit int) ([]domain.MoneyFlow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, buy_volume, sell_volume, net_flow,
			buy_pressure, flow_velocity, period_hours, ts
		 FROM money_flows
		 WHERE market_id = $1
		 ORDER BY ts DESC LIMIT $2`,
		marketID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list money flows %s: %w", marketID, err)
	}
	defer rows.Close()

	var flows []domain.MoneyFlow
	for rows.Next() {
		var f domain.MoneyFlow
		if err := rows.Scan(
			&f.ID, &f.MarketID, &f.BuyVolume, &f.SellVolume, &f.NetFlow,
			&f.BuyPressure, &f.FlowVelocity, &f.PeriodHours, &f.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan money flow: %w", err)
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: money flow rows: %w", err)
	}
	return flows, nil
}
