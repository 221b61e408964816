package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// MarketStore persists normalized market snapshots.
type MarketStore interface {
	Upsert(ctx context.Context, m MarketSnapshot) error
	UpsertBatch(ctx context.Context, markets []MarketSnapshot) error
	UpdateMetrics(ctx context.Context, conditionID string, metrics MarketMetrics) error
	GetByID(ctx context.Context, conditionID string) (MarketSnapshot, error)
	ListActive(ctx context.Context, opts ListOpts) ([]MarketSnapshot, error)
	Count(ctx context.Context) (int64, error)
}

// PriceStore persists append-only price points.
type PriceStore interface {
	Insert(ctx context.Context, p PricePoint) error
	InsertBatch(ctx context.Context, points []PricePoint) error
	History(ctx context.Context, marketID string, window time.Duration) ([]PricePoint, error)
}

// OrderbookStore persists orderbook snapshots.
type OrderbookStore interface {
	Insert(ctx context.Context, snap OrderbookSnapshot) error
	Latest(ctx context.Context, tokenID string) (OrderbookSnapshot, error)
}

// TradeStore persists observed trades and serves flow aggregates.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) error
	ListRecent(ctx context.Context, marketID string, since time.Time, whaleOnly bool, limit int) ([]Trade, error)
	ListWhales(ctx context.Context, since time.Time, limit int) ([]Trade, error)
	Flow(ctx context.Context, marketID string, window time.Duration) (TradeFlow, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OpportunityStore persists scored opportunities, upserted by
// (market_id, type) so re-detection replaces the prior active record.
type OpportunityStore interface {
	Upsert(ctx context.Context, opp Opportunity) error
	ListActive(ctx context.Context, opts ListOpts) ([]Opportunity, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SignalStore persists append-only signals with caller-side dedup.
type SignalStore interface {
	Insert(ctx context.Context, sig Signal) error
	// RecentExists reports whether a signal with the same (marketID, type)
	// was inserted within the dedup window ending now.
	RecentExists(ctx context.Context, marketID, sigType string, window time.Duration) (bool, error)
	List(ctx context.Context, opts ListOpts) ([]Signal, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Signal, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CorrelationStore persists correlation edges keyed by the normalized
// unordered market pair.
type CorrelationStore interface {
	Upsert(ctx context.Context, edge CorrelationEdge) error
	ListForMarket(ctx context.Context, marketID string, minAbsScore float64, limit int) ([]CorrelationEdge, error)
	ListAll(ctx context.Context, minAbsScore float64, limit int) ([]CorrelationEdge, error)
}

// MoneyFlowStore persists per-market flow snapshots.
type MoneyFlowStore interface {
	Insert(ctx context.Context, flow MoneyFlow) error
	ListRecent(ctx context.Context, marketID string, limit int) ([]MoneyFlow, error)
}
