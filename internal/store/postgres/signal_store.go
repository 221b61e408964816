package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysignal/engine/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL. Signals are
// append-only; deduplication is a query-time check the emitter performs
// before inserting.
type SignalStore struct {
	pool *pgxpool.Pool
}

var _ domain.SignalStore = (*SignalStore)(nil)

// NewSignalStore creates a new SignalStore backed by the given pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Insert appends one signal.
func (s *SignalStore) Insert(ctx context.Context, sig domain.Signal) error {
	data, err := json.Marshal(sig.Data)
	if err != nil {
		return fmt.Errorf("postgres: marshal signal data %s: %w", sig.Type, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO signals (id, market_id, type, title, description, severity, data, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sig.ID, sig.MarketID, sig.Type, sig.Title, sig.Description,
		string(sig.Severity), data, sig.CreatedAt, sig.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s/%s: %w", sig.MarketID, sig.Type, err)
	}
	return nil
}

// RecentExists reports whether a signal with the same (marketID, type) was
// created within the window ending now.
func (s *SignalStore) RecentExists(ctx context.Context, marketID, sigType string, window time.Duration) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM signals
			WHERE market_id = $1 AND type = $2 AND created_at >= $3
		)`,
		marketID, sigType, time.Now().Add(-window),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: recent signal check %s/%s: %w", marketID, sigType, err)
	}
	return exists, nil
}

const signalCols = `id, market_id, type, title, description, severity, data, created_at, expires_at`

func scanSignals(rows pgx.Rows) ([]domain.Signal, error) {
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var severity string
		var data []byte
		if err := rows.Scan(
			&sig.ID, &sig.MarketID, &sig.Type, &sig.Title, &sig.Description,
			&severity, &data, &sig.CreatedAt, &sig.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.Severity = domain.SignalSeverity(severity)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &sig.Data); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal signal data %s: %w", sig.ID, err)
			}
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: signal rows: %w", err)
	}
	return signals, nil
}

// List returns unexpired signals, newest first.
func (s *SignalStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Signal, error) {
	query := `SELECT ` + signalCols + ` FROM signals WHERE expires_at > NOW()`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	return scanSignals(rows)
}

// ListExpired returns signals past their expiry, oldest first, for the
// archiver to drain before deletion.
func (s *SignalStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalCols+` FROM signals
		 WHERE expires_at <= $1
		 ORDER BY created_at ASC LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired signals: %w", err)
	}
	return scanSignals(rows)
}

// DeleteExpired removes signals past their expiry and reports how many.
func (s *SignalStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM signals WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired signals: %w", err)
	}
	return tag.RowsAffected(), nil
}
