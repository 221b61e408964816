package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/emit"
)

// Archiver copies aged records to cold storage before they are deleted.
type Archiver interface {
	ArchiveSignals(ctx context.Context, now time.Time) (int64, error)
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}

// RetentionWorkerConfig configures the retention pass.
type RetentionWorkerConfig struct {
	// TradeRetention is how long raw trades stay in the hot store.
	TradeRetention time.Duration
}

// DefaultRetentionWorkerConfig returns the production retention settings.
func DefaultRetentionWorkerConfig() RetentionWorkerConfig {
	return RetentionWorkerConfig{TradeRetention: 7 * 24 * time.Hour}
}

// RetentionWorker archives then prunes aged data: expired signals and stale
// opportunities through the emitter's cleanup, old trades directly. Archival
// always runs before the matching delete so nothing is lost when the upload
// fails.
type RetentionWorker struct {
	cfg      RetentionWorkerConfig
	archiver Archiver
	emitter  *emit.Emitter
	trades   domain.TradeStore
	logger   *slog.Logger
}

// NewRetentionWorker creates the retention worker. archiver may be nil, in
// which case aged records are deleted without a cold copy.
func NewRetentionWorker(cfg RetentionWorkerConfig, archiver Archiver, emitter *emit.Emitter, trades domain.TradeStore, logger *slog.Logger) *RetentionWorker {
	return &RetentionWorker{
		cfg:      cfg,
		archiver: archiver,
		emitter:  emitter,
		trades:   trades,
		logger:   logger.With(slog.String("component", "retention_worker")),
	}
}

// Name implements Worker.
func (w *RetentionWorker) Name() string { return "retention_worker" }

// Run performs one archive-then-prune cycle.
func (w *RetentionWorker) Run(ctx context.Context) error {
	now := time.Now()

	if w.archiver != nil {
		archived, err := w.archiver.ArchiveSignals(ctx, now)
		if err != nil {
			return fmt.Errorf("archive signals: %w", err)
		}
		if archived > 0 {
			w.logger.Info("signals archived", slog.Int64("count", archived))
		}
	}

	expired, deleted, err := w.emitter.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	cutoff := now.Add(-w.cfg.TradeRetention)
	if w.archiver != nil {
		archived, err := w.archiver.ArchiveTrades(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archive trades: %w", err)
		}
		if archived > 0 {
			w.logger.Info("trades archived", slog.Int64("count", archived))
		}
	}
	pruned, err := w.trades.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete old trades: %w", err)
	}

	w.logger.Info("retention pass complete",
		slog.Int64("opportunities_expired", expired),
		slog.Int64("signals_deleted", deleted),
		slog.Int64("trades_pruned", pruned),
	)
	return nil
}
