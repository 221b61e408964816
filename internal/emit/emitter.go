// Package emit is the single exit path for opportunities and signals. It
// applies the dedup window, stamps IDs and expiry, persists, fans out over
// the signal bus, and pushes urgent signals to the notifier.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polysignal/engine/internal/domain"
)

// Notifier pushes urgent signals to external channels.
type Notifier interface {
	Notify(ctx context.Context, event, title, body string) error
}

// Config holds the emission policy.
type Config struct {
	// DedupWindow suppresses a signal when one with the same
	// (market, type) was stored within it.
	DedupWindow time.Duration
	// SignalTTL is how long signals stay queryable before cleanup.
	SignalTTL time.Duration
	// OpportunityTTL is how long an opportunity can go without
	// re-detection before it is marked expired.
	OpportunityTTL time.Duration
	// BusChannel is the pub/sub channel signals fan out on.
	BusChannel string
}

// DefaultConfig returns the production emission policy.
func DefaultConfig() Config {
	return Config{
		DedupWindow:    15 * time.Minute,
		SignalTTL:      24 * time.Hour,
		OpportunityTTL: time.Hour,
		BusChannel:     "signals",
	}
}

// Emitter persists and fans out detector output. Bus and notifier failures
// are logged, not returned: delivery is best-effort once the record is
// stored.
type Emitter struct {
	cfg      Config
	opps     domain.OpportunityStore
	signals  domain.SignalStore
	bus      domain.SignalBus
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEmitter creates an emitter. bus and notifier may be nil.
func NewEmitter(cfg Config, opps domain.OpportunityStore, signals domain.SignalStore, bus domain.SignalBus, notifier Notifier, logger *slog.Logger) *Emitter {
	return &Emitter{
		cfg:      cfg,
		opps:     opps,
		signals:  signals,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "emitter")),
		now:      time.Now,
	}
}

// EmitOpportunity upserts an opportunity by its (market, type) key, stamping
// ID and update time. Re-detections of the same opportunity replace the
// prior record rather than accumulating.
func (e *Emitter) EmitOpportunity(ctx context.Context, opp domain.Opportunity) error {
	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	now := e.now()
	if opp.DetectedAt.IsZero() {
		opp.DetectedAt = now
	}
	opp.UpdatedAt = now
	if opp.Status == "" {
		opp.Status = domain.OpportunityStatusActive
	}

	if err := e.opps.Upsert(ctx, opp); err != nil {
		return fmt.Errorf("emit: upsert opportunity %s/%s: %w", opp.MarketID, opp.Type, err)
	}
	e.logger.Debug("opportunity emitted",
		slog.String("market_id", opp.MarketID),
		slog.String("type", string(opp.Type)),
		slog.Float64("profit", opp.ProfitPotential),
	)
	return nil
}

// EmitSignal stores a signal unless an equivalent one exists inside the
// dedup window. It returns whether the signal was actually emitted. After a
// successful insert the signal is published on the bus, and high or critical
// severities go to the notifier.
func (e *Emitter) EmitSignal(ctx context.Context, sig domain.Signal) (bool, error) {
	exists, err := e.signals.RecentExists(ctx, sig.MarketID, sig.Type, e.cfg.DedupWindow)
	if err != nil {
		return false, fmt.Errorf("emit: dedup check %s/%s: %w", sig.MarketID, sig.Type, err)
	}
	if exists {
		e.logger.Debug("signal suppressed by dedup window",
			slog.String("market_id", sig.MarketID),
			slog.String("type", sig.Type),
		)
		return false, nil
	}

	now := e.now()
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = now
	}
	sig.ExpiresAt = sig.CreatedAt.Add(e.cfg.SignalTTL)

	if err := e.signals.Insert(ctx, sig); err != nil {
		return false, fmt.Errorf("emit: insert signal %s/%s: %w", sig.MarketID, sig.Type, err)
	}
	e.logger.Info("signal emitted",
		slog.String("market_id", sig.MarketID),
		slog.String("type", sig.Type),
		slog.String("severity", string(sig.Severity)),
	)

	e.publish(ctx, sig)
	if sig.Severity == domain.SeverityHigh || sig.Severity == domain.SeverityCritical {
		e.push(ctx, sig)
	}
	return true, nil
}

func (e *Emitter) publish(ctx context.Context, sig domain.Signal) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		e.logger.Error("marshal signal for bus", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, e.cfg.BusChannel, payload); err != nil {
		e.logger.Warn("publish signal to bus", slog.String("error", err.Error()))
	}
}

func (e *Emitter) push(ctx context.Context, sig domain.Signal) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, sig.Type, sig.Title, sig.Description); err != nil {
		e.logger.Warn("push notification",
			slog.String("type", sig.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Cleanup expires stale opportunities and deletes expired signals. It
// returns the number of records touched.
func (e *Emitter) Cleanup(ctx context.Context) (expired int64, deleted int64, err error) {
	now := e.now()

	expired, err = e.opps.ExpireOlderThan(ctx, now.Add(-e.cfg.OpportunityTTL))
	if err != nil {
		return 0, 0, fmt.Errorf("emit: expire opportunities: %w", err)
	}
	deleted, err = e.signals.DeleteExpired(ctx, now)
	if err != nil {
		return expired, 0, fmt.Errorf("emit: delete expired signals: %w", err)
	}

	if expired > 0 || deleted > 0 {
		e.logger.Info("cleanup pass",
			slog.Int64("opportunities_expired", expired),
			slog.Int64("signals_deleted", deleted),
		)
	}
	return expired, deleted, nil
}
