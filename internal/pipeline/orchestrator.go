// Package pipeline schedules the engine's periodic workers: market and
// orderbook acquisition, trade sync, the analysis engines, and retention.
// Each worker owns one concern and runs on its own cadence; the orchestrator
// supervises them all under a single errgroup.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Worker is one schedulable unit of pipeline work. Run performs a single
// pass; the orchestrator decides when passes happen.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Intervals holds the cadence of every pipeline loop.
type Intervals struct {
	MarketScan    time.Duration
	OrderbookScan time.Duration
	TradeSync     time.Duration
	Analysis      time.Duration
	Momentum      time.Duration
	Flow          time.Duration
	Correlation   time.Duration
	SmartMoney    time.Duration
	Retention     time.Duration
}

// DefaultIntervals returns the production cadences. Acquisition runs fast,
// the heavier engines run on coarser ticks.
func DefaultIntervals() Intervals {
	return Intervals{
		MarketScan:    30 * time.Second,
		OrderbookScan: 10 * time.Second,
		TradeSync:     30 * time.Second,
		Analysis:      time.Minute,
		Momentum:      2 * time.Minute,
		Flow:          time.Minute,
		Correlation:   5 * time.Minute,
		SmartMoney:    5 * time.Minute,
		Retention:     time.Hour,
	}
}

type scheduled struct {
	worker   Worker
	interval time.Duration
}

// Orchestrator runs registered workers concurrently, each on its own ticker.
// A failing pass is logged and the loop keeps going; only context
// cancellation stops a loop.
type Orchestrator struct {
	workers []scheduled
	logger  *slog.Logger
}

// NewOrchestrator creates an empty orchestrator.
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	return &Orchestrator{logger: logger.With(slog.String("component", "orchestrator"))}
}

// Register adds a worker to run every interval. Workers with a non-positive
// interval are skipped, which is how disabled modes opt out.
func (o *Orchestrator) Register(w Worker, interval time.Duration) {
	if interval <= 0 {
		o.logger.Info("worker disabled", slog.String("worker", w.Name()))
		return
	}
	o.workers = append(o.workers, scheduled{worker: w, interval: interval})
}

// Run starts every registered worker loop and blocks until ctx is cancelled.
// Loops run their first pass immediately, then on each tick.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.workers) == 0 {
		return fmt.Errorf("pipeline: no workers registered")
	}
	o.logger.Info("pipeline starting", slog.Int("workers", len(o.workers)))

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range o.workers {
		s := s
		g.Go(func() error {
			err := o.runLoop(ctx, s.worker, s.interval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("pipeline: %s loop: %w", s.worker.Name(), err)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) runLoop(ctx context.Context, w Worker, interval time.Duration) error {
	o.logger.Info("worker loop starting",
		slog.String("worker", w.Name()),
		slog.Duration("interval", interval),
	)

	o.runOnce(ctx, w)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("worker loop stopping", slog.String("worker", w.Name()))
			return ctx.Err()
		case <-ticker.C:
			o.runOnce(ctx, w)
		}
	}
}

func (o *Orchestrator) runOnce(ctx context.Context, w Worker) {
	start := time.Now()
	if err := w.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Error("worker pass failed",
			slog.String("worker", w.Name()),
			slog.String("error", err.Error()),
		)
		return
	}
	o.logger.Debug("worker pass complete",
		slog.String("worker", w.Name()),
		slog.Duration("elapsed", time.Since(start)),
	)
}
