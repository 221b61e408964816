package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polysignal/engine/internal/correlation"
	"github.com/polysignal/engine/internal/detect"
	"github.com/polysignal/engine/internal/emit"
	"github.com/polysignal/engine/internal/momentum"
	"github.com/polysignal/engine/internal/moneyflow"
	"github.com/polysignal/engine/internal/pipeline"
	"github.com/polysignal/engine/internal/server"
	"github.com/polysignal/engine/internal/server/handler"
	"github.com/polysignal/engine/internal/server/ws"
	"github.com/polysignal/engine/internal/smartmoney"
)

// ScanMode runs the acquisition side only: market scans, orderbook scans,
// trade ingestion, and retention. A separate analyze-mode process can share
// the same database.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	emitter := a.buildEmitter(deps)
	orch := pipeline.NewOrchestrator(a.logger)
	a.registerAcquisition(orch, deps, emitter)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	a.startLiveFeed(ctx, g, deps)
	return g.Wait()
}

// AnalyzeMode runs the analysis workers only, over whatever data the store
// already holds.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	emitter := a.buildEmitter(deps)
	orch := pipeline.NewOrchestrator(a.logger)
	a.registerAnalysis(orch, deps, emitter)
	return orch.Run(ctx)
}

// ServeMode runs the read-only HTTP API without any pipeline workers.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: serve mode requires server.enabled")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs acquisition, analysis, and the HTTP API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	emitter := a.buildEmitter(deps)
	orch := pipeline.NewOrchestrator(a.logger)
	a.registerAcquisition(orch, deps, emitter)
	a.registerAnalysis(orch, deps, emitter)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	a.startLiveFeed(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

// startLiveFeed streams book updates into the caches when Redis is wired.
// Feed failures are logged, not fatal; the polling workers keep the caches
// eventually fresh on their own.
func (a *App) startLiveFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.BookCache == nil {
		return
	}
	feedCfg := pipeline.DefaultLiveFeedConfig()
	feedCfg.TopMarkets = a.cfg.Engine.TopMarkets
	feed := pipeline.NewLiveFeed(feedCfg, deps.WS, deps.Markets, deps.BookCache, deps.PriceCache, a.logger)
	g.Go(func() error {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("live feed stopped", slog.String("error", err.Error()))
		}
		return nil
	})
}

// buildEmitter assembles the shared emission layer. The bus and notifier are
// optional; the emitter degrades to store-only output without them.
func (a *App) buildEmitter(deps *Dependencies) *emit.Emitter {
	var notifier emit.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}
	return emit.NewEmitter(emit.DefaultConfig(), deps.Opportunities, deps.Signals, deps.Bus, notifier, a.logger)
}

// registerAcquisition wires the ingestion workers onto the orchestrator.
func (a *App) registerAcquisition(orch *pipeline.Orchestrator, deps *Dependencies, emitter *emit.Emitter) {
	eng := a.cfg.Engine

	scanCfg := pipeline.DefaultMarketScannerConfig()
	scanCfg.FetchLimit = eng.FetchLimit
	sweep := momentum.NewSweep(momentum.DefaultSweepConfig(), a.logger)
	orch.Register(pipeline.NewMarketScanner(
		scanCfg, deps.Gamma,
		deps.Markets, deps.Prices, deps.Opportunities,
		sweep, emitter,
		deps.MarketCache, deps.PriceCache,
		a.logger,
	), eng.MarketScanInterval.Duration)

	bookCfg := pipeline.DefaultOrderbookScannerConfig()
	bookCfg.TopMarkets = eng.TopMarkets
	bookDetector := detect.NewOrderbook(detect.DefaultOrderbookConfig(), a.logger)
	orch.Register(pipeline.NewOrderbookScanner(
		bookCfg, deps.Clob,
		deps.Markets, deps.Books, deps.BookCache,
		bookDetector, emitter,
		a.logger,
	), eng.OrderbookScanInterval.Duration)

	tradeCfg := pipeline.DefaultTradeSyncerConfig()
	tradeCfg.TopMarkets = eng.TopMarkets
	tradeCfg.WhaleNotional = eng.WhaleNotional
	orch.Register(pipeline.NewTradeSyncer(
		tradeCfg, deps.Data, deps.Markets, deps.Trades, a.logger,
	), eng.TradeSyncInterval.Duration)

	retCfg := pipeline.DefaultRetentionWorkerConfig()
	retCfg.TradeRetention = time.Duration(eng.TradeRetentionDays) * 24 * time.Hour
	var archiver pipeline.Archiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	orch.Register(pipeline.NewRetentionWorker(
		retCfg, archiver, emitter, deps.Trades, a.logger,
	), eng.RetentionInterval.Duration)
}

// registerAnalysis wires the detector and engine workers onto the
// orchestrator.
func (a *App) registerAnalysis(orch *pipeline.Orchestrator, deps *Dependencies, emitter *emit.Emitter) {
	eng := a.cfg.Engine

	parity := detect.NewParity(detect.DefaultParityConfig(), a.logger)
	orch.Register(pipeline.NewParityWorker(
		deps.Markets, parity, emitter, eng.TopMarkets, a.logger,
	), eng.AnalysisInterval.Duration)

	momCfg := pipeline.DefaultMomentumWorkerConfig()
	momCfg.TopMarkets = eng.TopMarkets
	momEngine := momentum.NewEngine(momentum.DefaultConfig(), a.logger)
	orch.Register(pipeline.NewMomentumWorker(
		momCfg, deps.Markets, deps.Prices, deps.Books, momEngine, emitter, a.logger,
	), eng.MomentumInterval.Duration)

	flowCfg := pipeline.DefaultFlowWorkerConfig()
	flowCfg.TopMarkets = eng.TopMarkets
	flowEngine := moneyflow.NewEngine(moneyflow.DefaultConfig(), a.logger)
	orch.Register(pipeline.NewFlowWorker(
		flowCfg, deps.Markets, deps.Trades, deps.Flows, flowEngine, emitter, a.logger,
	), eng.FlowInterval.Duration)

	// Correlation keeps its own, smaller market cap; the pairwise pass is
	// quadratic in it.
	corrCfg := pipeline.DefaultCorrelationWorkerConfig()
	corrEngine := correlation.NewEngine(correlation.DefaultConfig(), a.logger)
	orch.Register(pipeline.NewCorrelationWorker(
		corrCfg, deps.Markets, deps.Prices, deps.Correlations, corrEngine, emitter, a.logger,
	), eng.CorrelationInterval.Duration)

	smCfg := pipeline.DefaultSmartMoneyWorkerConfig()
	smEngine := smartmoney.NewEngine(smartmoney.DefaultConfig(), a.logger)
	orch.Register(pipeline.NewSmartMoneyWorker(
		smCfg, deps.Trades, deps.Markets, deps.PriceCache, smEngine, emitter, a.logger,
	), eng.SmartMoneyInterval.Duration)
}

// pingFunc adapts a bare health probe to the handler.Pinger interface.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// startHTTPServer adds the HTTP API and its WebSocket hub to the given
// errgroup, plus a goroutine that shuts the server down when ctx is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	pingers := map[string]handler.Pinger{
		"postgres": pingFunc(deps.PG.Pool().Ping),
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	if deps.Blob != nil {
		pingers["s3"] = pingFunc(deps.Blob.Health)
	}

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(pingers, a.logger),
		Markets:       handler.NewMarketHandler(deps.Markets, a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.Opportunities, a.logger),
		Signals:       handler.NewSignalHandler(deps.Signals, a.logger),
	}

	// The stream hub needs the bus; without Redis the /ws route is simply
	// not registered.
	var hub *ws.Hub
	if deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, nil, a.logger)
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("ws hub: %w", err)
			}
			return nil
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.Limiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
