package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/polysignal/engine/internal/blob/s3"
	"github.com/polysignal/engine/internal/cache/redis"
	"github.com/polysignal/engine/internal/config"
	"github.com/polysignal/engine/internal/domain"
	"github.com/polysignal/engine/internal/notify"
	"github.com/polysignal/engine/internal/platform/polymarket"
	"github.com/polysignal/engine/internal/store/postgres"
)

// Dependencies bundles every wired component the operating modes draw from.
// Optional infrastructure that is disabled in the configuration stays nil:
// the cache and bus fields when Redis is off, Blob and Archiver when S3 is
// off, Notifier when no notification channel is configured.
type Dependencies struct {
	PG    *postgres.Client
	Redis *redis.Client
	Blob  *s3blob.Client

	Markets       domain.MarketStore
	Prices        domain.PriceStore
	Books         domain.OrderbookStore
	Trades        domain.TradeStore
	Opportunities domain.OpportunityStore
	Signals       domain.SignalStore
	Correlations  domain.CorrelationStore
	Flows         domain.MoneyFlowStore

	PriceCache  domain.PriceCache
	BookCache   domain.OrderbookCache
	MarketCache domain.MarketCache
	Limiter     domain.RateLimiter
	Bus         domain.SignalBus

	Archiver *s3blob.Archiver
	Notifier *notify.Notifier

	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient
	Data  *polymarket.DataClient
	WS    *polymarket.WSClient
}

// Wire builds every dependency the configuration enables. It returns the
// dependencies plus a cleanup function that closes connections in reverse
// construction order. On error the partially built set is already torn
// down.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	deps := &Dependencies{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Postgres is the system of record; every mode needs it.
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	closers = append(closers, pg.Close)
	deps.PG = pg

	if err := pg.RunMigrations(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: run migrations: %w", err)
	}

	pool := pg.Pool()
	signalStore := postgres.NewSignalStore(pool)
	tradeStore := postgres.NewTradeStore(pool)
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Prices = postgres.NewPriceStore(pool)
	deps.Books = postgres.NewOrderbookStore(pool)
	deps.Trades = tradeStore
	deps.Opportunities = postgres.NewOpportunityStore(pool)
	deps.Signals = signalStore
	deps.Correlations = postgres.NewCorrelationStore(pool)
	deps.Flows = postgres.NewMoneyFlowStore(pool)

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: connect redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.Redis = rc
		deps.PriceCache = redis.NewPriceCache(rc)
		deps.BookCache = redis.NewOrderbookCache(rc)
		deps.MarketCache = redis.NewMarketCache(rc)
		deps.Limiter = redis.NewRateLimiter(rc)
		deps.Bus = redis.NewSignalBus(rc)
	} else {
		logger.Warn("redis disabled, running without caches, rate limiting, and the signal stream")
	}

	if cfg.S3.Enabled {
		bc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: connect object store: %w", err)
		}
		closers = append(closers, func() { _ = bc.Close() })
		deps.Blob = bc
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(bc), signalStore, tradeStore, logger)
	}

	if senders := buildSenders(cfg.Notify); len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost)
	deps.Data = polymarket.NewDataClient(cfg.Polymarket.DataHost)
	deps.WS = polymarket.NewWSClient(cfg.Polymarket.WsHost)

	return deps, cleanup, nil
}

// buildSenders assembles the configured notification channels.
func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}
