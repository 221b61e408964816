package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSIGNAL_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYSIGNAL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYSIGNAL_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYSIGNAL_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYSIGNAL_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYSIGNAL_POLYMARKET_WS_HOST")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYSIGNAL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYSIGNAL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYSIGNAL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYSIGNAL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYSIGNAL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYSIGNAL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYSIGNAL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYSIGNAL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYSIGNAL_POSTGRES_POOL_MIN_CONNS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYSIGNAL_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYSIGNAL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSIGNAL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSIGNAL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSIGNAL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYSIGNAL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYSIGNAL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYSIGNAL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYSIGNAL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSIGNAL_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSIGNAL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSIGNAL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYSIGNAL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYSIGNAL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYSIGNAL_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setInt(&cfg.Engine.FetchLimit, "POLYSIGNAL_ENGINE_FETCH_LIMIT")
	setInt(&cfg.Engine.TopMarkets, "POLYSIGNAL_ENGINE_TOP_MARKETS")
	setInt(&cfg.Engine.TradeRetentionDays, "POLYSIGNAL_ENGINE_TRADE_RETENTION_DAYS")
	setFloat64(&cfg.Engine.WhaleNotional, "POLYSIGNAL_ENGINE_WHALE_NOTIONAL")
	setDuration(&cfg.Engine.MarketScanInterval, "POLYSIGNAL_ENGINE_MARKET_SCAN_INTERVAL")
	setDuration(&cfg.Engine.OrderbookScanInterval, "POLYSIGNAL_ENGINE_ORDERBOOK_SCAN_INTERVAL")
	setDuration(&cfg.Engine.TradeSyncInterval, "POLYSIGNAL_ENGINE_TRADE_SYNC_INTERVAL")
	setDuration(&cfg.Engine.AnalysisInterval, "POLYSIGNAL_ENGINE_ANALYSIS_INTERVAL")
	setDuration(&cfg.Engine.MomentumInterval, "POLYSIGNAL_ENGINE_MOMENTUM_INTERVAL")
	setDuration(&cfg.Engine.FlowInterval, "POLYSIGNAL_ENGINE_FLOW_INTERVAL")
	setDuration(&cfg.Engine.CorrelationInterval, "POLYSIGNAL_ENGINE_CORRELATION_INTERVAL")
	setDuration(&cfg.Engine.SmartMoneyInterval, "POLYSIGNAL_ENGINE_SMART_MONEY_INTERVAL")
	setDuration(&cfg.Engine.RetentionInterval, "POLYSIGNAL_ENGINE_RETENTION_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYSIGNAL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYSIGNAL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYSIGNAL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYSIGNAL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "POLYSIGNAL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "POLYSIGNAL_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYSIGNAL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYSIGNAL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYSIGNAL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYSIGNAL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYSIGNAL_MODE")
	setStr(&cfg.LogLevel, "POLYSIGNAL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
