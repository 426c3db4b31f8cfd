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
// built-in defaults, applies THEMETRADER_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known THEMETRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Secrets are expected to arrive this way at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── Strategy ──
	setInt(&cfg.Strategy.TopThemes, "THEMETRADER_STRATEGY_TOP_THEMES")
	setInt(&cfg.Strategy.HistoryDays, "THEMETRADER_STRATEGY_HISTORY_DAYS")
	setInt(&cfg.Strategy.FetchConcurrency, "THEMETRADER_STRATEGY_FETCH_CONCURRENCY")

	// ── Risk ──
	setInt(&cfg.Risk.LookbackDays, "THEMETRADER_RISK_LOOKBACK_DAYS")
	setStr(&cfg.Risk.Normalization, "THEMETRADER_RISK_NORMALIZATION")
	setInt(&cfg.Risk.WindowSize, "THEMETRADER_RISK_WINDOW_SIZE")

	// ── Portfolio ──
	setFloat64(&cfg.Portfolio.InitialCapital, "THEMETRADER_PORTFOLIO_INITIAL_CAPITAL")
	setInt(&cfg.Portfolio.MaxPositions, "THEMETRADER_PORTFOLIO_MAX_POSITIONS")
	setFloat64(&cfg.Portfolio.PositionSizeFraction, "THEMETRADER_PORTFOLIO_POSITION_SIZE_FRACTION")
	setBool(&cfg.Portfolio.DebitCashOnBuy, "THEMETRADER_PORTFOLIO_DEBIT_CASH_ON_BUY")

	// ── Market data ──
	setStr(&cfg.MarketData.Source, "THEMETRADER_MARKET_DATA_SOURCE")
	setDuration(&cfg.MarketData.FetchTimeout, "THEMETRADER_MARKET_DATA_FETCH_TIMEOUT")
	setFloat64(&cfg.MarketData.RequestsPerSec, "THEMETRADER_MARKET_DATA_REQUESTS_PER_SEC")
	setBool(&cfg.MarketData.CacheEnabled, "THEMETRADER_MARKET_DATA_CACHE_ENABLED")

	// ── Alpaca ──
	setStr(&cfg.Alpaca.APIKey, "THEMETRADER_ALPACA_API_KEY")
	setStr(&cfg.Alpaca.APIKey, "APCA_API_KEY_ID") // SDK-standard alias
	setStr(&cfg.Alpaca.APISecret, "THEMETRADER_ALPACA_API_SECRET")
	setStr(&cfg.Alpaca.APISecret, "APCA_API_SECRET_KEY") // SDK-standard alias
	setStr(&cfg.Alpaca.BaseURL, "THEMETRADER_ALPACA_BASE_URL")
	setStr(&cfg.Alpaca.DataURL, "THEMETRADER_ALPACA_DATA_URL")
	setStr(&cfg.Alpaca.Feed, "THEMETRADER_ALPACA_FEED")

	// ── Fixture ──
	setStr(&cfg.Fixture.Path, "THEMETRADER_FIXTURE_PATH")

	// ── Scheduler ──
	setBool(&cfg.Scheduler.Enabled, "THEMETRADER_SCHEDULER_ENABLED")
	setStr(&cfg.Scheduler.Timezone, "THEMETRADER_SCHEDULER_TIMEZONE")
	setStringSlice(&cfg.Scheduler.RunTimes, "THEMETRADER_SCHEDULER_RUN_TIMES")
	setStr(&cfg.Scheduler.SummaryTime, "THEMETRADER_SCHEDULER_SUMMARY_TIME")
	setBool(&cfg.Scheduler.RunOnStart, "THEMETRADER_SCHEDULER_RUN_ON_START")
	setStringSlice(&cfg.Scheduler.Holidays, "THEMETRADER_SCHEDULER_HOLIDAYS")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "THEMETRADER_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "THEMETRADER_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "THEMETRADER_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "THEMETRADER_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "THEMETRADER_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "THEMETRADER_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "THEMETRADER_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "THEMETRADER_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "THEMETRADER_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "THEMETRADER_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "THEMETRADER_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "THEMETRADER_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "THEMETRADER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "THEMETRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "THEMETRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "THEMETRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "THEMETRADER_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "THEMETRADER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "THEMETRADER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "THEMETRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "THEMETRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "THEMETRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "THEMETRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "THEMETRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "THEMETRADER_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "THEMETRADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "THEMETRADER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "THEMETRADER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "THEMETRADER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "THEMETRADER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.CycleTimeout, "THEMETRADER_SERVER_CYCLE_TIMEOUT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "THEMETRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "THEMETRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "THEMETRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "THEMETRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "THEMETRADER_MODE")
	setStr(&cfg.LogLevel, "THEMETRADER_LOG_LEVEL")
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
