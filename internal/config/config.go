// Package config defines the top-level configuration for the theme trader
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by THEMETRADER_* environment variables.
type Config struct {
	Strategy   StrategyConfig   `toml:"strategy"`
	Risk       RiskConfig       `toml:"risk"`
	Portfolio  PortfolioConfig  `toml:"portfolio"`
	MarketData MarketDataConfig `toml:"market_data"`
	Alpaca     AlpacaConfig     `toml:"alpaca"`
	Fixture    FixtureConfig    `toml:"fixture"`
	Themes     []ThemeConfig    `toml:"themes"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// StrategyConfig holds candidate selection parameters.
type StrategyConfig struct {
	TopThemes        int     `toml:"top_themes"`
	HistoryDays      int     `toml:"history_days"`
	MomentumWindow   int     `toml:"momentum_window"`
	VolumeRecentDays int     `toml:"volume_recent_days"`
	MomentumWeight   float64 `toml:"momentum_weight"`
	VolumeWeight     float64 `toml:"volume_weight"`
	ThemeWeight      float64 `toml:"theme_weight"`
	// FetchConcurrency bounds the number of in-flight history fetches while
	// scoring the universe.
	FetchConcurrency int `toml:"fetch_concurrency"`
	// RecentReports is how many cycle reports the engine keeps in memory.
	RecentReports int `toml:"recent_reports"`
}

// RiskConfig holds risk scoring and exit tier parameters.
type RiskConfig struct {
	LookbackDays     int     `toml:"lookback_days"`
	VolumeWeight     float64 `toml:"volume_weight"`
	PriceWeight      float64 `toml:"price_weight"`
	VolatilityWeight float64 `toml:"volatility_weight"`
	// Normalization is "rolling" or "single_sample".
	Normalization string       `toml:"normalization"`
	WindowSize    int          `toml:"window_size"`
	HistoryCap    int          `toml:"history_cap"`
	Tiers         []TierConfig `toml:"tiers"`
}

// TierConfig maps a minimum risk score to the fraction of a position to sell.
type TierConfig struct {
	MinScore  float64 `toml:"min_score"`
	SellRatio float64 `toml:"sell_ratio"`
}

// PortfolioConfig holds capital and sizing parameters.
type PortfolioConfig struct {
	InitialCapital       float64 `toml:"initial_capital"`
	MaxPositions         int     `toml:"max_positions"`
	PositionSizeFraction float64 `toml:"position_size_fraction"`
	MinQuantity          float64 `toml:"min_quantity"`
	DebitCashOnBuy       bool    `toml:"debit_cash_on_buy"`
}

// MarketDataConfig selects the market data source and tunes the guards and
// caches wrapped around it.
type MarketDataConfig struct {
	// Source is "alpaca" or "fixture".
	Source          string   `toml:"source"`
	FetchTimeout    duration `toml:"fetch_timeout"`
	RequestsPerSec  float64  `toml:"requests_per_sec"`
	Burst           int      `toml:"burst"`
	BreakerFailures int      `toml:"breaker_failures"`
	BreakerCooldown duration `toml:"breaker_cooldown"`
	CacheEnabled    bool     `toml:"cache_enabled"`
	BarCacheTTL     duration `toml:"bar_cache_ttl"`
	QuoteCacheTTL   duration `toml:"quote_cache_ttl"`
	MemberCacheTTL  duration `toml:"member_cache_ttl"`
}

// AlpacaConfig holds Alpaca market data credentials.
type AlpacaConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	BaseURL   string `toml:"base_url"`
	DataURL   string `toml:"data_url"`
	Feed      string `toml:"feed"`
}

// FixtureConfig points at a recorded YAML data set.
type FixtureConfig struct {
	Path string `toml:"path"`
}

// ThemeConfig declares one theme of the tradable universe.
type ThemeConfig struct {
	ID      string   `toml:"id"`
	Name    string   `toml:"name"`
	Symbols []string `toml:"symbols"`
}

// SchedulerConfig holds the daily run times.
type SchedulerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Timezone    string   `toml:"timezone"`
	RunTimes    []string `toml:"run_times"`
	SummaryTime string   `toml:"summary_time"`
	RunOnStart  bool     `toml:"run_on_start"`
	// Holidays lists market-closed dates as YYYY-MM-DD.
	Holidays []string `toml:"holidays"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	ReportPrefix   string `toml:"report_prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	MetricsPath string   `toml:"metrics_path"`

	// CycleTimeout bounds a cycle started from the dashboard. The cycle
	// keeps running if the client disconnects.
	CycleTimeout duration `toml:"cycle_timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			TopThemes:        10,
			HistoryDays:      30,
			MomentumWindow:   5,
			VolumeRecentDays: 3,
			MomentumWeight:   0.4,
			VolumeWeight:     0.3,
			ThemeWeight:      0.3,
			FetchConcurrency: 8,
			RecentReports:    50,
		},
		Risk: RiskConfig{
			LookbackDays:     7,
			VolumeWeight:     0.3,
			PriceWeight:      0.3,
			VolatilityWeight: 0.4,
			Normalization:    "rolling",
			WindowSize:       30,
			HistoryCap:       30,
			Tiers: []TierConfig{
				{MinScore: 0.8, SellRatio: 1.0},
				{MinScore: 0.6, SellRatio: 0.7},
				{MinScore: 0.4, SellRatio: 0.3},
			},
		},
		Portfolio: PortfolioConfig{
			InitialCapital:       1_000_000,
			MaxPositions:         5,
			PositionSizeFraction: 0.2,
			MinQuantity:          1,
			DebitCashOnBuy:       true,
		},
		MarketData: MarketDataConfig{
			Source:          "alpaca",
			FetchTimeout:    duration{10 * time.Second},
			RequestsPerSec:  3,
			Burst:           5,
			BreakerFailures: 5,
			BreakerCooldown: duration{time.Minute},
			CacheEnabled:    true,
			BarCacheTTL:     duration{6 * time.Hour},
			QuoteCacheTTL:   duration{30 * time.Second},
			MemberCacheTTL:  duration{24 * time.Hour},
		},
		Alpaca: AlpacaConfig{
			BaseURL: "https://paper-api.alpaca.markets",
			DataURL: "https://data.alpaca.markets",
			Feed:    "iex",
		},
		Fixture: FixtureConfig{
			Path: "testdata/market.yaml",
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Timezone:    "America/New_York",
			RunTimes:    []string{"09:30", "14:30"},
			SummaryTime: "15:00",
			RunOnStart:  true,
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "themetrader-reports",
			ForcePathStyle: true,
			ReportPrefix:   "reports",
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:    120,
			RateWindow:   duration{time.Minute},
			MetricsPath:  "/metrics",
			CycleTimeout: duration{10 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"cycle_completed", "position_closed", "daily_summary", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":  true,
	"once":   true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSources = map[string]bool{
	"alpaca":  true,
	"fixture": true,
}

var validNormalizations = map[string]bool{
	"rolling":       true,
	"single_sample": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, once, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Strategy
	if c.Strategy.TopThemes < 1 {
		errs = append(errs, "strategy: top_themes must be >= 1")
	}
	if c.Strategy.HistoryDays < 2 {
		errs = append(errs, "strategy: history_days must be >= 2")
	}
	if c.Strategy.MomentumWindow < 1 {
		errs = append(errs, "strategy: momentum_window must be >= 1")
	}
	if c.Strategy.VolumeRecentDays < 1 {
		errs = append(errs, "strategy: volume_recent_days must be >= 1")
	}
	if c.Strategy.FetchConcurrency < 1 {
		errs = append(errs, "strategy: fetch_concurrency must be >= 1")
	}

	// Risk
	if c.Risk.LookbackDays < 2 {
		errs = append(errs, "risk: lookback_days must be >= 2")
	}
	if !validNormalizations[c.Risk.Normalization] {
		errs = append(errs, fmt.Sprintf("risk: unknown normalization %q (valid: rolling, single_sample)", c.Risk.Normalization))
	}
	if c.Risk.WindowSize < 1 {
		errs = append(errs, "risk: window_size must be >= 1")
	}
	if c.Risk.HistoryCap < 1 {
		errs = append(errs, "risk: history_cap must be >= 1")
	}
	for i, t := range c.Risk.Tiers {
		if t.MinScore < 0 || t.MinScore > 1 {
			errs = append(errs, fmt.Sprintf("risk: tiers[%d].min_score must be within [0,1]", i))
		}
		if t.SellRatio <= 0 || t.SellRatio > 1 {
			errs = append(errs, fmt.Sprintf("risk: tiers[%d].sell_ratio must be within (0,1]", i))
		}
	}

	// Portfolio
	if c.Portfolio.InitialCapital <= 0 {
		errs = append(errs, "portfolio: initial_capital must be > 0")
	}
	if c.Portfolio.MaxPositions < 1 {
		errs = append(errs, "portfolio: max_positions must be >= 1")
	}
	if c.Portfolio.PositionSizeFraction <= 0 || c.Portfolio.PositionSizeFraction > 1 {
		errs = append(errs, "portfolio: position_size_fraction must be within (0,1]")
	}
	if c.Portfolio.MinQuantity < 0 {
		errs = append(errs, "portfolio: min_quantity must be >= 0")
	}

	// Market data
	if !validSources[c.MarketData.Source] {
		errs = append(errs, fmt.Sprintf("market_data: unknown source %q (valid: alpaca, fixture)", c.MarketData.Source))
	}
	if c.MarketData.FetchTimeout.Duration <= 0 {
		errs = append(errs, "market_data: fetch_timeout must be > 0")
	}
	if c.MarketData.RequestsPerSec <= 0 {
		errs = append(errs, "market_data: requests_per_sec must be > 0")
	}
	if c.MarketData.Source == "alpaca" {
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			errs = append(errs, "alpaca: api_key and api_secret are required for source alpaca")
		}
		if len(c.Themes) == 0 {
			errs = append(errs, "themes: at least one theme is required for source alpaca")
		}
	}
	if c.MarketData.Source == "fixture" && c.Fixture.Path == "" {
		errs = append(errs, "fixture: path must not be empty for source fixture")
	}
	for i, t := range c.Themes {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("themes[%d]: id must not be empty", i))
		}
		if len(t.Symbols) == 0 {
			errs = append(errs, fmt.Sprintf("themes[%d]: symbols must not be empty", i))
		}
	}

	// Scheduler
	if c.Scheduler.Enabled {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("scheduler: invalid timezone %q", c.Scheduler.Timezone))
		}
		for _, rt := range c.Scheduler.RunTimes {
			if _, err := time.Parse("15:04", rt); err != nil {
				errs = append(errs, fmt.Sprintf("scheduler: invalid run time %q (want HH:MM)", rt))
			}
		}
		if c.Scheduler.SummaryTime != "" {
			if _, err := time.Parse("15:04", c.Scheduler.SummaryTime); err != nil {
				errs = append(errs, fmt.Sprintf("scheduler: invalid summary_time %q (want HH:MM)", c.Scheduler.SummaryTime))
			}
		}
		for _, h := range c.Scheduler.Holidays {
			if _, err := time.Parse(time.DateOnly, h); err != nil {
				errs = append(errs, fmt.Sprintf("scheduler: invalid holiday %q (want YYYY-MM-DD)", h))
			}
		}
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.CycleTimeout.Duration <= 0 {
			errs = append(errs, "server: cycle_timeout must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
