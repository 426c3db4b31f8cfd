package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/themetrader/internal/blob/s3"
	"github.com/alanyoungcy/themetrader/internal/cache/redis"
	"github.com/alanyoungcy/themetrader/internal/config"
	"github.com/alanyoungcy/themetrader/internal/domain"
	"github.com/alanyoungcy/themetrader/internal/marketdata"
	"github.com/alanyoungcy/themetrader/internal/metrics"
	"github.com/alanyoungcy/themetrader/internal/notify"
	"github.com/alanyoungcy/themetrader/internal/platform/alpaca"
	"github.com/alanyoungcy/themetrader/internal/server/handler"
	"github.com/alanyoungcy/themetrader/internal/server/ws"
	"github.com/alanyoungcy/themetrader/internal/service"
	"github.com/alanyoungcy/themetrader/internal/store/postgres"
	"github.com/alanyoungcy/themetrader/internal/strategy"
)

// Dependencies bundles everything the application modes need. It is built
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Infrastructure. Nil when the corresponding section is disabled.
	Redis    *redis.Client
	Postgres *postgres.Client
	S3       *s3blob.Client

	// Stores and sinks, nil when disabled.
	TradeStore  domain.TradeStore
	CycleStore  domain.CycleStore
	AuditStore  domain.AuditStore
	Archiver    domain.ReportArchiver
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Market data, guarded and optionally cached.
	MarketData domain.MarketDataPort
	Guard      *marketdata.Guarded

	// Engine and the services around it.
	Scorer    *strategy.StockScorer
	Risk      *strategy.RiskScorer
	Portfolio *service.PortfolioManager
	Engine    *strategy.Engine
	Trades    *service.TradeService
	Journal   *service.CycleJournal
	Dashboard *service.DashboardService
	Hub       *ws.Hub
	Metrics   *metrics.Registry
	Notifier  *notify.Notifier
}

// Wire constructs every dependency from cfg and returns them together with
// a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- PostgreSQL ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Postgres = pgClient
		deps.TradeStore = postgres.NewTradeStore(pgClient)
		deps.CycleStore = postgres.NewCycleStore(pgClient)
		deps.AuditStore = postgres.NewAuditStore(pgClient)
	}

	// --- Redis ---
	var (
		barCache   domain.BarCache
		quoteCache domain.QuoteCache
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		barCache = redis.NewBarCache(redisClient)
		quoteCache = redis.NewQuoteCache(redisClient)
	}

	// --- S3 report archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.S3 = s3Client
		deps.Archiver = s3blob.NewReportArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			cfg.S3.ReportPrefix,
		)
	}

	// --- Market data: source, then guard, then cache ---
	source, err := newMarketSource(cfg, logger)
	if err != nil {
		return fail(err)
	}
	md := cfg.MarketData
	deps.Guard = marketdata.NewGuarded(source, marketdata.GuardConfig{
		Timeout:         md.FetchTimeout.Duration,
		RequestsPerSec:  md.RequestsPerSec,
		Burst:           md.Burst,
		BreakerFailures: uint32(max(md.BreakerFailures, 0)),
		BreakerCooldown: md.BreakerCooldown.Duration,
	}, logger)
	deps.MarketData = deps.Guard
	if md.CacheEnabled && barCache != nil {
		deps.MarketData = marketdata.NewCached(deps.Guard, barCache, quoteCache, marketdata.CacheConfig{
			BarTTL:    md.BarCacheTTL.Duration,
			QuoteTTL:  md.QuoteCacheTTL.Duration,
			MemberTTL: md.MemberCacheTTL.Duration,
		}, logger)
	}
	deps.Metrics.WatchBreaker("market_data", deps.Guard.BreakerState)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Engine ---
	sc := cfg.Strategy
	deps.Scorer = strategy.NewStockScorer(deps.MarketData, strategy.ScorerConfig{
		TopThemes:        sc.TopThemes,
		HistoryDays:      sc.HistoryDays,
		MomentumWindow:   sc.MomentumWindow,
		VolumeRecentDays: sc.VolumeRecentDays,
		MomentumWeight:   sc.MomentumWeight,
		VolumeWeight:     sc.VolumeWeight,
		ThemeWeight:      sc.ThemeWeight,
		Concurrency:      sc.FetchConcurrency,
	}, logger)

	rc := cfg.Risk
	deps.Risk = strategy.NewRiskScorer(deps.MarketData, strategy.RiskConfig{
		LookbackDays:     rc.LookbackDays,
		VolumeWeight:     rc.VolumeWeight,
		PriceWeight:      rc.PriceWeight,
		VolatilityWeight: rc.VolatilityWeight,
		Normalization:    rc.Normalization,
		WindowSize:       rc.WindowSize,
		HistoryCap:       rc.HistoryCap,
	}, logger)

	pc := cfg.Portfolio
	deps.Portfolio = service.NewPortfolioManager(service.PortfolioConfig{
		InitialCapital:       pc.InitialCapital,
		MaxPositions:         pc.MaxPositions,
		PositionSizeFraction: pc.PositionSizeFraction,
		MinQuantity:          pc.MinQuantity,
		DebitCashOnBuy:       pc.DebitCashOnBuy,
	}, deps.MarketData, logger)

	tiers := make([]domain.RiskTier, len(rc.Tiers))
	for i, t := range rc.Tiers {
		tiers[i] = domain.RiskTier{MinScore: t.MinScore, SellRatio: t.SellRatio}
	}
	deps.Engine = strategy.NewEngine(
		deps.Scorer,
		deps.Risk,
		deps.Portfolio,
		strategy.NewTierPolicy(tiers),
		strategy.EngineConfig{RecentReports: sc.RecentReports},
		logger,
	)
	if deps.LockManager != nil {
		deps.Engine.SetLocker(deps.LockManager)
	}

	// Without Redis the hub is the only event bus.
	deps.Hub = ws.NewHub(deps.SignalBus, deps.Engine.Status, cfg.Server.CORSOrigins, logger)
	var publisher service.Publisher = deps.Hub
	if deps.SignalBus != nil {
		publisher = deps.SignalBus
	}

	var notifier service.EventNotifier
	if deps.Notifier.Enabled() {
		notifier = deps.Notifier
	}

	deps.Trades = service.NewTradeService(deps.TradeStore, publisher, deps.AuditStore, logger)
	deps.Journal = service.NewCycleJournal(deps.CycleStore, deps.Archiver, publisher, notifier, logger)
	deps.Dashboard = service.NewDashboardService(deps.Portfolio, deps.MarketData, deps.Risk, logger)

	deps.Engine.SetTradeRecorder(deps.Trades)
	deps.Engine.AddObserver(deps.Journal)
	deps.Engine.AddObserver(deps.Metrics)

	return deps, cleanup, nil
}

// newMarketSource builds the configured upstream MarketDataPort.
func newMarketSource(cfg *config.Config, logger *slog.Logger) (domain.MarketDataPort, error) {
	switch cfg.MarketData.Source {
	case "fixture":
		fx, err := marketdata.LoadFixture(cfg.Fixture.Path)
		if err != nil {
			return nil, fmt.Errorf("wire: fixture: %w", err)
		}
		return fx, nil
	case "alpaca":
		themes := make([]alpaca.Theme, len(cfg.Themes))
		for i, t := range cfg.Themes {
			themes[i] = alpaca.Theme{ID: t.ID, Name: t.Name, Symbols: t.Symbols}
		}
		return alpaca.NewClient(alpaca.Config{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.BaseURL,
			DataURL:   cfg.Alpaca.DataURL,
			Feed:      cfg.Alpaca.Feed,
			Themes:    themes,
		}, logger), nil
	default:
		return nil, fmt.Errorf("wire: unknown market data source %q", cfg.MarketData.Source)
	}
}

// healthChecks returns a probe per enabled backing service.
func (d *Dependencies) healthChecks() map[string]handler.Check {
	checks := make(map[string]handler.Check)
	if d.Redis != nil {
		checks["redis"] = d.Redis.Ping
	}
	if d.Postgres != nil {
		checks["postgres"] = d.Postgres.Ping
	}
	if d.S3 != nil {
		checks["s3"] = d.S3.Health
	}
	return checks
}
