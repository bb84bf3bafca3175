package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/aggregate"
	"github.com/guarzo/mtgautobuy/internal/autobuy"
	"github.com/guarzo/mtgautobuy/internal/cache"
	"github.com/guarzo/mtgautobuy/internal/cards"
	"github.com/guarzo/mtgautobuy/internal/config"
	"github.com/guarzo/mtgautobuy/internal/inventory"
	"github.com/guarzo/mtgautobuy/internal/ips"
	"github.com/guarzo/mtgautobuy/internal/marketplace"
	"github.com/guarzo/mtgautobuy/internal/marketplace/storefront"
	"github.com/guarzo/mtgautobuy/internal/marketplace/tcgplayer"
	"github.com/guarzo/mtgautobuy/internal/ratelimit"
	"github.com/guarzo/mtgautobuy/internal/report"
	"github.com/guarzo/mtgautobuy/internal/seasonality"
	"github.com/guarzo/mtgautobuy/internal/storage/postgres"
	"github.com/guarzo/mtgautobuy/internal/substitution"
)

// Deps holds every wired component.
type Deps struct {
	Cache    cache.Cache
	DB       *postgres.Client
	Registry *substitution.Registry
	Adjuster *seasonality.Adjuster
	Clients  []marketplace.Client
	Service  *autobuy.Service
	Sink     report.FileSink
}

// Wire connects to external systems and builds the pipeline. The returned
// cleanup releases connections and is safe to call when err is non-nil.
func Wire(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Deps, func(), error) {
		return nil, cleanup, err
	}

	deps := &Deps{Sink: report.FileSink{Dir: cfg.Schedule.ReportDir}}

	// Cache
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Prefix:     cfg.Redis.Prefix,
			DefaultTTL: cfg.Cache.DefaultTTL.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.Cache = rc
		logger.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
	} else {
		deps.Cache = cache.NewMemoryCache(cfg.Cache.Capacity, cfg.Cache.DefaultTTL.Duration)
	}

	// Database
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		closers = append(closers, db.Close)
		if cfg.Database.RunMigrations {
			if err := db.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: %w", err))
			}
		}
		deps.DB = db
	}

	// Substitution groups
	var store substitution.Store = substitution.NewMemoryStore()
	if deps.DB != nil {
		store = substitution.NewPostgresStore(deps.DB.Pool())
	}
	deps.Registry = substitution.NewRegistry(store, logger)
	if cfg.Substitution.GroupsFile != "" {
		if _, err := substitution.LoadGroupsFile(ctx, deps.Registry, cfg.Substitution.GroupsFile); err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
	}

	// Seasonality
	policy, err := seasonality.ParseCombinePolicy(cfg.Seasonality.CombinePolicy)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	var events []seasonality.Event
	if cfg.Seasonality.EventsFile != "" {
		events, err = seasonality.LoadEvents(cfg.Seasonality.EventsFile)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
	}
	deps.Adjuster = seasonality.NewAdjuster(events, policy)
	logger.Info("seasonal events loaded",
		zap.Int("events", len(deps.Adjuster.Events())),
		zap.String("policy", string(deps.Adjuster.Policy())),
	)

	// Card resolution
	resolver := cards.NewScryfall(cards.ScryfallConfig{
		BaseURL: cfg.Scryfall.BaseURL,
		Timeout: cfg.Scryfall.Timeout.Duration,
	}, ratelimit.NewPacer(cfg.Scryfall.RequestInterval.Duration, 1), deps.Cache, logger)

	// Marketplaces
	if cfg.TCGPlayer.Enabled {
		deps.Clients = append(deps.Clients, tcgplayer.New(tcgplayer.Config{
			BaseURL:              cfg.TCGPlayer.BaseURL,
			APIKey:               cfg.TCGPlayer.APIKey,
			CategoryID:           cfg.TCGPlayer.CategoryID,
			Timeout:              cfg.TCGPlayer.Timeout.Duration,
			ProductCacheTTL:      cfg.TCGPlayer.ProductCacheTTL.Duration,
			ExcludeHeavilyPlayed: cfg.TCGPlayer.ExcludeHeavilyPlayed,
		}, ratelimit.NewBucket(cfg.TCGPlayer.MaxRequestsPerMinute), deps.Cache, resolver, logger))
	}
	if cfg.Storefront.Enabled {
		sc := cfg.Storefront
		rating := sc.SellerRating
		var freeAt *float64
		if sc.FreeShippingAt > 0 {
			f := sc.FreeShippingAt
			freeAt = &f
		}
		deps.Clients = append(deps.Clients, storefront.New(storefront.Config{
			Name:                 sc.Name,
			BaseURL:              sc.BaseURL,
			SearchPath:           sc.SearchPath,
			SellerRating:         &rating,
			ShippingBase:         sc.ShippingBase,
			FreeAt:               freeAt,
			Timeout:              sc.Timeout.Duration,
			ExcludeHeavilyPlayed: sc.ExcludeHeavilyPlayed,
		}, ratelimit.NewPacer(sc.RequestInterval.Duration, 1), logger))
	}
	if len(deps.Clients) == 0 {
		logger.Warn("no marketplaces enabled, market signal will be neutral")
	}

	// Inventory
	var source inventory.Source
	switch cfg.Inventory.Source {
	case "postgres":
		if deps.DB == nil {
			return fail(fmt.Errorf("wire: inventory source postgres needs the database enabled"))
		}
		ps, err := inventory.NewPostgresSource(deps.DB.Pool(), cfg.Inventory.View)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		source = ps
	case "csv":
		source = inventory.NewCSVSource(cfg.Inventory.CSVPath)
	default:
		return fail(fmt.Errorf("wire: unknown inventory source %q", cfg.Inventory.Source))
	}

	svcDeps := autobuy.Deps{
		Inventory:       source,
		Cards:           resolver,
		Groups:          deps.Registry,
		Seasons:         deps.Adjuster,
		Calculator:      ips.NewCalculator(cfg.IPS),
		PriceHistory:    deps.Cache,
		PriceHistoryTTL: cfg.Cache.PriceHistoryTTL.Duration,
		Logger:          logger,
	}
	if len(deps.Clients) > 0 {
		svcDeps.Market = aggregate.New(deps.Clients, logger)
	}
	deps.Service, err = autobuy.NewService(svcDeps)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}

	return deps, cleanup, nil
}
