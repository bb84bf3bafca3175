// Package autobuy runs the restock scoring pipeline: stock levels in, ranked
// priority scores out.
package autobuy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/aggregate"
	"github.com/guarzo/mtgautobuy/internal/cache"
	"github.com/guarzo/mtgautobuy/internal/inventory"
	"github.com/guarzo/mtgautobuy/internal/ips"
	"github.com/guarzo/mtgautobuy/internal/model"
	"github.com/guarzo/mtgautobuy/internal/substitution"
)

// DefaultPriceHistoryTTL is how long an observed min price is remembered.
const DefaultPriceHistoryTTL = 30 * 24 * time.Hour

// GroupSnapshotter provides a consistent view of substitution groups.
type GroupSnapshotter interface {
	Snapshot(ctx context.Context) (*substitution.Index, error)
}

// OfferAggregator summarizes marketplace offers per card.
type OfferAggregator interface {
	Aggregate(ctx context.Context, lookups []model.CardLookup) (map[string]aggregate.Summary, error)
}

// CardResolver fills in card names and set codes from scryfall ids.
type CardResolver interface {
	Lookups(ctx context.Context, scryfallIDs []string) ([]model.CardLookup, error)
}

// Deps are the collaborators of a Service. Everything except Inventory is
// optional.
type Deps struct {
	Inventory    inventory.Source
	Cards        CardResolver
	Groups       GroupSnapshotter
	Seasons      ips.SeasonalSource
	Market       OfferAggregator
	Calculator   *ips.Calculator
	PriceHistory cache.Cache
	// PriceHistoryTTL defaults to DefaultPriceHistoryTTL.
	PriceHistoryTTL time.Duration
	Logger          *zap.Logger
}

// RunStats describes one run.
type RunStats struct {
	Cards           int
	Groups          int
	CardsWithOffers int
	PricesKnown     int
	StockTime       time.Duration
	MarketTime      time.Duration
	Total           time.Duration
}

// Service wires the scoring pipeline together.
type Service struct {
	deps   Deps
	logger *zap.Logger
}

// NewService validates deps and returns a Service.
func NewService(deps Deps) (*Service, error) {
	if deps.Inventory == nil {
		return nil, fmt.Errorf("autobuy: inventory source is required")
	}
	if deps.Calculator == nil {
		deps.Calculator = ips.NewCalculator(ips.DefaultWeights())
	}
	if deps.PriceHistoryTTL <= 0 {
		deps.PriceHistoryTTL = DefaultPriceHistoryTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		deps:   deps,
		logger: logger.With(zap.String("component", "autobuy")),
	}, nil
}

// Run scores every tracked card for date. Marketplace and cache failures
// degrade the market signal to neutral; inventory and registry failures
// abort the run.
func (s *Service) Run(ctx context.Context, date time.Time) ([]ips.Result, error) {
	results, _, err := s.RunWithStats(ctx, date)
	return results, err
}

// RunWithStats is Run plus timing and coverage figures.
func (s *Service) RunWithStats(ctx context.Context, date time.Time) ([]ips.Result, RunStats, error) {
	var stats RunStats
	start := time.Now()

	stock, err := s.deps.Inventory.StockLevels(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("load stock levels: %w", err)
	}
	stats.Cards = len(stock)
	if err := s.resolveNames(ctx, stock); err != nil {
		return nil, stats, err
	}
	stats.StockTime = time.Since(start)

	in := ips.Input{
		Date:    date,
		Stock:   stock,
		Seasons: s.deps.Seasons,
	}

	if s.deps.Groups != nil {
		idx, err := s.deps.Groups.Snapshot(ctx)
		if err != nil {
			return nil, stats, fmt.Errorf("snapshot substitution groups: %w", err)
		}
		in.Groups = idx
		stats.Groups = idx.Len()
	}

	lookups := make([]model.CardLookup, 0, len(stock))
	for _, sl := range stock {
		lookups = append(lookups, sl.Card.Lookup())
	}

	if s.deps.Market != nil && len(lookups) > 0 {
		marketStart := time.Now()
		market, err := s.deps.Market.Aggregate(ctx, lookups)
		stats.MarketTime = time.Since(marketStart)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			s.logger.Warn("market data unavailable, using neutral signal", zap.Error(err))
		}
		in.Market = market
		for _, sum := range market {
			if sum.Available {
				stats.CardsWithOffers++
			}
		}
	}

	in.PreviousMinPrice = s.loadPreviousMinPrices(ctx, stock)
	stats.PricesKnown = len(in.PreviousMinPrice)

	results := s.deps.Calculator.Score(in)

	s.storeMinPrices(ctx, in.Market)

	stats.Total = time.Since(start)
	s.logger.Info("scoring run complete",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("cards", stats.Cards),
		zap.Int("groups", stats.Groups),
		zap.Int("cards_with_offers", stats.CardsWithOffers),
		zap.Int("prices_known", stats.PricesKnown),
		zap.Duration("market_time", stats.MarketTime),
		zap.Duration("total", stats.Total),
	)
	return results, stats, nil
}

// resolveNames completes stock rows that arrived with only a scryfall id.
// Marketplaces search by name, so unresolved rows get no offers.
func (s *Service) resolveNames(ctx context.Context, stock []model.StockLevel) error {
	if s.deps.Cards == nil {
		return nil
	}
	var missing []string
	for _, sl := range stock {
		if sl.Card.Name == "" {
			missing = append(missing, sl.Card.ScryfallID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	lookups, err := s.deps.Cards.Lookups(ctx, missing)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("card resolution failed", zap.Int("cards", len(missing)), zap.Error(err))
		return nil
	}
	byID := make(map[string]model.CardLookup, len(lookups))
	for _, l := range lookups {
		byID[l.ScryfallID] = l
	}
	for i := range stock {
		l, ok := byID[stock[i].Card.ScryfallID]
		if !ok || stock[i].Card.Name != "" {
			continue
		}
		stock[i].Card.Name = l.Name
		if stock[i].Card.SetCode == "" {
			stock[i].Card.SetCode = l.SetCode
		}
	}
	s.logger.Debug("resolved card names", zap.Int("requested", len(missing)), zap.Int("resolved", len(byID)))
	return nil
}

func (s *Service) loadPreviousMinPrices(ctx context.Context, stock []model.StockLevel) map[string]float64 {
	prev := make(map[string]float64)
	if s.deps.PriceHistory == nil {
		return prev
	}
	for _, sl := range stock {
		id := sl.Card.ScryfallID
		var price float64
		found, err := s.deps.PriceHistory.Get(ctx, cache.MinPriceKey(id), &price)
		if err != nil {
			s.logger.Warn("price history read failed", zap.String("scryfall_id", id), zap.Error(err))
			continue
		}
		if found && price > 0 {
			prev[id] = price
		}
	}
	return prev
}

func (s *Service) storeMinPrices(ctx context.Context, market map[string]aggregate.Summary) {
	if s.deps.PriceHistory == nil {
		return
	}
	for id, sum := range market {
		if !sum.Available || sum.MinPrice <= 0 {
			continue
		}
		if err := s.deps.PriceHistory.Set(ctx, cache.MinPriceKey(id), sum.MinPrice, s.deps.PriceHistoryTTL); err != nil {
			s.logger.Warn("price history write failed", zap.String("scryfall_id", id), zap.Error(err))
		}
	}
}
