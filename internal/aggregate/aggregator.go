// Package aggregate merges offers from every marketplace into one summary
// per card.
package aggregate

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guarzo/mtgautobuy/internal/marketplace"
	"github.com/guarzo/mtgautobuy/internal/model"
)

// Summary is the merged market view of one card. Available is false when no
// marketplace returned an eligible offer, which callers treat as unknown.
type Summary struct {
	CardID        string
	Available     bool
	TotalQuantity int
	MinPrice      float64
	Best          *model.Offer
	OfferCount    int
	Marketplaces  []string
}

// Aggregator fans out to marketplace clients.
type Aggregator struct {
	clients []marketplace.Client
	logger  *zap.Logger
}

// New creates an aggregator over clients.
func New(clients []marketplace.Client, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		clients: clients,
		logger:  logger.With(zap.String("component", "aggregate")),
	}
}

// Aggregate queries every client concurrently and summarizes offers per
// card. A client that fails is logged and ignored; every requested card gets
// a summary. Only context cancellation is returned as an error.
func (a *Aggregator) Aggregate(ctx context.Context, lookups []model.CardLookup) (map[string]Summary, error) {
	var (
		mu     sync.Mutex
		offers []model.Offer
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, client := range a.clients {
		client := client
		g.Go(func() error {
			got, err := client.FetchOffers(gctx, lookups)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.Warn("marketplace failed, continuing without it",
					zap.String("marketplace", client.Name()),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			offers = append(offers, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := Summarize(offers)
	for _, l := range lookups {
		if _, ok := summaries[l.ScryfallID]; !ok {
			summaries[l.ScryfallID] = Summary{CardID: l.ScryfallID}
		}
	}

	a.logger.Debug("offers aggregated",
		zap.Int("cards", len(lookups)),
		zap.Int("offers", len(offers)),
		zap.Int("marketplaces", len(a.clients)),
	)
	return summaries, nil
}

// Summarize groups offers by card.
func Summarize(offers []model.Offer) map[string]Summary {
	byCard := make(map[string][]model.Offer)
	for _, o := range offers {
		byCard[o.CardID] = append(byCard[o.CardID], o)
	}

	out := make(map[string]Summary, len(byCard))
	for cardID, cardOffers := range byCard {
		out[cardID] = summarizeCard(cardID, cardOffers)
	}
	return out
}

func summarizeCard(cardID string, offers []model.Offer) Summary {
	s := Summary{CardID: cardID}
	seen := make(map[string]bool)

	for i := range offers {
		o := offers[i]
		if o.QuantityAvailable < 1 {
			continue
		}
		s.TotalQuantity += o.QuantityAvailable
		s.OfferCount++
		if !seen[o.Marketplace] {
			seen[o.Marketplace] = true
			s.Marketplaces = append(s.Marketplaces, o.Marketplace)
		}
		if s.Best == nil || better(o, *s.Best) {
			best := o
			s.Best = &best
		}
	}

	if s.Best != nil {
		s.Available = true
		s.MinPrice = s.Best.Price
	}
	sort.Strings(s.Marketplaces)
	return s
}

// better orders offers by price, then higher seller rating, then lower
// shipping base.
func better(a, b model.Offer) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if a.Rating() != b.Rating() {
		return a.Rating() > b.Rating()
	}
	return a.Shipping.Base < b.Shipping.Base
}
