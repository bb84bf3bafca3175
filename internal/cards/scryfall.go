// Package cards resolves scryfall ids to the name and set a marketplace
// catalog search needs.
package cards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/cache"
	"github.com/guarzo/mtgautobuy/internal/model"
	"github.com/guarzo/mtgautobuy/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://api.scryfall.com"
	// collectionLimit is the most identifiers /cards/collection accepts.
	collectionLimit = 75
	lookupTTL       = 7 * 24 * time.Hour
)

// ScryfallConfig configures the Scryfall client.
type ScryfallConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Scryfall resolves card ids through POST /cards/collection.
type Scryfall struct {
	http   *resty.Client
	pacer  ratelimit.Waiter
	cache  cache.Cache
	logger *zap.Logger
}

// NewScryfall creates a resolver. pacer and c may be nil.
func NewScryfall(cfg ScryfallConfig, pacer ratelimit.Waiter, c cache.Cache, logger *zap.Logger) *Scryfall {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mtgautobuy/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)

	return &Scryfall{
		http:   client,
		pacer:  pacer,
		cache:  c,
		logger: logger.With(zap.String("component", "scryfall")),
	}
}

type identifier struct {
	ID string `json:"id"`
}

type collectionResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Set  string `json:"set"`
	} `json:"data"`
	NotFound []identifier `json:"not_found"`
}

// Lookups resolves ids in input order. Ids Scryfall does not know are left
// out and logged.
func (s *Scryfall) Lookups(ctx context.Context, scryfallIDs []string) ([]model.CardLookup, error) {
	found := make(map[string]model.CardLookup, len(scryfallIDs))
	var missing []string

	for _, id := range scryfallIDs {
		if _, seen := found[id]; seen {
			continue
		}
		if l, ok := s.cached(ctx, id); ok {
			found[id] = l
			continue
		}
		missing = append(missing, id)
	}

	for start := 0; start < len(missing); start += collectionLimit {
		end := min(start+collectionLimit, len(missing))
		batch, err := s.fetchCollection(ctx, missing[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("scryfall collection batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", end-start),
				zap.Error(err),
			)
			continue
		}
		for _, l := range batch {
			found[l.ScryfallID] = l
			s.store(ctx, l)
		}
	}

	out := make([]model.CardLookup, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, id := range scryfallIDs {
		l, ok := found[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, l)
	}
	return out, nil
}

func (s *Scryfall) fetchCollection(ctx context.Context, ids []string) ([]model.CardLookup, error) {
	if s.pacer != nil {
		if err := s.pacer.WaitForToken(ctx); err != nil {
			return nil, err
		}
	}

	body := struct {
		Identifiers []identifier `json:"identifiers"`
	}{Identifiers: make([]identifier, 0, len(ids))}
	for _, id := range ids {
		body.Identifiers = append(body.Identifiers, identifier{ID: id})
	}

	var out collectionResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/cards/collection")
	if err != nil {
		return nil, fmt.Errorf("scryfall collection: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scryfall collection: status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	for _, nf := range out.NotFound {
		s.logger.Warn("card not found on scryfall", zap.String("scryfall_id", nf.ID))
	}

	lookups := make([]model.CardLookup, 0, len(out.Data))
	for _, c := range out.Data {
		lookups = append(lookups, model.CardLookup{ScryfallID: c.ID, Name: c.Name, SetCode: c.Set})
	}
	return lookups, nil
}

func (s *Scryfall) cached(ctx context.Context, id string) (model.CardLookup, bool) {
	var l model.CardLookup
	if s.cache == nil {
		return l, false
	}
	ok, err := s.cache.Get(ctx, cache.BuildKey("card", id), &l)
	if err != nil {
		s.logger.Debug("card cache read failed", zap.String("scryfall_id", id), zap.Error(err))
		return l, false
	}
	return l, ok
}

func (s *Scryfall) store(ctx context.Context, l model.CardLookup) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.BuildKey("card", l.ScryfallID), l, lookupTTL); err != nil {
		s.logger.Debug("card cache write failed", zap.String("scryfall_id", l.ScryfallID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
