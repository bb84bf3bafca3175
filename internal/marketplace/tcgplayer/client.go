// Package tcgplayer talks to the TCGPlayer catalog and pricing API.
package tcgplayer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/cache"
	"github.com/guarzo/mtgautobuy/internal/marketplace"
	"github.com/guarzo/mtgautobuy/internal/model"
	"github.com/guarzo/mtgautobuy/internal/ratelimit"
)

const (
	Name = "tcgplayer"

	DefaultBaseURL    = "https://api.tcgplayer.com"
	MagicCategoryID   = 1
	SearchBatchSize   = 50
	PricingBatchSize  = 100
	defaultProductTTL = 7 * 24 * time.Hour
)

// ErrNoAPIKey is returned when neither the call nor the config has a key.
var ErrNoAPIKey = errors.New("tcgplayer: api key is required")

// Resolver turns scryfall ids into catalog lookups.
type Resolver interface {
	Lookups(ctx context.Context, scryfallIDs []string) ([]model.CardLookup, error)
}

// Config configures the client.
type Config struct {
	BaseURL              string
	APIKey               string
	CategoryID           int
	Timeout              time.Duration
	ProductCacheTTL      time.Duration
	ExcludeHeavilyPlayed bool
}

// Client is the TCGPlayer marketplace client. Every request waits on the
// limiter first.
type Client struct {
	cfg        Config
	http       *resty.Client
	limiter    ratelimit.Waiter
	cache      cache.Cache
	resolver   Resolver
	normalizer *marketplace.Normalizer
	logger     *zap.Logger
}

// New creates a client. limiter is required; c and resolver may be nil.
func New(cfg Config, limiter ratelimit.Waiter, c cache.Cache, resolver Resolver, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CategoryID == 0 {
		cfg.CategoryID = MagicCategoryID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ProductCacheTTL <= 0 {
		cfg.ProductCacheTTL = defaultProductTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", Name))

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:        cfg,
		http:       client,
		limiter:    limiter,
		cache:      c,
		resolver:   resolver,
		normalizer: marketplace.NewNormalizer(logger),
		logger:     logger,
	}
}

// Name implements marketplace.Client.
func (c *Client) Name() string { return Name }

// FetchOffers implements marketplace.Client with the configured key.
func (c *Client) FetchOffers(ctx context.Context, lookups []model.CardLookup) ([]model.Offer, error) {
	ids := make([]string, 0, len(lookups))
	for _, l := range lookups {
		ids = append(ids, l.ScryfallID)
	}
	return c.FetchAndNormalizeOffers(ctx, ids, "", lookups)
}

type apiError struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

type productSearchResponse struct {
	apiError
	Results []struct {
		ProductID int    `json:"productId"`
		Name      string `json:"name"`
		CleanName string `json:"cleanName"`
		GroupName string `json:"groupName"`
	} `json:"results"`
}

// SearchProductIDs maps scryfall ids to product ids, fifty cards at a time.
// A card that cannot be found or whose request fails is logged and left out.
func (c *Client) SearchProductIDs(ctx context.Context, lookups []model.CardLookup, apiKey string) (map[string]string, error) {
	apiKey, err := c.key(apiKey)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(lookups))
	for start := 0; start < len(lookups); start += SearchBatchSize {
		end := min(start+SearchBatchSize, len(lookups))
		for _, l := range lookups[start:end] {
			if _, done := mapping[l.ScryfallID]; done {
				continue
			}
			if id, ok := c.cachedProductID(ctx, l.ScryfallID); ok {
				mapping[l.ScryfallID] = id
				continue
			}

			id, err := c.searchProduct(ctx, l, apiKey)
			if err != nil {
				if ctx.Err() != nil {
					return mapping, ctx.Err()
				}
				c.logger.Warn("product search failed",
					zap.String("scryfall_id", l.ScryfallID),
					zap.String("name", l.Name),
					zap.Error(err),
				)
				continue
			}
			if id == "" {
				c.logger.Debug("no product found", zap.String("scryfall_id", l.ScryfallID), zap.String("name", l.Name))
				continue
			}
			mapping[l.ScryfallID] = id
			c.storeProductID(ctx, l.ScryfallID, id)
		}
	}
	return mapping, nil
}

func (c *Client) searchProduct(ctx context.Context, l model.CardLookup, apiKey string) (string, error) {
	if l.Name == "" {
		return "", fmt.Errorf("lookup %s has no name", l.ScryfallID)
	}
	if err := c.limiter.WaitForToken(ctx); err != nil {
		return "", err
	}

	var out productSearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetQueryParams(map[string]string{
			"productName": l.Name,
			"categoryId":  strconv.Itoa(c.cfg.CategoryID),
		}).
		SetResult(&out).
		Get("/catalog/products")
	if err != nil {
		return "", fmt.Errorf("search %q: %w", l.Name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("search %q: status %d", l.Name, resp.StatusCode())
	}
	if len(out.Results) == 0 {
		return "", nil
	}

	best := out.Results[0]
	if set := strings.ToLower(strings.TrimSpace(l.SetCode)); set != "" {
		for _, r := range out.Results {
			candidate := strings.ToLower(r.Name + " " + r.GroupName)
			if strings.Contains(candidate, set) {
				best = r
				break
			}
		}
	}
	return strconv.Itoa(best.ProductID), nil
}

// listing is one seller listing as returned by the pricing endpoint.
type listing struct {
	ProductID             int      `json:"productId"`
	SellerKey             string   `json:"sellerKey"`
	SellerName            string   `json:"sellerName"`
	Condition             string   `json:"condition"`
	Price                 *float64 `json:"price"`
	Quantity              int      `json:"quantity"`
	ShippingPrice         float64  `json:"shippingPrice"`
	FreeShippingThreshold *float64 `json:"freeShippingThreshold"`
	SellerRating          *float64 `json:"sellerRating"`
	SellerSales           *int     `json:"sellerSales"`
}

type pricingResponse struct {
	apiError
	Results []listing `json:"results"`
}

// FetchListingsForProducts fetches listings in requests of at most 100
// product ids. Failed batches are logged and skipped.
func (c *Client) FetchListingsForProducts(ctx context.Context, productIDs []string, apiKey string) ([]marketplace.RawListing, error) {
	apiKey, err := c.key(apiKey)
	if err != nil {
		return nil, err
	}

	var raw []marketplace.RawListing
	for start := 0; start < len(productIDs); start += PricingBatchSize {
		end := min(start+PricingBatchSize, len(productIDs))
		batch := productIDs[start:end]

		listings, err := c.fetchPricing(ctx, batch, apiKey)
		if err != nil {
			if ctx.Err() != nil {
				return raw, ctx.Err()
			}
			c.logger.Warn("pricing batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			continue
		}
		raw = append(raw, listings...)
	}
	return raw, nil
}

func (c *Client) fetchPricing(ctx context.Context, productIDs []string, apiKey string) ([]marketplace.RawListing, error) {
	if err := c.limiter.WaitForToken(ctx); err != nil {
		return nil, err
	}

	var out pricingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetResult(&out).
		Get("/pricing/marketprices/" + strings.Join(productIDs, ","))
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pricing: status %d", resp.StatusCode())
	}

	raw := make([]marketplace.RawListing, 0, len(out.Results))
	for _, l := range out.Results {
		raw = append(raw, marketplace.RawListing{
			Marketplace:    Name,
			ProductID:      strconv.Itoa(l.ProductID),
			SellerID:       l.SellerKey,
			SellerName:     l.SellerName,
			Condition:      l.Condition,
			Price:          l.Price,
			Quantity:       l.Quantity,
			ShippingBase:   l.ShippingPrice,
			FreeShippingAt: l.FreeShippingThreshold,
			SellerRating:   l.SellerRating,
			SellerSales:    l.SellerSales,
		})
	}
	return raw, nil
}

// NormalizeOffers filters raw listings into offers. idMap maps product id to
// scryfall id.
func (c *Client) NormalizeOffers(raw []marketplace.RawListing, idMap map[string]string, excludeHeavilyPlayed bool) []model.Offer {
	return c.normalizer.NormalizeOffers(raw, idMap, excludeHeavilyPlayed)
}

// FetchAndNormalizeOffers runs search, pricing and normalization for the
// given cards. Cards without an entry in lookups are resolved through the
// resolver.
func (c *Client) FetchAndNormalizeOffers(ctx context.Context, cardIDs []string, apiKey string, lookups []model.CardLookup) ([]model.Offer, error) {
	if len(cardIDs) == 0 {
		return nil, nil
	}
	known := make(map[string]bool, len(lookups))
	for _, l := range lookups {
		known[l.ScryfallID] = true
	}
	var missing []string
	for _, id := range cardIDs {
		if !known[id] {
			missing = append(missing, id)
			known[id] = true
		}
	}
	if len(missing) > 0 {
		if c.resolver == nil {
			if len(lookups) == 0 {
				return nil, fmt.Errorf("tcgplayer: no lookups and no card resolver")
			}
			c.logger.Debug("no resolver for cards without lookups", zap.Int("cards", len(missing)))
		} else {
			resolved, err := c.resolver.Lookups(ctx, missing)
			if err != nil {
				return nil, fmt.Errorf("tcgplayer: resolve cards: %w", err)
			}
			lookups = append(append([]model.CardLookup(nil), lookups...), resolved...)
		}
	}

	mapping, err := c.SearchProductIDs(ctx, lookups, apiKey)
	if err != nil {
		return nil, err
	}

	productToCard := make(map[string]string, len(mapping))
	productIDs := make([]string, 0, len(mapping))
	for _, cardID := range cardIDs {
		pid, ok := mapping[cardID]
		if !ok {
			continue
		}
		if _, dup := productToCard[pid]; dup {
			continue
		}
		productToCard[pid] = cardID
		productIDs = append(productIDs, pid)
	}

	raw, err := c.FetchListingsForProducts(ctx, productIDs, apiKey)
	if err != nil {
		return nil, err
	}

	offers := c.NormalizeOffers(raw, productToCard, c.cfg.ExcludeHeavilyPlayed)
	c.logger.Debug("offers fetched",
		zap.Int("cards", len(cardIDs)),
		zap.Int("products", len(productIDs)),
		zap.Int("listings", len(raw)),
		zap.Int("offers", len(offers)),
	)
	return offers, nil
}

func (c *Client) key(apiKey string) (string, error) {
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if apiKey == "" {
		return "", ErrNoAPIKey
	}
	return apiKey, nil
}

func (c *Client) cachedProductID(ctx context.Context, scryfallID string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	var id string
	ok, err := c.cache.Get(ctx, cache.ProductIDKey(Name, scryfallID), &id)
	if err != nil {
		c.logger.Debug("product cache read failed", zap.String("scryfall_id", scryfallID), zap.Error(err))
		return "", false
	}
	return id, ok && id != ""
}

func (c *Client) storeProductID(ctx context.Context, scryfallID, productID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, cache.ProductIDKey(Name, scryfallID), productID, c.cfg.ProductCacheTTL); err != nil {
		c.logger.Debug("product cache write failed", zap.String("scryfall_id", scryfallID), zap.Error(err))
	}
}

var _ marketplace.Client = (*Client)(nil)
