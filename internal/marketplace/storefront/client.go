// Package storefront scrapes a single-seller card shop's search page.
//
// The page is expected to render one element per product with
// data-product-id, data-name and data-set attributes, and one row per
// condition variant inside it:
//
//	<div class="product" data-product-id="123" data-name="Sol Ring" data-set="C21">
//	  <tr class="variant" data-condition="Near Mint" data-price="$1.49" data-quantity="3"></tr>
//	</div>
package storefront

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/guarzo/mtgautobuy/internal/marketplace"
	"github.com/guarzo/mtgautobuy/internal/model"
	"github.com/guarzo/mtgautobuy/internal/ratelimit"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Config describes one storefront.
type Config struct {
	Name         string
	BaseURL      string
	SearchPath   string
	SellerRating *float64
	ShippingBase float64
	FreeAt       *float64
	Timeout      time.Duration
	// ExcludeHeavilyPlayed drops heavily played variants.
	ExcludeHeavilyPlayed bool
}

// Client scrapes a storefront. Requests are paced, one per lookup.
type Client struct {
	cfg        Config
	http       *resty.Client
	pacer      ratelimit.Waiter
	normalizer *marketplace.Normalizer
	logger     *zap.Logger
}

// New creates a storefront client.
func New(cfg Config, pacer ratelimit.Waiter, logger *zap.Logger) *Client {
	if cfg.Name == "" {
		cfg.Name = "storefront"
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/search"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "storefront"), zap.String("store", cfg.Name))

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Encoding", "gzip, br")

	return &Client{
		cfg:        cfg,
		http:       client,
		pacer:      pacer,
		normalizer: marketplace.NewNormalizer(logger),
		logger:     logger,
	}
}

// Name implements marketplace.Client.
func (c *Client) Name() string { return c.cfg.Name }

// FetchOffers searches the store for each card. A failed page is logged and
// skipped.
func (c *Client) FetchOffers(ctx context.Context, lookups []model.CardLookup) ([]model.Offer, error) {
	var raw []marketplace.RawListing
	for _, l := range lookups {
		listings, err := c.search(ctx, l)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("storefront search failed",
				zap.String("scryfall_id", l.ScryfallID),
				zap.String("name", l.Name),
				zap.Error(err),
			)
			continue
		}
		raw = append(raw, listings...)
	}
	return c.normalizer.NormalizeOffers(raw, nil, c.cfg.ExcludeHeavilyPlayed), nil
}

func (c *Client) search(ctx context.Context, l model.CardLookup) ([]marketplace.RawListing, error) {
	if c.pacer != nil {
		if err := c.pacer.WaitForToken(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParam("q", l.Name).
		Get(c.cfg.SearchPath)
	if err != nil {
		return nil, fmt.Errorf("fetch search page: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search page returned status %d", resp.StatusCode())
	}

	reader, err := marketplace.DecodeBody(resp.Header(), body)
	if err != nil {
		return nil, fmt.Errorf("decode search page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return c.parseListings(doc, l), nil
}

// parseListings extracts variant rows of products matching the card name
// and, when both sides have one, the set code.
func (c *Client) parseListings(doc *goquery.Document, l model.CardLookup) []marketplace.RawListing {
	var out []marketplace.RawListing
	doc.Find(".product[data-product-id]").Each(func(_ int, product *goquery.Selection) {
		name := strings.TrimSpace(product.AttrOr("data-name", ""))
		if !strings.EqualFold(name, l.Name) {
			return
		}
		set := strings.TrimSpace(product.AttrOr("data-set", ""))
		if l.SetCode != "" && set != "" && !strings.EqualFold(set, l.SetCode) {
			return
		}
		productID := product.AttrOr("data-product-id", "")

		product.Find(".variant").Each(func(_ int, row *goquery.Selection) {
			listing := marketplace.RawListing{
				Marketplace:    c.cfg.Name,
				ProductID:      productID,
				CardID:         l.ScryfallID,
				SellerID:       c.cfg.Name,
				SellerName:     c.cfg.Name,
				Condition:      strings.TrimSpace(row.AttrOr("data-condition", "")),
				ShippingBase:   c.cfg.ShippingBase,
				FreeShippingAt: c.cfg.FreeAt,
				SellerRating:   c.cfg.SellerRating,
			}
			if p, ok := parsePrice(row.AttrOr("data-price", "")); ok {
				listing.Price = &p
			}
			if q, err := strconv.Atoi(strings.TrimSpace(row.AttrOr("data-quantity", "0"))); err == nil {
				listing.Quantity = q
			}
			out = append(out, listing)
		})
	})
	return out
}

// parsePrice accepts "$1,234.50" style prices.
func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p < 0 {
		return 0, false
	}
	return p, true
}

var _ marketplace.Client = (*Client)(nil)
